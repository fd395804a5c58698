// Package simulator emulates the genset controller: it pushes readings,
// polls for commands and acknowledges the buzzer the way the firmware does.
package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/praisemwanza53/genset-monitoring/commands"
	"github.com/praisemwanza53/genset-monitoring/config"
	"github.com/praisemwanza53/genset-monitoring/logger"
)

// Payload is the body the device posts to /api/sensor-data. Pressure is
// sent like the field units do and ignored by the server.
type Payload struct {
	FuelLevel   float64 `json:"fuel_level"`
	Temperature float64 `json:"temperature"`
	Pressure    float64 `json:"pressure"`
}

// StepResult describes one push/poll cycle
type StepResult struct {
	Sent         Payload
	Timestamp    string
	Commands     commands.Snapshot
	Acknowledged bool
}

// Device is a stateful random-walk genset
type Device struct {
	baseURL string
	client  *http.Client
	rng     *rand.Rand

	fuel        float64
	temperature float64
	relay       string
}

// NewDevice creates a device that talks to cfg.TargetURL
func NewDevice(cfg config.SimulatorConfig, seed int64) *Device {
	return &Device{
		baseURL:     strings.TrimRight(cfg.TargetURL, "/"),
		client:      &http.Client{Timeout: 10 * time.Second},
		rng:         rand.New(rand.NewSource(seed)),
		fuel:        100,
		temperature: 25,
		relay:       commands.RelayOff,
	}
}

// Next advances the random walk by one tick. Fuel drains faster and the
// engine runs hotter while the relay is on; an empty tank is refilled.
func (d *Device) Next() Payload {
	drain, target := 0.05, 25.0
	if d.relay == commands.RelayOn {
		drain, target = 0.6, 80.0
	}

	d.fuel -= drain + d.rng.Float64()*drain
	if d.fuel < 5 {
		d.fuel = 100
	}

	// mean-reverting walk towards the running temperature
	d.temperature += (target-d.temperature)*0.1 + d.rng.NormFloat64()*1.5
	d.temperature = math.Max(-10, math.Min(120, d.temperature))

	return Payload{
		FuelLevel:   math.Round(d.fuel*100) / 100,
		Temperature: math.Round(d.temperature*100) / 100,
		Pressure:    math.Round((65+d.rng.Float64()*10)*100) / 100,
	}
}

// Step pushes one reading, polls commands and acknowledges a pending buzzer
func (d *Device) Step(ctx context.Context) (StepResult, error) {
	var result StepResult
	result.Sent = d.Next()

	var ingest struct {
		Timestamp string `json:"timestamp"`
	}
	if err := d.do(ctx, http.MethodPost, "/api/sensor-data", result.Sent, &ingest); err != nil {
		return result, fmt.Errorf("failed to push reading: %w", err)
	}
	result.Timestamp = ingest.Timestamp

	if err := d.do(ctx, http.MethodGet, "/api/commands", nil, &result.Commands); err != nil {
		return result, fmt.Errorf("failed to poll commands: %w", err)
	}
	if result.Commands.Relay != d.relay {
		logger.Printf("Relay switched %s -> %s\n", d.relay, result.Commands.Relay)
		d.relay = result.Commands.Relay
	}

	if result.Commands.Buzzer {
		logger.Warnf("BUZZER sounding\n")
		if err := d.do(ctx, http.MethodPost, "/api/buzzer/reset", nil, nil); err != nil {
			return result, fmt.Errorf("failed to acknowledge buzzer: %w", err)
		}
		result.Acknowledged = true
	}

	return result, nil
}

// Run steps every interval until ctx is cancelled. Failed cycles are logged
// and retried on the next tick.
func (d *Device) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Printf("Simulating genset against %s every %v\n", d.baseURL, interval)
	for {
		res, err := d.Step(ctx)
		if err != nil {
			logger.Errorf("%v\n", err)
		} else {
			logger.Printf("Sent fuel=%.2f%% temp=%.2f°C at %s, relay=%s\n",
				res.Sent.FuelLevel, res.Sent.Temperature, res.Timestamp, res.Commands.Relay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *Device) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s %s: invalid response: %w", method, path, err)
		}
	}
	return nil
}
