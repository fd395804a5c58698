package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/praisemwanza53/genset-monitoring/advisory"
	"github.com/praisemwanza53/genset-monitoring/alerting"
	"github.com/praisemwanza53/genset-monitoring/commands"
	"github.com/praisemwanza53/genset-monitoring/database"
	"github.com/praisemwanza53/genset-monitoring/logger"
	"github.com/praisemwanza53/genset-monitoring/metrics"
	"github.com/praisemwanza53/genset-monitoring/models"
)

const maxBodyBytes = 1 << 20

// ReadingStore is the persistence the handlers need
type ReadingStore interface {
	Insert(ctx context.Context, r models.SensorReading) (bool, error)
	Latest(ctx context.Context) (models.SensorReading, bool, error)
	Recent(ctx context.Context, limit int) ([]models.SensorReading, error)
	Ping(ctx context.Context) error
}

// Handlers serves the device and dashboard endpoints. Store and Commands
// are required; the remaining collaborators are optional.
type Handlers struct {
	Store    ReadingStore
	Commands *commands.State
	Alerts   *alerting.Checker
	Advisor  *advisory.Service
	Metrics  *metrics.Metrics

	// RaiseBuzzerOnAlert raises the buzzer when an ingested reading breaches a threshold
	RaiseBuzzerOnAlert bool
	DatabaseDriver     string
	DatabasePath       string
	AlertThresholds    map[string]float64

	// Now stamps incoming readings; defaults to time.Now
	Now func() time.Time
}

var (
	errNoData       = errors.New("no data received")
	errInvalidField = errors.New("field must be a number")
)

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handlers) isoNow() string {
	return h.now().Format(time.RFC3339)
}

// payload is a decoded device body. The has flags record which fields the
// device actually sent.
type payload struct {
	fuelLevel      float64
	temperature    float64
	hasFuelLevel   bool
	hasTemperature bool
}

// decodeReading parses a device payload. Missing or null fields read as 0;
// unknown fields are ignored.
func decodeReading(body []byte) (payload, error) {
	var p payload
	if len(bytes.TrimSpace(body)) == 0 {
		return p, errNoData
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return p, fmt.Errorf("invalid JSON body: %w", err)
	}
	if len(fields) == 0 {
		return p, errNoData
	}
	var err error
	if p.fuelLevel, p.hasFuelLevel, err = numberField(fields, "fuel_level"); err != nil {
		return p, err
	}
	if p.temperature, p.hasTemperature, err = numberField(fields, "temperature"); err != nil {
		return p, err
	}
	return p, nil
}

func numberField(fields map[string]json.RawMessage, name string) (float64, bool, error) {
	raw, ok := fields[name]
	if !ok || string(bytes.TrimSpace(raw)) == "null" {
		return 0, false, nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false, fmt.Errorf("%s: %w", name, errInvalidField)
	}
	return v, true, nil
}

// reported drops alerts on metrics the device did not send; their stored
// value is a default, not a measurement
func (p payload) reported(alerts []alerting.Alert) []alerting.Alert {
	kept := alerts[:0]
	for _, a := range alerts {
		switch {
		case a.Metric == "fuel_level" && !p.hasFuelLevel:
		case a.Metric == "temperature" && !p.hasTemperature:
		default:
			kept = append(kept, a)
		}
	}
	return kept
}

// Health reports whether the reading store answers a ping
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		logger.Errorf("Health check failed: %v\n", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status":        "unhealthy",
			"error":         err.Error(),
			"timestamp":     h.isoNow(),
			"database":      "disconnected",
			"database_path": h.DatabasePath,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "healthy",
		"timestamp":     h.isoNow(),
		"database":      "connected",
		"database_path": h.DatabasePath,
	})
}

// IngestReading stores a reading pushed by the device, stamped with the
// server clock
func (h *Handlers) IngestReading(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.badRequest(w, "could not read request body")
		return
	}

	p, err := decodeReading(body)
	if errors.Is(err, errNoData) {
		h.badRequest(w, "No data received")
		return
	}
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}

	reading := models.NewSensorReading(h.now(), p.fuelLevel, p.temperature)
	stored, err := h.Store.Insert(r.Context(), reading)
	if err != nil {
		h.Metrics.ReadingIngested(metrics.ResultError, p.fuelLevel, p.temperature)
		h.internalError(w, "Error receiving sensor data", err)
		return
	}

	message := "Data received and stored"
	if stored {
		h.Metrics.ReadingIngested(metrics.ResultStored, p.fuelLevel, p.temperature)
		logger.Printf("Received sensor data: temp=%.2f°C, fuel=%.2f%%\n", p.temperature, p.fuelLevel)
		h.afterStore(reading, p)
	} else {
		h.Metrics.ReadingIngested(metrics.ResultDuplicate, p.fuelLevel, p.temperature)
		logger.Warnf("Duplicate reading at %s ignored\n", reading.Timestamp)
		message = "Duplicate reading ignored"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"message":   message,
		"timestamp": reading.Timestamp,
	})
}

// afterStore runs the non-essential follow-ups for a newly stored reading
func (h *Handlers) afterStore(reading models.SensorReading, p payload) {
	var alerts []alerting.Alert
	if h.Alerts != nil {
		alerts = p.reported(h.Alerts.Check(reading))
	}
	for _, a := range alerts {
		h.Metrics.AlertRaised(a.Kind)
		logger.Warnf("ALERT: %s\n", a.Message)
	}
	if len(alerts) > 0 && h.RaiseBuzzerOnAlert {
		h.Commands.RaiseBuzzer()
	}
	h.Advisor.Submit(reading, alerts)
}

// LatestReading returns the newest stored reading or 404 when there is none
func (h *Handlers) LatestReading(w http.ResponseWriter, r *http.Request) {
	reading, found, err := h.Store.Latest(r.Context())
	if err != nil {
		h.internalError(w, "Error retrieving sensor data", err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "No sensor data available yet."})
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

// parseLimit reads ?limit=N; anything unusable falls back to the default
func parseLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return database.DefaultRecentLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return database.DefaultRecentLimit
	}
	return database.ClampLimit(n)
}

// RecentReadings returns up to limit readings, newest first
func (h *Handlers) RecentReadings(w http.ResponseWriter, r *http.Request) {
	readings, err := h.Store.Recent(r.Context(), parseLimit(r))
	if err != nil {
		h.internalError(w, "Error in /api/sensor-data/all", err)
		return
	}
	if readings == nil {
		readings = []models.SensorReading{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  readings,
		"count": len(readings),
	})
}

// GetCommands is polled by the device; it never clears the buzzer flag
func (h *Handlers) GetCommands(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Commands.Get())
}

// SetRelay records the operator's desired relay position
func (h *Handlers) SetRelay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.badRequest(w, "Invalid state")
		return
	}

	snap, err := h.Commands.SetRelay(req.State)
	if err != nil {
		if errors.Is(err, commands.ErrInvalidRelayState) {
			h.badRequest(w, "Invalid state")
			return
		}
		h.internalError(w, "Error setting relay", err)
		return
	}
	logger.Printf("Relay set to %s\n", snap.Relay)
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "relay": snap.Relay})
}

// RaiseBuzzer flags a buzzer alert for the device's next poll
func (h *Handlers) RaiseBuzzer(w http.ResponseWriter, _ *http.Request) {
	h.Commands.RaiseBuzzer()
	logger.Println("Buzzer alert raised")
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "buzzer": true})
}

// ResetBuzzer is called by the device after it has sounded the buzzer
func (h *Handlers) ResetBuzzer(w http.ResponseWriter, _ *http.Request) {
	h.Commands.AcknowledgeBuzzer()
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "buzzer": false})
}

// Status summarises the latest reading, its alerts and pending commands
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	latest, found, err := h.Store.Latest(r.Context())
	if err != nil {
		h.internalError(w, "Error getting status", err)
		return
	}
	if !found {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "no_data",
			"message":  "No sensor data available",
			"commands": h.Commands.Get(),
		})
		return
	}

	alerts := []alerting.Alert{}
	if h.Alerts != nil {
		if raised := h.Alerts.Check(latest); raised != nil {
			alerts = raised
		}
	}

	resp := map[string]any{
		"status":      "online",
		"last_update": latest.Timestamp,
		"sensor_data": map[string]float64{
			"temperature": latest.Temperature,
			"fuel_level":  latest.FuelLevel,
		},
		"alerts":   alerts,
		"commands": h.Commands.Get(),
	}
	if advice, ok := h.Advisor.Latest(); ok {
		resp["advice"] = advice
	}
	writeJSON(w, http.StatusOK, resp)
}

// Config reports non-secret runtime configuration
func (h *Handlers) Config(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"database_path":       h.DatabasePath,
		"database_driver":     h.DatabaseDriver,
		"groq_api_configured": h.Advisor.Enabled(),
		"alerts":              h.AlertThresholds,
		"raise_buzzer":        h.RaiseBuzzerOnAlert,
		"timestamp":           h.isoNow(),
	})
}

// Endpoints lists the routes reported by the connectivity test endpoint
var Endpoints = []string{
	"GET /health",
	"POST /api/sensor-data",
	"GET /api/sensor-data",
	"GET /api/sensor-data/all",
	"GET /api/commands",
	"POST /api/relay",
	"POST /api/buzzer",
	"POST /api/buzzer/reset",
	"GET /api/status",
	"GET /api/config",
	"GET /api/test",
	"GET /metrics",
}

// Test lets the device check connectivity
func (h *Handlers) Test(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "API server is running",
		"timestamp": h.isoNow(),
		"endpoints": Endpoints,
	})
}

func (h *Handlers) badRequest(w http.ResponseWriter, msg string) {
	logger.Warnf("bad request: %s\n", msg)
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func (h *Handlers) internalError(w http.ResponseWriter, what string, err error) {
	logger.Errorf("%s: %v\n", what, err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("failed to write response: %v\n", err)
	}
}
