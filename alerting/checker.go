package alerting

import (
	"fmt"

	"github.com/praisemwanza53/genset-monitoring/config"
	"github.com/praisemwanza53/genset-monitoring/models"
)

// Alert kinds
const (
	KindFuelLow         = "fuel_low"
	KindTemperatureHigh = "temperature_high"
	KindSensorFault     = "sensor_fault"
)

// Alert describes one threshold breach on a reading
type Alert struct {
	Kind      string  `json:"kind"`
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Severity  string  `json:"severity"`
	Message   string  `json:"message"`
}

// Checker flags readings against the configured thresholds. Readings are
// never rejected; alerts are advisory for dashboards and the buzzer.
type Checker struct {
	fuelLow         float64
	temperatureHigh float64
}

// NewChecker builds a checker from the alerts section of the config
func NewChecker(cfg config.AlertsConfig) *Checker {
	return &Checker{
		fuelLow:         cfg.FuelLow,
		temperatureHigh: cfg.TemperatureHigh,
	}
}

// Check returns the alerts raised by r, or nil
func (c *Checker) Check(r models.SensorReading) []Alert {
	var alerts []Alert

	switch {
	case r.FuelLevel < 0 || r.FuelLevel > 100:
		alerts = append(alerts, Alert{
			Kind:     KindSensorFault,
			Metric:   "fuel_level",
			Value:    r.FuelLevel,
			Severity: "WARN",
			Message:  fmt.Sprintf("Fuel sensor fault: %.1f%% is outside [0, 100]", r.FuelLevel),
		})
	case r.FuelLevel < c.fuelLow:
		alerts = append(alerts, Alert{
			Kind:      KindFuelLow,
			Metric:    "fuel_level",
			Value:     r.FuelLevel,
			Threshold: c.fuelLow,
			Severity:  "CRITICAL",
			Message:   fmt.Sprintf("Low fuel: level is %.1f%% (threshold < %.0f%%)", r.FuelLevel, c.fuelLow),
		})
	}

	if c.temperatureHigh > 0 && r.Temperature > c.temperatureHigh {
		alerts = append(alerts, Alert{
			Kind:      KindTemperatureHigh,
			Metric:    "temperature",
			Value:     r.Temperature,
			Threshold: c.temperatureHigh,
			Severity:  "CRITICAL",
			Message:   fmt.Sprintf("High temperature: %.1f°C (threshold > %.0f°C)", r.Temperature, c.temperatureHigh),
		})
	}

	return alerts
}
