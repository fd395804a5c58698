package metrics

import (
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/praisemwanza53/genset-monitoring/commands"
)

// Ingest outcomes
const (
	ResultStored    = "stored"
	ResultDuplicate = "duplicate"
	ResultError     = "error"
)

// Metrics owns a private registry so several instances can coexist in tests
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	readingsTotal     *prometheus.CounterVec
	alertsTotal       *prometheus.CounterVec
	lastFuelLevel     prometheus.Gauge
	lastTemperature   prometheus.Gauge
	relayDesired      prometheus.Gauge
	buzzerPending     prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "genset_http_requests_total",
			Help: "Total count of HTTP requests processed by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "genset_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		readingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "genset_readings_ingested_total",
			Help: "Sensor readings received, by outcome.",
		}, []string{"result"}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "genset_alerts_total",
			Help: "Threshold alerts raised on ingested readings, by kind.",
		}, []string{"kind"}),
		lastFuelLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "genset_fuel_level_percent",
			Help: "Fuel level of the most recently stored reading.",
		}),
		lastTemperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "genset_temperature_celsius",
			Help: "Temperature of the most recently stored reading.",
		}),
		relayDesired: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "genset_relay_desired",
			Help: "Desired relay position (1 on, 0 off).",
		}),
		buzzerPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "genset_buzzer_pending",
			Help: "Whether a buzzer alert is waiting for device acknowledgment.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpDuration,
		m.readingsTotal,
		m.alertsTotal,
		m.lastFuelLevel,
		m.lastTemperature,
		m.relayDesired,
		m.buzzerPending,
	)

	return m
}

// Middleware records request counts and durations labelled by the matched
// route template
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			next.ServeHTTP(w, r)
			return
		}
		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		captured := httpsnoop.CaptureMetrics(next, w, r)

		m.httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(captured.Code)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(captured.Duration.Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ReadingIngested records the outcome of one ingest request
func (m *Metrics) ReadingIngested(result string, fuelLevel, temperature float64) {
	if m == nil {
		return
	}
	m.readingsTotal.WithLabelValues(result).Inc()
	if result == ResultStored {
		m.lastFuelLevel.Set(fuelLevel)
		m.lastTemperature.Set(temperature)
	}
}

// AlertRaised counts one threshold alert
func (m *Metrics) AlertRaised(kind string) {
	if m == nil {
		return
	}
	m.alertsTotal.WithLabelValues(kind).Inc()
}

// ObserveCommands mirrors the command state into gauges. It is suitable as
// commands.State.OnChange.
func (m *Metrics) ObserveCommands(snap commands.Snapshot) {
	if m == nil {
		return
	}
	relay := 0.0
	if snap.Relay == commands.RelayOn {
		relay = 1
	}
	buzzer := 0.0
	if snap.Buzzer {
		buzzer = 1
	}
	m.relayDesired.Set(relay)
	m.buzzerPending.Set(buzzer)
}
