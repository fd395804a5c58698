package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/praisemwanza53/genset-monitoring/logger"
	"github.com/praisemwanza53/genset-monitoring/metrics"
)

const requestIDHeader = "X-Request-ID"

// NewRouter registers every endpoint on a gorilla/mux router
func NewRouter(h *Handlers, m *metrics.Metrics) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestID)
	// mux skips middleware for unmatched requests, so the fallback handlers
	// carry their own
	r.NotFoundHandler = requestID(m.Middleware(http.HandlerFunc(notFound)))
	r.MethodNotAllowedHandler = requestID(m.Middleware(http.HandlerFunc(methodNotAllowed)))
	if m != nil {
		r.Use(m.Middleware)
		r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	}

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/api/test", h.Test).Methods(http.MethodGet)
	r.HandleFunc("/api/status", h.Status).Methods(http.MethodGet)
	r.HandleFunc("/api/config", h.Config).Methods(http.MethodGet)

	r.HandleFunc("/api/sensor-data", h.IngestReading).Methods(http.MethodPost)
	r.HandleFunc("/api/sensor-data", h.LatestReading).Methods(http.MethodGet)
	// POST is kept for dashboards that fetch history that way
	r.HandleFunc("/api/sensor-data/all", h.RecentReadings).Methods(http.MethodGet, http.MethodPost)

	r.HandleFunc("/api/commands", h.GetCommands).Methods(http.MethodGet)
	r.HandleFunc("/api/relay", h.SetRelay).Methods(http.MethodPost)
	r.HandleFunc("/api/buzzer", h.RaiseBuzzer).Methods(http.MethodPost)
	r.HandleFunc("/api/buzzer/reset", h.ResetBuzzer).Methods(http.MethodPost)

	return r
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}

// Wrap adds CORS, access logging and panic recovery around the router
func Wrap(router http.Handler, corsOrigins []string) http.Handler {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	recovered := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{}),
		handlers.PrintRecoveryStack(logger.Level() == logger.DEBUG),
	)(router)
	logged := handlers.CombinedLoggingHandler(logger.Writer(), recovered)
	return handlers.CORS(
		handlers.AllowedOrigins(corsOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", requestIDHeader}),
		handlers.ExposedHeaders([]string{requestIDHeader}),
	)(logged)
}

// requestID tags each request and response with an X-Request-ID
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	logger.Errorln(v...)
}
