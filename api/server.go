package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/praisemwanza53/genset-monitoring/config"
	"github.com/praisemwanza53/genset-monitoring/logger"
)

// Server owns the HTTP listener. Request timeouts are enforced here rather
// than in the handlers.
type Server struct {
	HTTP *http.Server
}

func NewServer(cfg config.ServerConfig, handler http.Handler) *Server {
	hs := &http.Server{
		Addr:              cfg.Address,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.WriteTimeout) * time.Second,
		IdleTimeout:       time.Duration(cfg.IdleTimeout) * time.Second,
	}
	return &Server{HTTP: hs}
}

// Start blocks serving requests until the server is shut down
func (s *Server) Start() error {
	logger.Printf("HTTP server listening on %s\n", s.HTTP.Addr)
	if err := s.HTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests until ctx expires
func (s *Server) Stop(ctx context.Context) error {
	logger.Println("HTTP server stopping")
	return s.HTTP.Shutdown(ctx)
}
