package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/praisemwanza53/genset-monitoring/advisory"
	"github.com/praisemwanza53/genset-monitoring/alerting"
	"github.com/praisemwanza53/genset-monitoring/api"
	"github.com/praisemwanza53/genset-monitoring/commands"
	"github.com/praisemwanza53/genset-monitoring/config"
	"github.com/praisemwanza53/genset-monitoring/database"
	"github.com/praisemwanza53/genset-monitoring/logger"
	"github.com/praisemwanza53/genset-monitoring/metrics"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() {
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := runServer(ctx, cfg)
	stop()
	if err != nil {
		logger.Fatalf("%v\n", err)
	}
}

// runServer serves until ctx is cancelled or the listener fails. The
// database and advisory worker are released on every return path.
func runServer(ctx context.Context, cfg *config.Config) error {
	logger.Println("Starting Genset Monitoring API Server...")
	logger.Printf("Database: %s (%s)\n", cfg.Database.Driver, cfg.StorageLocation())

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	if cfg.Migration.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}

	m := metrics.New()
	state := commands.NewState()
	state.OnChange = m.ObserveCommands
	m.ObserveCommands(state.Get())

	advisor := newAdvisor(cfg)
	advisorCtx, cancelAdvisor := context.WithCancel(context.Background())
	defer cancelAdvisor()
	go advisor.Run(advisorCtx)

	h := &api.Handlers{
		Store:              database.NewReadingStore(db),
		Commands:           state,
		Alerts:             alerting.NewChecker(cfg.Alerts),
		Advisor:            advisor,
		Metrics:            m,
		RaiseBuzzerOnAlert: cfg.Alerts.RaiseBuzzer,
		DatabaseDriver:     cfg.Database.Driver,
		DatabasePath:       cfg.StorageLocation(),
		AlertThresholds: map[string]float64{
			alerting.KindFuelLow:         cfg.Alerts.FuelLow,
			alerting.KindTemperatureHigh: cfg.Alerts.TemperatureHigh,
		},
	}

	server := api.NewServer(cfg.Server, api.Wrap(api.NewRouter(h, m), cfg.Server.CORSOrigins))

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	var serveErr error
	select {
	case serveErr = <-errCh:
		if serveErr != nil {
			logger.Errorf("HTTP server failed: %v\n", serveErr)
			serveErr = fmt.Errorf("HTTP server failed: %w", serveErr)
		}
	case <-ctx.Done():
		logger.Println("Shutdown requested")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Errorf("Graceful shutdown failed: %v\n", err)
	}
	logger.Println("Server stopped")
	return serveErr
}

// newAdvisor wires the Groq client when a key is configured
func newAdvisor(cfg *config.Config) *advisory.Service {
	timeout := time.Duration(cfg.Advisory.Timeout) * time.Second

	groq := advisory.NewGroqClient(cfg.Advisory)
	if groq == nil {
		logger.Warnf("GROQ_API_KEY not set; AI commentary disabled\n")
		return advisory.NewService(nil, timeout)
	}
	logger.Printf("AI commentary enabled (model %s)\n", cfg.Advisory.Model)
	return advisory.NewService(groq, timeout)
}
