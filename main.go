package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/praisemwanza53/genset-monitoring/config"
	"github.com/praisemwanza53/genset-monitoring/database"
	"github.com/praisemwanza53/genset-monitoring/logger"
	"github.com/praisemwanza53/genset-monitoring/models"
	"github.com/praisemwanza53/genset-monitoring/scanner"
	"github.com/praisemwanza53/genset-monitoring/simulator"
)

func main() {
	command := "serve"
	if len(os.Args) >= 2 {
		command = os.Args[1]
	}

	if needsLogging(command) {
		cfg := loadConfig()
		if err := logger.Init(cfg); err != nil {
			log.Fatalf("Failed to initialize logging: %v", err)
		}
		defer func() {
			if err := logger.Close(); err != nil {
				log.Fatalf("Failed to close logging: %v", err)
			}
		}()
		logger.LogCommand(os.Args[0], os.Args)
	}

	switch command {
	case "serve":
		serveCommand()
	case "connect":
		connectCommand()
	case "migrate":
		migrateCommand()
	case "migrate:create":
		if len(os.Args) < 3 {
			fmt.Println("Error: migration name required")
			fmt.Println("Usage: genset-monitoring migrate:create <migration_name>")
			return
		}
		createMigrationCommand(os.Args[2])
	case "migrate:status":
		migrationStatusCommand()
	case "db:info":
		dbInfoCommand()
	case "scan":
		if len(os.Args) < 3 {
			fmt.Println("Error: directory path required")
			fmt.Println("Usage: genset-monitoring scan <directory_path>")
			return
		}
		scanCommand(os.Args[2])
	case "test:insert":
		testInsertCommand()
	case "simulate":
		simulateCommand()
	case "help":
		showHelp()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		showHelp()
	}
}

// needsLogging determines which commands need logging
func needsLogging(command string) bool {
	loggingCommands := map[string]bool{
		"serve":          true,
		"migrate":        true,
		"migrate:create": true,
		"migrate:status": true,
		"scan":           true,
		"connect":        true,
		"test:insert":    true,
		"simulate":       true,
	}
	return loggingCommands[command]
}

func showHelp() {
	fmt.Println("Genset Monitoring - telemetry and command relay service")
	fmt.Println("")
	fmt.Println("Usage: genset-monitoring <command> [arguments]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  serve                Run the HTTP API (default)")
	fmt.Println("  connect              Test database connection")
	fmt.Println("  migrate              Run pending migrations")
	fmt.Println("  migrate:create <name> Create a new migration file")
	fmt.Println("  migrate:status       Show migration status")
	fmt.Println("  db:info              Show database information")
	fmt.Println("  scan <directory>     Import readings from CSV files in a directory (non-recursive)")
	fmt.Println("  test:insert          Insert sample genset readings")
	fmt.Println("  simulate             Emulate a genset controller against a running server")
	fmt.Println("  help                 Show this help message")
	fmt.Println("")
	fmt.Println("Configuration:")
	fmt.Println("  Edit config.yaml; DATABASE_PATH, DATABASE_DRIVER, LISTEN_ADDR, GROQ_API_KEY,")
	fmt.Println("  GROQ_MODEL and LOG_LEVEL override it")
	fmt.Println("")
	fmt.Println("CSV File Format:")
	fmt.Println("  Expected columns: timestamp,fuel_level,temperature")
	fmt.Println("  Timestamp format: 2025-07-15 08:32:42 or ISO8601")
}

func loadConfig() *config.Config {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	return cfg
}

func connectDatabase() (*config.Config, error) {
	cfg := loadConfig()

	if _, err := database.Connect(cfg); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return cfg, nil
}

func connectCommand() {
	logger.Println("Testing database connection...")

	cfg, err := connectDatabase()
	if err != nil {
		logger.Fatalf("Connection failed: %v\n", err)
	}
	defer database.Close()

	logger.Printf("Successfully connected to %s database\n", cfg.Database.Driver)

	info := database.GetDatabaseInfo(cfg)
	infoJSON, _ := json.MarshalIndent(info, "", "  ")
	logger.Printf("Connection info: %s\n", infoJSON)
}

func migrateCommand() {
	logger.Println("Running database migrations...")

	cfg, err := connectDatabase()
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v\n", err)
	}
	defer database.Close()

	runner := database.NewMigrationRunner(database.GetDB(), cfg)
	if err := runner.RunMigrations(); err != nil {
		logger.Fatalf("Migration failed: %v\n", err)
	}
}

func createMigrationCommand(name string) {
	logger.Printf("Creating migration: %s\n", name)

	cfg := loadConfig()
	runner := database.NewMigrationRunner(nil, cfg)

	filePath, err := runner.CreateMigration(name)
	if err != nil {
		logger.Fatalf("Failed to create migration: %v\n", err)
	}

	logger.Printf("Migration created: %s\n", filePath)
}

func migrationStatusCommand() {
	logger.Println("Checking migration status...")

	cfg, err := connectDatabase()
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v\n", err)
	}
	defer database.Close()

	runner := database.NewMigrationRunner(database.GetDB(), cfg)

	migrations, err := runner.GetMigrationStatus()
	if err != nil {
		logger.Fatalf("Failed to get migration status: %v\n", err)
	}

	if len(migrations) == 0 {
		logger.Println("No migrations found")
		return
	}

	logger.Printf("%-20s %-40s %s\n", "Version", "Name", "Status")
	logger.Println(strings.Repeat("-", 67))

	for _, migration := range migrations {
		status := "Pending"
		if migration.Applied {
			status = "Applied"
		}
		logger.Printf("%-20s %-40s %s\n", migration.Version, migration.Name, status)
	}
}

func dbInfoCommand() {
	fmt.Println("Database Information:")
	fmt.Println(strings.Repeat("=", 50))

	cfg, err := connectDatabase()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	info := database.GetDatabaseInfo(cfg)

	fmt.Printf("Database Type:     %v\n", info["driver"])
	fmt.Printf("Connection Status: %v\n", getConnectionStatusText(info["connected"]))
	fmt.Printf("Location:          %v\n", info["location"])

	if info["connected"] != true {
		fmt.Println("\nConnection failed - unable to retrieve detailed information")
		fmt.Println(strings.Repeat("=", 50))
		return
	}

	fmt.Println("\nConnection Pool:")
	fmt.Printf("  Max Connections: %v\n", info["max_open_connections"])
	fmt.Printf("  Open Connections:%v\n", info["open_connections"])
	fmt.Printf("  In Use:          %v\n", info["in_use"])
	fmt.Printf("  Idle:            %v\n", info["idle"])

	ctx := context.Background()
	store := database.NewReadingStore(database.GetDB())
	count, err := store.Count(ctx)
	if err != nil {
		fmt.Printf("\nFailed to count readings: %v\n", err)
		return
	}
	fmt.Println("\nData Information:")
	fmt.Printf("  Total Readings:  %d\n", count)

	if count > 0 {
		earliest, latest, err := store.Range(ctx)
		if err == nil {
			fmt.Printf("  Date Range:      %s to %s\n", earliest, latest)
		}
	}

	fmt.Println(strings.Repeat("=", 50))
}

func getConnectionStatusText(connected interface{}) string {
	if conn, ok := connected.(bool); ok && conn {
		return "Connected"
	}
	return "Disconnected"
}

func scanCommand(directoryPath string) {
	cfg, err := connectDatabase()
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v\n", err)
	}
	defer database.Close()

	if cfg.Migration.AutoMigrate {
		if err := database.AutoMigrate(database.GetDB()); err != nil {
			logger.Fatalf("Failed to migrate schema: %v\n", err)
		}
	}

	csvScanner := scanner.NewCSVScanner(database.NewReadingStore(database.GetDB()))
	summary, err := csvScanner.ScanDirectory(context.Background(), directoryPath)
	if err != nil {
		logger.Fatalf("Scan failed: %v\n", err)
	}

	logger.LogResult("Directory scan", summary.Failed == 0,
		fmt.Sprintf("%d new readings from %d file(s)", summary.Inserted, summary.Files))
}

// sampleReadings reproduces the bench data recorded while commissioning the
// first controller
func sampleReadings() []models.SensorReading {
	start := time.Date(2025, 7, 15, 8, 32, 42, 0, time.Local)
	readings := make([]models.SensorReading, 0, 9)
	for i := 0; i < 9; i++ {
		readings = append(readings, models.NewSensorReading(
			start.Add(time.Duration(i)*time.Minute),
			97-float64(i),
			22+0.2*float64(i),
		))
	}
	return readings
}

func testInsertCommand() {
	logger.Println("Inserting sample genset readings...")

	cfg, err := connectDatabase()
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v\n", err)
	}
	defer database.Close()

	if cfg.Migration.AutoMigrate {
		if err := database.AutoMigrate(database.GetDB()); err != nil {
			logger.Fatalf("Failed to migrate schema: %v\n", err)
		}
	}

	ctx := context.Background()
	store := database.NewReadingStore(database.GetDB())
	for _, r := range sampleReadings() {
		stored, err := store.Insert(ctx, r)
		switch {
		case err != nil:
			logger.Errorf("Failed to insert reading at %s: %v\n", r.Timestamp, err)
		case stored:
			logger.Printf("Inserted %s: fuel=%.1f%% temp=%.1f°C\n", r.Timestamp, r.FuelLevel, r.Temperature)
		default:
			logger.Printf("Skipped %s: already stored\n", r.Timestamp)
		}
	}

	recent, err := store.Recent(ctx, 20)
	if err != nil {
		logger.Fatalf("Failed to read back readings: %v\n", err)
	}
	logger.Println("Most recent readings:")
	for _, r := range recent {
		logger.Printf("  %s  fuel=%6.2f%%  temp=%6.2f°C\n", r.Timestamp, r.FuelLevel, r.Temperature)
	}
}

func simulateCommand() {
	cfg := loadConfig()

	interval := time.Duration(cfg.Simulator.Interval) * time.Second
	device := simulator.NewDevice(cfg.Simulator, time.Now().UnixNano())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := device.Run(ctx, interval); err != nil && ctx.Err() == nil {
		logger.Errorf("Simulator stopped: %v\n", err)
	}
	logger.Println("Simulator stopped")
}
