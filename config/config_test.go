package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DATABASE_DRIVER", "DATABASE_PATH", "LISTEN_ADDR", "GROQ_API_KEY", "GROQ_MODEL", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.SQLite.Path != DefaultSQLitePath {
		t.Fatalf("database = %+v", cfg.Database)
	}
	if cfg.Server.Address != ":5000" {
		t.Fatalf("address = %q", cfg.Server.Address)
	}
	if cfg.Alerts.FuelLow != 30 || cfg.Alerts.TemperatureHigh != 90 {
		t.Fatalf("alerts = %+v", cfg.Alerts)
	}
	if cfg.AdvisoryEnabled() {
		t.Fatal("advisory enabled without a key")
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  address: ":8080"
alerts:
  fuel_low: 25
  raise_buzzer: true
simulator:
  interval: 0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Address != ":8080" || cfg.Alerts.FuelLow != 25 || !cfg.Alerts.RaiseBuzzer {
		t.Fatalf("file values not applied: %+v %+v", cfg.Server, cfg.Alerts)
	}
	if cfg.Alerts.TemperatureHigh != 90 {
		t.Fatalf("temperature_high = %v", cfg.Alerts.TemperatureHigh)
	}
	if cfg.Database.SQLite.Path != DefaultSQLitePath || cfg.Simulator.Interval != 5 {
		t.Fatalf("defaults lost: %+v %+v", cfg.Database.SQLite, cfg.Simulator)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "database:\n  sqlite:\n    path: from-file.db\n")
	t.Setenv("DATABASE_PATH", "/var/lib/genset/readings.db")
	t.Setenv("LISTEN_ADDR", "127.0.0.1:9000")
	t.Setenv("GROQ_API_KEY", "gsk_test")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database.SQLite.Path != "/var/lib/genset/readings.db" {
		t.Fatalf("sqlite path = %q", cfg.Database.SQLite.Path)
	}
	if cfg.Server.Address != "127.0.0.1:9000" || cfg.Logging.LogLevel != "debug" {
		t.Fatalf("server = %+v, logging = %+v", cfg.Server, cfg.Logging)
	}
	if !cfg.AdvisoryEnabled() {
		t.Fatal("advisory not enabled by GROQ_API_KEY")
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name, content, want string
	}{
		{"unknown driver", "database:\n  driver: oracle\n", "unsupported database driver"},
		{"mysql without host", "database:\n  driver: mysql\n", "mysql host is required"},
		{"postgres without user", "database:\n  driver: postgres\n  postgres:\n    host: db\n", "postgres user is required"},
		{"negative threshold", "alerts:\n  fuel_low: -1\n", "fuel_low"},
		{"bad yaml", "server: [", "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestGetDSN(t *testing.T) {
	cfg := Default()
	cfg.Database.SQLite.Path = "data/genset.db"
	if got := cfg.GetDSN(); got != "data/genset.db?_journal_mode=WAL&_busy_timeout=5000" {
		t.Fatalf("sqlite dsn = %q", got)
	}

	cfg.Database.SQLite.Path = "file:genset.db?cache=shared"
	if got := cfg.GetDSN(); got != "file:genset.db?cache=shared" {
		t.Fatalf("explicit sqlite dsn rewritten: %q", got)
	}

	cfg.Database.Driver = "postgres"
	cfg.Database.PostgreSQL = PostgresConfig{Host: "db", Port: 5432, User: "genset", Password: "pw", DBName: "genset", SSLMode: "disable", TimeZone: "UTC"}
	want := "host=db port=5432 user=genset password=pw dbname=genset sslmode=disable TimeZone=UTC"
	if got := cfg.GetDSN(); got != want {
		t.Fatalf("postgres dsn = %q", got)
	}
	if loc := cfg.StorageLocation(); strings.Contains(loc, "pw") {
		t.Fatalf("storage location leaks password: %q", loc)
	}
}
