package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/praisemwanza53/genset-monitoring/config"
)

func TestMigrationRunnerAppliesPendingFilesOnce(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Database.SQLite.Path = filepath.Join(dir, "genset.db")
	cfg.Logging.LogLevel = "error"
	cfg.Migration.Directory = filepath.Join(dir, "migrations")

	db, err := Connect(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	runner := NewMigrationRunner(db, cfg)
	path, err := runner.CreateMigration("Add fuel index")
	if err != nil {
		t.Fatal(err)
	}
	sql := "CREATE INDEX IF NOT EXISTS idx_sensor_data_fuel ON sensor_data (fuel_level);"
	if err := os.WriteFile(path, []byte(sql), 0644); err != nil {
		t.Fatal(err)
	}

	pending, err := runner.GetPendingMigrations()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].Name != "add fuel index" {
		t.Fatalf("pending = %+v", pending)
	}

	if err := runner.RunMigrations(); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	if !db.Migrator().HasTable("sensor_data") {
		t.Fatal("sensor_data table not created")
	}

	status, err := runner.GetMigrationStatus()
	if err != nil {
		t.Fatal(err)
	}
	if len(status) != 1 || !status[0].Applied {
		t.Fatalf("status = %+v", status)
	}

	// second run has nothing to do
	if err := runner.RunMigrations(); err != nil {
		t.Fatalf("second run: %v", err)
	}
}

func TestGetMigrationFilesRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.sql"), []byte("SELECT 1;"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Migration.Directory = dir

	runner := NewMigrationRunner(nil, cfg)
	if _, err := runner.GetMigrationFiles(); err == nil {
		t.Fatal("expected error for malformed migration filename")
	}
}
