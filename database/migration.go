package database

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/praisemwanza53/genset-monitoring/config"
	"github.com/praisemwanza53/genset-monitoring/logger"

	"gorm.io/gorm"
)

// SchemaMigration records an applied SQL migration file
type SchemaMigration struct {
	ID          uint   `gorm:"primaryKey"`
	Version     string `gorm:"unique;not null;size:32"`
	Name        string `gorm:"not null;size:255"`
	AppliedAt   time.Time
	Description string
}

// MigrationFile represents a migration file on disk
type MigrationFile struct {
	Version     string
	Name        string
	Description string
	FilePath    string
	Applied     bool
}

// MigrationRunner applies the model schema and any hand-written SQL
// migrations. It is run out of band by the migrate commands.
type MigrationRunner struct {
	db             *gorm.DB
	migrationTable string
	migrationDir   string
}

// NewMigrationRunner creates a new migration runner
func NewMigrationRunner(db *gorm.DB, cfg *config.Config) *MigrationRunner {
	return &MigrationRunner{
		db:             db,
		migrationTable: cfg.Migration.MigrationTable,
		migrationDir:   cfg.Migration.Directory,
	}
}

func (mr *MigrationRunner) table() *gorm.DB {
	return mr.db.Table(mr.migrationTable)
}

// InitializeMigrationTable creates the migration table if it doesn't exist
func (mr *MigrationRunner) InitializeMigrationTable() error {
	return mr.table().AutoMigrate(&SchemaMigration{})
}

// GetMigrationFiles returns all migration files from the migrations directory
func (mr *MigrationRunner) GetMigrationFiles() ([]MigrationFile, error) {
	var migrationFiles []MigrationFile

	if _, err := os.Stat(mr.migrationDir); os.IsNotExist(err) {
		return migrationFiles, nil
	}

	err := filepath.WalkDir(mr.migrationDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !strings.HasSuffix(d.Name(), ".sql") {
			return nil
		}

		// YYYYMMDD_HHMMSS_description.sql
		filename := d.Name()
		parts := strings.SplitN(filename, "_", 3)
		if len(parts) < 3 {
			return fmt.Errorf("invalid migration filename format: %s (expected: YYYYMMDD_HHMMSS_description.sql)", filename)
		}

		description := strings.TrimSuffix(parts[2], ".sql")
		migrationFiles = append(migrationFiles, MigrationFile{
			Version:     parts[0] + "_" + parts[1],
			Name:        strings.ReplaceAll(description, "_", " "),
			Description: description,
			FilePath:    path,
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory: %w", err)
	}

	sort.Slice(migrationFiles, func(i, j int) bool {
		return migrationFiles[i].Version < migrationFiles[j].Version
	})

	return migrationFiles, nil
}

// appliedVersions returns the set of versions recorded in the migration table
func (mr *MigrationRunner) appliedVersions() (map[string]bool, error) {
	if err := mr.InitializeMigrationTable(); err != nil {
		return nil, fmt.Errorf("failed to initialize migration table: %w", err)
	}

	var applied []SchemaMigration
	if err := mr.table().Order("version ASC").Find(&applied).Error; err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	versions := make(map[string]bool, len(applied))
	for _, migration := range applied {
		versions[migration.Version] = true
	}
	return versions, nil
}

// GetMigrationStatus returns every migration file with its applied flag set
func (mr *MigrationRunner) GetMigrationStatus() ([]MigrationFile, error) {
	files, err := mr.GetMigrationFiles()
	if err != nil {
		return nil, err
	}

	applied, err := mr.appliedVersions()
	if err != nil {
		return nil, err
	}

	for i := range files {
		files[i].Applied = applied[files[i].Version]
	}
	return files, nil
}

// GetPendingMigrations returns migrations that haven't been applied yet
func (mr *MigrationRunner) GetPendingMigrations() ([]MigrationFile, error) {
	files, err := mr.GetMigrationStatus()
	if err != nil {
		return nil, err
	}

	var pending []MigrationFile
	for _, migration := range files {
		if !migration.Applied {
			pending = append(pending, migration)
		}
	}
	return pending, nil
}

// RunMigrations brings the model tables up to date and then executes all
// pending SQL migrations
func (mr *MigrationRunner) RunMigrations() error {
	if err := AutoMigrate(mr.db); err != nil {
		return err
	}

	pendingMigrations, err := mr.GetPendingMigrations()
	if err != nil {
		return fmt.Errorf("failed to get pending migrations: %w", err)
	}

	if len(pendingMigrations) == 0 {
		logger.Println("No pending migrations to run")
		return nil
	}

	logger.Printf("Running %d pending migration(s)...\n", len(pendingMigrations))

	for _, migration := range pendingMigrations {
		if err := mr.runSingleMigration(migration); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", migration.Version, err)
		}
	}

	logger.Println("All migrations completed successfully")
	return nil
}

// runSingleMigration executes a single migration inside a transaction
func (mr *MigrationRunner) runSingleMigration(migrationFile MigrationFile) error {
	logger.Printf("Running migration: %s - %s\n", migrationFile.Version, migrationFile.Name)

	content, err := os.ReadFile(migrationFile.FilePath)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	return mr.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(string(content)).Error; err != nil {
			return fmt.Errorf("failed to execute migration SQL: %w", err)
		}

		record := SchemaMigration{
			Version:     migrationFile.Version,
			Name:        migrationFile.Name,
			AppliedAt:   time.Now(),
			Description: migrationFile.Description,
		}
		if err := tx.Table(mr.migrationTable).Create(&record).Error; err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}

		return nil
	})
}

// CreateMigration creates a new migration file with the given name
func (mr *MigrationRunner) CreateMigration(name string) (string, error) {
	if err := os.MkdirAll(mr.migrationDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create migrations directory: %w", err)
	}

	now := time.Now()
	version := now.Format("20060102_150405")

	cleanName := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
	filename := fmt.Sprintf("%s_%s.sql", version, cleanName)
	filePath := filepath.Join(mr.migrationDir, filename)

	template := fmt.Sprintf(`-- Migration: %s
-- Created: %s
--
-- sensor_data(timestamp TEXT PRIMARY KEY, fuel_level REAL, temperature REAL)
-- is managed by the model schema; add indexes or side tables here.
-- Example:
-- CREATE INDEX IF NOT EXISTS idx_sensor_data_fuel ON sensor_data (fuel_level);
`, name, now.Format("2006-01-02 15:04:05"))

	if err := os.WriteFile(filePath, []byte(template), 0644); err != nil {
		return "", fmt.Errorf("failed to create migration file: %w", err)
	}

	return filePath, nil
}
