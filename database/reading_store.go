package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/praisemwanza53/genset-monitoring/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// DefaultRecentLimit is used when a caller asks for a non-positive limit
	DefaultRecentLimit = 100
	// MaxRecentLimit caps history queries
	MaxRecentLimit = 1000

	insertBatchSize = 500
)

// ReadingStore persists sensor readings keyed by timestamp. Inserts ignore
// conflicts so a re-delivered reading keeps the first stored values.
type ReadingStore struct {
	db *gorm.DB
	// one physical writer at a time; readers are not blocked
	writeMu sync.Mutex
}

// NewReadingStore creates a reading store backed by db
func NewReadingStore(db *gorm.DB) *ReadingStore {
	return &ReadingStore{db: db}
}

// ClampLimit maps a requested history size onto [1, MaxRecentLimit]
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		return MaxRecentLimit
	}
	return limit
}

func ignoreConflicts() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "timestamp"}},
		DoNothing: true,
	}
}

func newestFirst() clause.OrderByColumn {
	return clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}, Desc: true}
}

// Insert stores reading unless one with the same timestamp exists. It
// reports whether a new row was created.
func (s *ReadingStore) Insert(ctx context.Context, reading models.SensorReading) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	result := s.db.WithContext(ctx).Clauses(ignoreConflicts()).Create(&reading)
	if result.Error != nil {
		return false, fmt.Errorf("failed to insert reading %s: %w", reading.Timestamp, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// InsertBatch stores readings in batches with the same ignore-on-conflict
// semantics as Insert and returns how many rows were created
func (s *ReadingStore) InsertBatch(ctx context.Context, readings []models.SensorReading) (int64, error) {
	if len(readings) == 0 {
		return 0, nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var stored int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := 0; i < len(readings); i += insertBatchSize {
			end := i + insertBatchSize
			if end > len(readings) {
				end = len(readings)
			}
			batch := readings[i:end]
			result := tx.Clauses(ignoreConflicts()).Create(&batch)
			if result.Error != nil {
				return result.Error
			}
			stored += result.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert %d readings: %w", len(readings), err)
	}
	return stored, nil
}

// Latest returns the reading with the greatest timestamp. found is false
// when the store is empty.
func (s *ReadingStore) Latest(ctx context.Context) (reading models.SensorReading, found bool, err error) {
	result := s.db.WithContext(ctx).Order(newestFirst()).Limit(1).Find(&reading)
	if result.Error != nil {
		return models.SensorReading{}, false, fmt.Errorf("failed to query latest reading: %w", result.Error)
	}
	return reading, result.RowsAffected > 0, nil
}

// Recent returns up to limit readings, newest first. limit is clamped with
// ClampLimit.
func (s *ReadingStore) Recent(ctx context.Context, limit int) ([]models.SensorReading, error) {
	readings := make([]models.SensorReading, 0)
	result := s.db.WithContext(ctx).Order(newestFirst()).Limit(ClampLimit(limit)).Find(&readings)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query recent readings: %w", result.Error)
	}
	return readings, nil
}

// Count returns the number of stored readings
func (s *ReadingStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.SensorReading{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count readings: %w", err)
	}
	return count, nil
}

// Range returns the earliest and latest stored timestamps
func (s *ReadingStore) Range(ctx context.Context) (earliest, latest string, err error) {
	var bounds struct {
		Earliest *string
		Latest   *string
	}
	err = s.db.WithContext(ctx).Model(&models.SensorReading{}).
		Select("MIN(timestamp) AS earliest, MAX(timestamp) AS latest").
		Scan(&bounds).Error
	if err != nil {
		return "", "", fmt.Errorf("failed to query reading range: %w", err)
	}
	if bounds.Earliest != nil {
		earliest = *bounds.Earliest
	}
	if bounds.Latest != nil {
		latest = *bounds.Latest
	}
	return earliest, latest, nil
}

// Ping performs a round trip to the underlying database
func (s *ReadingStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}
