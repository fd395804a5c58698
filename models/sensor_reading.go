package models

import (
	"time"
)

// TimestampLayout is the canonical reading timestamp format. Lexicographic
// order of formatted values matches chronological order.
const TimestampLayout = "2006-01-02 15:04:05"

// SensorReading is one fuel/temperature sample pushed by the genset controller
type SensorReading struct {
	Timestamp   string  `gorm:"primaryKey;size:19" json:"timestamp"`
	FuelLevel   float64 `gorm:"column:fuel_level" json:"fuel_level"`
	Temperature float64 `gorm:"column:temperature" json:"temperature"`
}

// TableName customizes the table name
func (SensorReading) TableName() string {
	return "sensor_data"
}

// FormatTimestamp renders t in the canonical reading layout
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// NewSensorReading builds a reading stamped with t
func NewSensorReading(t time.Time, fuelLevel, temperature float64) SensorReading {
	return SensorReading{
		Timestamp:   FormatTimestamp(t),
		FuelLevel:   fuelLevel,
		Temperature: temperature,
	}
}

// GetAllModels returns all models for migration
func GetAllModels() []interface{} {
	return []interface{}{
		&SensorReading{},
	}
}
