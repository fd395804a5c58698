package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is read when Load is called with an empty path
const DefaultConfigPath = "config.yaml"

// DefaultSQLitePath is the database file used when nothing else is configured
var DefaultSQLitePath = filepath.Join("logs", "genset_data.db")

// ServerConfig holds HTTP listener configuration
type ServerConfig struct {
	Address      string   `yaml:"address"`
	ReadTimeout  int      `yaml:"read_timeout"`
	WriteTimeout int      `yaml:"write_timeout"`
	IdleTimeout  int      `yaml:"idle_timeout"`
	CORSOrigins  []string `yaml:"cors_origins"`
}

// DatabaseConfig holds all database configuration
type DatabaseConfig struct {
	Driver         string         `yaml:"driver"`
	MySQL          MySQLConfig    `yaml:"mysql"`
	PostgreSQL     PostgresConfig `yaml:"postgres"`
	SQLite         SQLiteConfig   `yaml:"sqlite"`
	ConnectionPool PoolConfig     `yaml:"connection_pool"`
}

// MySQLConfig holds MySQL specific configuration
type MySQLConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	DBName    string `yaml:"dbname"`
	Charset   string `yaml:"charset"`
	ParseTime bool   `yaml:"parse_time"`
	Loc       string `yaml:"loc"`
}

// PostgresConfig holds PostgreSQL specific configuration
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	TimeZone string `yaml:"timezone"`
}

// SQLiteConfig holds SQLite specific configuration
type SQLiteConfig struct {
	Path        string `yaml:"path"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// PoolConfig holds connection pool configuration
type PoolConfig struct {
	MaxIdleConns    int `yaml:"max_idle_conns"`
	MaxOpenConns    int `yaml:"max_open_conns"`
	ConnMaxLifetime int `yaml:"conn_max_lifetime"`
}

// MigrationConfig holds migration specific configuration
type MigrationConfig struct {
	AutoMigrate    bool   `yaml:"auto_migrate"`
	MigrationTable string `yaml:"migration_table"`
	Directory      string `yaml:"directory"`
}

// LoggingConfig holds logging specific configuration
type LoggingConfig struct {
	LogFile      string `yaml:"log_file"`
	LogToConsole bool   `yaml:"log_to_console"`
	LogLevel     string `yaml:"log_level"`
}

// AlertsConfig holds the thresholds used to flag readings
type AlertsConfig struct {
	FuelLow         float64 `yaml:"fuel_low"`
	TemperatureHigh float64 `yaml:"temperature_high"`
	RaiseBuzzer     bool    `yaml:"raise_buzzer"`
}

// AdvisoryConfig holds settings for the language-model commentary client
type AdvisoryConfig struct {
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Endpoint string `yaml:"endpoint"`
	Timeout  int    `yaml:"timeout"`
}

// SimulatorConfig holds settings for the device emulator
type SimulatorConfig struct {
	TargetURL string `yaml:"target_url"`
	Interval  int    `yaml:"interval"`
}

// Config holds the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Migration MigrationConfig `yaml:"migration"`
	Logging   LoggingConfig   `yaml:"logging"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Advisory  AdvisoryConfig  `yaml:"advisory"`
	Simulator SimulatorConfig `yaml:"simulator"`
}

// Default returns a configuration that runs the service against a local
// SQLite file with no config file present
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      ":5000",
			ReadTimeout:  10,
			WriteTimeout: 30,
			IdleTimeout:  60,
			CORSOrigins:  []string{"*"},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: DefaultSQLitePath, BusyTimeout: 5000},
			ConnectionPool: PoolConfig{
				MaxIdleConns:    5,
				MaxOpenConns:    10,
				ConnMaxLifetime: 3600,
			},
		},
		Migration: MigrationConfig{
			AutoMigrate:    true,
			MigrationTable: "migrations",
			Directory:      "migrations",
		},
		Logging: LoggingConfig{
			LogFile:      filepath.Join("logs", "api_server.log"),
			LogToConsole: true,
			LogLevel:     "info",
		},
		Alerts: AlertsConfig{
			FuelLow:         30,
			TemperatureHigh: 90,
		},
		Advisory: AdvisoryConfig{
			Model:    "llama-3.1-8b-instant",
			Endpoint: "https://api.groq.com/openai/v1",
			Timeout:  15,
		},
		Simulator: SimulatorConfig{
			TargetURL: "http://localhost:5000",
			Interval:  5,
		},
	}
}

// Load loads configuration from the specified YAML file. A missing file
// leaves the defaults in place; environment overrides are applied last.
func Load(configPath string) (*Config, error) {
	// Set default config path if not provided
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	config := Default()

	// Read the config file
	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnv()
	config.fillDefaults()

	// Validate the configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnv overrides file values with environment settings
func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		c.Database.SQLite.Path = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.Address = v
	}
	if v := os.Getenv("GROQ_API_KEY"); v != "" {
		c.Advisory.APIKey = v
	}
	if v := os.Getenv("GROQ_MODEL"); v != "" {
		c.Advisory.Model = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.LogLevel = v
	}
}

// fillDefaults restores defaults for values a partial config file blanked out
func (c *Config) fillDefaults() {
	d := Default()
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" {
		c.Database.Driver = d.Database.Driver
	}
	if c.Database.Driver == "sqlite" && c.Database.SQLite.Path == "" {
		c.Database.SQLite.Path = d.Database.SQLite.Path
	}
	if c.Server.Address == "" {
		c.Server.Address = d.Server.Address
	}
	if c.Migration.MigrationTable == "" {
		c.Migration.MigrationTable = d.Migration.MigrationTable
	}
	if c.Migration.Directory == "" {
		c.Migration.Directory = d.Migration.Directory
	}
	if c.Logging.LogFile == "" {
		c.Logging.LogFile = d.Logging.LogFile
	}
	if c.Logging.LogLevel == "" {
		c.Logging.LogLevel = d.Logging.LogLevel
	}
	if c.Advisory.Endpoint == "" {
		c.Advisory.Endpoint = d.Advisory.Endpoint
	}
	if c.Advisory.Model == "" {
		c.Advisory.Model = d.Advisory.Model
	}
	if c.Advisory.Timeout <= 0 {
		c.Advisory.Timeout = d.Advisory.Timeout
	}
	if c.Simulator.Interval <= 0 {
		c.Simulator.Interval = d.Simulator.Interval
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql":
		if c.Database.MySQL.Host == "" {
			return fmt.Errorf("mysql host is required")
		}
		if c.Database.MySQL.User == "" {
			return fmt.Errorf("mysql user is required")
		}
		if c.Database.MySQL.DBName == "" {
			return fmt.Errorf("mysql database name is required")
		}
	case "postgres":
		if c.Database.PostgreSQL.Host == "" {
			return fmt.Errorf("postgres host is required")
		}
		if c.Database.PostgreSQL.User == "" {
			return fmt.Errorf("postgres user is required")
		}
		if c.Database.PostgreSQL.DBName == "" {
			return fmt.Errorf("postgres database name is required")
		}
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Alerts.FuelLow < 0 {
		return fmt.Errorf("alerts.fuel_low must not be negative")
	}

	return nil
}

// GetDSN returns the database connection string based on the configured driver
func (c *Config) GetDSN() string {
	switch c.Database.Driver {
	case "mysql":
		mysql := c.Database.MySQL
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=%s",
			mysql.User, mysql.Password, mysql.Host, mysql.Port, mysql.DBName,
			mysql.Charset, mysql.ParseTime, mysql.Loc)
		return dsn
	case "postgres":
		pg := c.Database.PostgreSQL
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
			pg.Host, pg.Port, pg.User, pg.Password, pg.DBName, pg.SSLMode, pg.TimeZone)
		return dsn
	case "sqlite":
		// WAL lets readers proceed while the single writer commits
		path := c.Database.SQLite.Path
		if strings.Contains(path, "?") {
			return path
		}
		busy := c.Database.SQLite.BusyTimeout
		if busy <= 0 {
			busy = 5000
		}
		return fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d", path, busy)
	default:
		return ""
	}
}

// StorageLocation describes where readings are persisted, without credentials
func (c *Config) StorageLocation() string {
	switch c.Database.Driver {
	case "mysql":
		return fmt.Sprintf("mysql://%s:%d/%s", c.Database.MySQL.Host, c.Database.MySQL.Port, c.Database.MySQL.DBName)
	case "postgres":
		return fmt.Sprintf("postgres://%s:%d/%s", c.Database.PostgreSQL.Host, c.Database.PostgreSQL.Port, c.Database.PostgreSQL.DBName)
	case "sqlite":
		return c.Database.SQLite.Path
	default:
		return ""
	}
}

// AdvisoryEnabled reports whether the commentary client has credentials
func (c *Config) AdvisoryEnabled() bool {
	return strings.TrimSpace(c.Advisory.APIKey) != ""
}
