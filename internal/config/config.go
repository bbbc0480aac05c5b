// Package config loads census loader settings from environment variables.
// Values may come from a .env file read before Load is called; every field
// has a default except the database URL, which only the commands that touch
// the database require.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig
	Census   CensusConfig
	Match    MatchConfig
	Load     LoadConfig
	Server   ServerConfig
	Logging  LoggingConfig
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"8"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// CensusConfig describes the two input tables.
type CensusConfig struct {
	NationalityFile string `env:"CENSUS_NATIONALITY_FILE" default:"data/nationality.xlsx"`
	AgeSexFile      string `env:"CENSUS_AGESEX_FILE" default:"data/agesex.xlsx"`

	// Sheet selects a worksheet by name; empty means the first sheet.
	Sheet string `env:"CENSUS_SHEET"`

	// CSVEncoding is utf-8 or windows-1251.
	CSVEncoding  string `env:"CENSUS_CSV_ENCODING" default:"utf-8"`
	CSVDelimiter string `env:"CENSUS_CSV_DELIMITER" default:","`

	// BaseYear is the reference year birth-year ranges are computed from.
	BaseYear int `env:"CENSUS_BASE_YEAR" default:"2010"`

	// ExpectedRegions is the region count the nationality scan is checked
	// against; 0 disables the check.
	ExpectedRegions int `env:"CENSUS_EXPECTED_REGIONS" default:"85"`
	RegionTolerance int `env:"CENSUS_REGION_TOLERANCE" default:"10"`
}

// MatchConfig controls how regions of the two tables are joined.
type MatchConfig struct {
	// Mode is exact, canonical or fuzzy.
	Mode        string `env:"MATCH_MODE" default:"exact"`
	MaxDistance int    `env:"MATCH_MAX_DISTANCE" default:"3"`
}

// LoadConfig holds database load settings.
type LoadConfig struct {
	// BatchSize is the number of facts sent per round trip.
	BatchSize int           `env:"LOAD_BATCH_SIZE" default:"1000"`
	Timeout   time.Duration `env:"LOAD_TIMEOUT" default:"10m"`

	MaleLabel   string `env:"LOAD_MALE_LABEL" default:"Мужчины"`
	FemaleLabel string `env:"LOAD_FEMALE_LABEL" default:"Женщины"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout bounds API handlers; loads use LOAD_TIMEOUT instead.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// MaxUploadSize caps preview uploads in bytes (default: 50MB).
	MaxUploadSize int64 `env:"SERVER_MAX_UPLOAD_SIZE" default:"52428800"`

	// APIKeys guards the endpoints that write to the database. Empty
	// disables the check.
	APIKeys []string `env:"SERVER_API_KEYS"`

	// TrustedProxies lists CIDRs whose X-Real-IP / X-Forwarded-For headers
	// are believed.
	TrustedProxies []string `env:"SERVER_TRUSTED_PROXIES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`

	// File, when set, receives a copy of every entry and is rotated by size.
	File           string `env:"LOG_FILE"`
	FileMaxSizeMB  int    `env:"LOG_FILE_MAX_SIZE_MB" default:"100"`
	FileMaxBackups int    `env:"LOG_FILE_MAX_BACKUPS" default:"5"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
