package config

import (
	"os"
	"strconv"

	"gopower/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Report   ReportConfig
	Analysis AnalysisConfig
}

// DatabaseConfig holds database connection settings. The URL is optional:
// without it the API runs analyses but does not persist them.
type DatabaseConfig struct {
	URL string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port string
}

// ReportConfig holds report output settings
type ReportConfig struct {
	Dir string
}

// AnalysisConfig holds analysis defaults applied when a request omits them
type AnalysisConfig struct {
	Alpha float64
	Seed  int64
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Server: ServerConfig{
			Port: getEnvOrDefault("PORT", "8080"),
		},
		Report: ReportConfig{
			Dir: getEnvOrDefault("REPORT_DIR", "./reports"),
		},
		Analysis: AnalysisConfig{
			Alpha: getEnvFloatOrDefault("DEFAULT_ALPHA", 0.05),
			Seed:  getEnvInt64OrDefault("DEFAULT_SEED", 1),
		},
	}

	if config.Analysis.Alpha <= 0 || config.Analysis.Alpha >= 1 {
		return nil, errors.ConfigInvalid("DEFAULT_ALPHA must be inside (0,1)")
	}
	return config, nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloatOrDefault(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvInt64OrDefault(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
