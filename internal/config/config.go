// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Storage settings.
	RecordDir   string // Directory for persisted record files.
	CatalogPath string // SQLite catalog path. Empty = catalog disabled.

	// Replay settings.
	Cadence time.Duration // Interval between autoplay ticks.

	// Demo feed settings.
	FeedInterval time.Duration // Interval between generated live updates.

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		RecordDir:    envStr("CHRONICLE_RECORD_DIR", "records"),
		CatalogPath:  envStr("CHRONICLE_CATALOG_PATH", "records/catalog.db"),
		Cadence:      envDuration("CHRONICLE_REPLAY_CADENCE", time.Second),
		FeedInterval: envDuration("CHRONICLE_FEED_INTERVAL", 2*time.Second),
		OTELEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure: envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:  envStr("OTEL_SERVICE_NAME", "chronicle"),
		LogLevel:     envStr("CHRONICLE_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.RecordDir == "" {
		return fmt.Errorf("config: CHRONICLE_RECORD_DIR is required")
	}
	if c.Cadence <= 0 {
		return fmt.Errorf("config: CHRONICLE_REPLAY_CADENCE must be positive")
	}
	if c.FeedInterval <= 0 {
		return fmt.Errorf("config: CHRONICLE_FEED_INTERVAL must be positive")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
