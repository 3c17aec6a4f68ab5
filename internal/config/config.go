// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration for the skycast app.
type Config struct {
	// DBPath is the SQLite file holding saved locations. Empty means
	// in-memory only (nothing survives a restart).
	DBPath string

	// CacheTTL is the weather bundle freshness window.
	CacheTTL time.Duration

	// PositionTimeout bounds the device position lookup.
	PositionTimeout time.Duration

	// LogLevel is a zerolog level name.
	LogLevel string
}

// Load reads configuration from the environment with sensible defaults.
// A .env file is honoured when present.
func Load() (*Config, error) {
	// Missing .env is the normal case outside development.
	_ = godotenv.Load()

	cfg := &Config{
		DBPath:   os.Getenv("SKYCAST_DB"),
		LogLevel: getenvDefault("SKYCAST_LOG_LEVEL", "info"),
	}

	ttl, err := getenvDuration("SKYCAST_CACHE_TTL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.CacheTTL = ttl

	posTimeout, err := getenvDuration("SKYCAST_POSITION_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.PositionTimeout = posTimeout

	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
