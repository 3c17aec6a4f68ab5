package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skycast/skycast/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.DBPath)
	assert.Equal(t, 15*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 5*time.Second, cfg.PositionTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("SKYCAST_DB", "/tmp/skycast.db")
	t.Setenv("SKYCAST_CACHE_TTL", "5m")
	t.Setenv("SKYCAST_POSITION_TIMEOUT", "2s")
	t.Setenv("SKYCAST_LOG_LEVEL", "debug")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/skycast.db", cfg.DBPath)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 2*time.Second, cfg.PositionTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("SKYCAST_CACHE_TTL", "soon")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SKYCAST_CACHE_TTL")
}
