package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, "INR", cfg.App.Currency)
	assert.Equal(t, 15*time.Minute, cfg.Booking.HoldTTL)
	assert.Equal(t, 3, cfg.Booking.RetryMax)
	assert.Equal(t, 100*time.Millisecond, cfg.Booking.RetryInitialDelay)
	assert.Equal(t, 2.0, cfg.Booking.RetryMultiplier)
	assert.Equal(t, 168*time.Hour, cfg.Simulator.Window)
	assert.Equal(t, "flight-booking-queue", cfg.Temporal.TaskQueue)
	assert.Equal(t, "memory", cfg.Cache.Backend)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("BOOKING_HOLD_TTL", "5m")
	t.Setenv("SIMULATOR_SEED", "42")
	t.Setenv("CACHE_BACKEND", "redis")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTP.Port)
	assert.Equal(t, 5*time.Minute, cfg.Booking.HoldTTL)
	assert.Equal(t, int64(42), cfg.Simulator.Seed)
	assert.Equal(t, "redis", cfg.Cache.Backend)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("http:\n  port: \"7070\"\nbooking:\n  hold_ttl: 20m\nsimulator:\n  interval: 10m\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.HTTP.Port)
	assert.Equal(t, 20*time.Minute, cfg.Booking.HoldTTL)
	assert.Equal(t, 10*time.Minute, cfg.Simulator.Interval)
	assert.Equal(t, "info", cfg.Log.Level)
}
