package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) {
	t.Helper()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(orig) })
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 7, cfg.Ingest.HexResolution)
	assert.Equal(t, 1000, cfg.Ingest.BatchSize)
	assert.Equal(t, 5, cfg.Ingest.HexTypeCap)
	assert.Equal(t, 0.7, cfg.Ingest.HubCloseWeight)
	assert.Equal(t, 0.3, cfg.Ingest.HubSizeWeight)
	assert.Equal(t, 5*time.Minute, cfg.Routing.CacheTTL)
	assert.Equal(t, 1.5, cfg.Routing.HealthPenaltyK)
	assert.Equal(t, 12.5, cfg.Travel.SpeedMps)
	assert.Equal(t, 30.0, cfg.Travel.MinSeconds)
	assert.Equal(t, 1800.0, cfg.Travel.MaxSeconds)
	assert.Equal(t, 1.3, cfg.Travel.FallbackInflation)
	assert.Empty(t, cfg.Store.DatabaseURL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("ATLAS_STORE_DATABASE_URL", "postgres://localhost:5432/atlas_test")
	t.Setenv("ATLAS_INGEST_HEX_RESOLUTION", "8")
	t.Setenv("ATLAS_TRAVEL_MAX_SECONDS", "900")
	t.Setenv("ATLAS_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost:5432/atlas_test", cfg.Store.DatabaseURL)
	assert.Equal(t, 8, cfg.Ingest.HexResolution)
	assert.Equal(t, 900.0, cfg.Travel.MaxSeconds)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_ConfigFile(t *testing.T) {
	chdirTemp(t)
	yaml := `
store:
  database_url: postgres://db:5432/atlas
ingest:
  hex_type_cap: 3
routing:
  cache_ttl: 90s
`
	require.NoError(t, os.WriteFile("config.yaml", []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://db:5432/atlas", cfg.Store.DatabaseURL)
	assert.Equal(t, 3, cfg.Ingest.HexTypeCap)
	assert.Equal(t, 90*time.Second, cfg.Routing.CacheTTL)
	// untouched keys keep their defaults
	assert.Equal(t, 1000, cfg.Ingest.BatchSize)
}

func TestLoad_MalformedConfigFile(t *testing.T) {
	chdirTemp(t)
	require.NoError(t, os.WriteFile("config.yaml", []byte("store: ["), 0o644))

	_, err := Load()
	require.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "json"}))
	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "console"}))
}

func TestInitLogger_BadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "chatty", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
