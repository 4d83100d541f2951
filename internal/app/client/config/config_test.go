package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	t.Setenv("DATA_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsLocal())
	assert.Equal(t, defaultServerAddress, cfg.ServerAddress)
	assert.Equal(t, 15*time.Minute, cfg.SyncInterval)
	assert.Equal(t, 30*time.Second, cfg.ProbeInterval)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, filepath.Join(dir, "pharmasync.db"), cfg.DBPath())
	assert.Empty(t, cfg.OTLPEndpoint)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APP_ENV", "prod")
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("SERVER_ADDRESS", "https://pharmacy.example")
	t.Setenv("API_TOKEN", "secret")
	t.Setenv("SYNC_INTERVAL", "5m")
	t.Setenv("MAX_RETRIES", "3")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProd())
	assert.False(t, cfg.IsDev())
	assert.Equal(t, "https://pharmacy.example", cfg.ServerAddress)
	assert.Equal(t, "secret", cfg.APIToken)
	assert.Equal(t, 5*time.Minute, cfg.SyncInterval)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, "collector:4317", cfg.OTLPEndpoint)
}

func TestConfig_Validate(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server_address")
	assert.Contains(t, err.Error(), "max_retries")
}
