package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicle-dev/chronicle/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "chronicle.db", cfg.DB.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.FastModel)
	assert.Equal(t, 30*time.Second, cfg.AI.Timeout())
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL())
	assert.Equal(t, 2*time.Second, cfg.Retry.Delay())
	assert.Equal(t, 500*time.Millisecond, cfg.Summary.WriteInterval())
	assert.True(t, cfg.Scheduler.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CHRONICLE_SERVER_PORT", "9090")
	t.Setenv("CHRONICLE_DB_PATH", "/tmp/other.db")
	t.Setenv("CHRONICLE_AI_API_KEY", "sk-test")
	t.Setenv("CHRONICLE_AI_FAST_MODEL", "small-model")
	t.Setenv("CHRONICLE_CACHE_TTL_MINUTES", "60")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/tmp/other.db", cfg.DB.Path)
	assert.Equal(t, "sk-test", cfg.AI.APIKey)
	assert.Equal(t, "small-model", cfg.AI.FastModel)
	assert.Equal(t, time.Hour, cfg.Cache.TTL())
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("CHRONICLE_SERVER_PORT", "not-a-port")

	_, err := config.Load()

	require.Error(t, err)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7070
ai:
  fast_model: file-model
  timeout_seconds: 10
retry:
  delay_millis: 100
`), 0o600))
	t.Setenv("CHRONICLE_CONFIG_PATH", path)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "file-model", cfg.AI.FastModel)
	assert.Equal(t, 10*time.Second, cfg.AI.Timeout())
	assert.Equal(t, 100*time.Millisecond, cfg.Retry.Delay())
	// File values unspecified keep their defaults.
	assert.Equal(t, "chronicle.db", cfg.DB.Path)
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0o600))
	t.Setenv("CHRONICLE_CONFIG_PATH", path)
	t.Setenv("CHRONICLE_SERVER_PORT", "9090")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
}
