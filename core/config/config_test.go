package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "deck.db", cfg.Database.Name)
	assert.Equal(t, "deck-attachments", cfg.Storage.Bucket)
	assert.Equal(t, 4, cfg.Pool.Workers)
	assert.Equal(t, 64, cfg.Pool.QueueSize)
	assert.Equal(t, 30, cfg.Sync.TimeoutSeconds)
	assert.Equal(t, 300, cfg.Sync.CapabilitiesTTLSeconds)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("POOL_WORKERS", "9")
	t.Setenv("DATABASE_DRIVER", "mysql")
	t.Setenv("SYNC_USER_AGENT", "tests")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Pool.Workers)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "tests", cfg.Sync.UserAgent)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SERVER_API_KEY=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("SERVER_API_KEY") })

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Server.ApiKey)
}
