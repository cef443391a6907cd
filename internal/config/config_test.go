package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8700", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Broker.SendTimeout)
	assert.Equal(t, time.Second, cfg.Broker.BroadcastTimeout)
	assert.Equal(t, 10<<20, cfg.Storage.QuotaBytes)
	assert.Equal(t, "file", cfg.Storage.Backend)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SEND_TIMEOUT", "2s")
	t.Setenv("STORAGE_BACKEND", "badger")
	t.Setenv("STORAGE_QUOTA_BYTES", "1024")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Broker.SendTimeout)
	assert.Equal(t, "badger", cfg.Storage.Backend)
	assert.Equal(t, 1024, cfg.Storage.QuotaBytes)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadOrDefaultFallsBack(t *testing.T) {
	t.Setenv("STORAGE_QUOTA_BYTES", "not-a-number")

	cfg := LoadOrDefault()
	assert.Equal(t, 10<<20, cfg.Storage.QuotaBytes)
}
