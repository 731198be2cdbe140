package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CADENZA_SERVER_URL", "https://sync.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://sync.example.com", cfg.ServerURL)
	assert.Equal(t, "sqlite", cfg.Backend)
	assert.Equal(t, 5*time.Minute, cfg.SyncInterval)
	assert.Equal(t, 30*time.Second, cfg.SyncTimeout)
	assert.NotEmpty(t, cfg.DataDir)
}

func TestLoadRequiresServerURL(t *testing.T) {
	t.Setenv("CADENZA_SERVER_URL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CADENZA_SERVER_URL", "https://sync.example.com")
	t.Setenv("CADENZA_REALTIME_URL", "wss://push.example.com")
	t.Setenv("CADENZA_AUTH_TOKEN", "tok")
	t.Setenv("CADENZA_USER_ID", "u1")
	t.Setenv("CADENZA_DATA_DIR", "/tmp/cadenza-test")
	t.Setenv("CADENZA_STORAGE_BACKEND", "bolt")
	t.Setenv("CADENZA_SYNC_INTERVAL", "90s")
	t.Setenv("CADENZA_SYNC_TIMEOUT", "10s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "wss://push.example.com", cfg.RealtimeURL)
	assert.Equal(t, "tok", cfg.AuthToken)
	assert.Equal(t, "u1", cfg.UserID)
	assert.Equal(t, "/tmp/cadenza-test", cfg.DataDir)
	assert.Equal(t, "bolt", cfg.Backend)
	assert.Equal(t, 90*time.Second, cfg.SyncInterval)
	assert.Equal(t, 10*time.Second, cfg.SyncTimeout)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("CADENZA_SERVER_URL", "https://sync.example.com")
	t.Setenv("CADENZA_STORAGE_BACKEND", "leveldb")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("CADENZA_SERVER_URL", "https://sync.example.com")
	t.Setenv("CADENZA_SYNC_INTERVAL", "five minutes")

	_, err := Load()
	assert.Error(t, err)
}
