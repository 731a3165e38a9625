package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("BEACON_STATE_DIR", t.TempDir())
	t.Setenv("BEACON_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.ServerURL)
	assert.Equal(t, 500*time.Millisecond, cfg.HeartbeatInterval)
	assert.Equal(t, 60*time.Second, cfg.FailTimeout)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Setenv("BEACON_STATE_DIR", t.TempDir())
	t.Setenv("BEACON_CONFIG", "")

	saved := &Config{
		ServerURL:         "https://collector.example.com",
		AppKey:            "key-1",
		AppVersion:        "3.1.4",
		CountryCode:       "FI",
		HeartbeatInterval: time.Second,
	}
	require.NoError(t, Save(saved))

	loaded, err := Load()
	require.NoError(t, err)

	assert.Equal(t, saved.ServerURL, loaded.ServerURL)
	assert.Equal(t, saved.AppKey, loaded.AppKey)
	assert.Equal(t, saved.AppVersion, loaded.AppVersion)
	assert.Equal(t, saved.CountryCode, loaded.CountryCode)
	assert.Equal(t, time.Second, loaded.HeartbeatInterval)
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("BEACON_STATE_DIR", t.TempDir())
	t.Setenv("BEACON_CONFIG", "")
	t.Setenv("BEACON_SERVER_URL", "https://override.example.com")
	t.Setenv("BEACON_APP_KEY", "env-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://override.example.com", cfg.ServerURL)
	assert.Equal(t, "env-key", cfg.AppKey)
}
