package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Agents.Defaults.MaxToolIterations)
	assert.Equal(t, 8, cfg.Agents.Defaults.MaxSubagents)
	assert.Equal(t, 30, cfg.Heartbeat.IntervalMinutes)
	assert.Equal(t, "ws://localhost:3001", cfg.Channels.WhatsApp.BridgeURL)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"agents": {"defaults": {"model": "gpt-4o", "maxSubagents": 3}},
		"channels": {"telegram": {"enabled": true, "token": "tg-token", "allowFrom": ["42"]}}
	}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.Agents.Defaults.Model)
	assert.Equal(t, 3, cfg.Agents.Defaults.MaxSubagents)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, 20, cfg.Agents.Defaults.MaxToolIterations)
	assert.True(t, cfg.Channels.Telegram.Enabled)
	assert.Equal(t, []string{"42"}, cfg.Channels.Telegram.AllowFrom)
}

func TestLoadMalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{oops"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Providers.OpenRouter.APIKey = "sk-or-test"
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-or-test", loaded.Providers.OpenRouter.APIKey)
}
