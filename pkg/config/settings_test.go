package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoadSettings(t *testing.T) {
	path := writeSettings(t, `
oracle:
  url: http://tags.example.com:8080
  request_timeout: 3s
sync:
  poll_interval: 10s
`)

	settings, err := LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, "http://tags.example.com:8080", settings.Oracle.URL)
	assert.Equal(t, 3*time.Second, settings.Oracle.RequestTimeout)
	assert.Equal(t, 10*time.Second, settings.Sync.PollInterval)

	// Unset values fall back to defaults.
	assert.Equal(t, 5*time.Second, settings.Sync.HeartbeatInterval)
	assert.Equal(t, 30*time.Second, settings.Sync.HeartbeatExpiry)
	assert.Equal(t, 5*time.Second, settings.Sync.OverlayInterval)
}

func TestLoadSettings_MissingFile(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadSettings_BadYAML(t *testing.T) {
	path := writeSettings(t, "oracle: [not a mapping")

	_, err := LoadSettings(path)
	assert.Error(t, err)
}

func TestLoadSettings_RejectsBrokenLiveness(t *testing.T) {
	path := writeSettings(t, `
sync:
  heartbeat_interval: 30s
  heartbeat_expiry: 10s
`)

	_, err := LoadSettings(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "heartbeat_expiry")
}

func TestLoadSettingsOrDefault(t *testing.T) {
	settings := LoadSettingsOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Equal(t, DefaultSettings(), settings)

	path := writeSettings(t, "oracle:\n  url: http://tags.local\n")
	settings = LoadSettingsOrDefault(path)
	assert.Equal(t, "http://tags.local", settings.Oracle.URL)
}

func TestValidateSettings(t *testing.T) {
	require.NoError(t, ValidateSettings(DefaultSettings()))

	bad := DefaultSettings()
	bad.Sync.PollInterval = 0
	assert.Error(t, ValidateSettings(bad))

	bad = DefaultSettings()
	bad.Sync.OverlayInterval = -time.Second
	assert.Error(t, ValidateSettings(bad))

	bad = DefaultSettings()
	bad.Oracle.URL = "http://tags.local"
	bad.Oracle.RequestTimeout = 0
	assert.Error(t, ValidateSettings(bad))
}
