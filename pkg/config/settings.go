// Package config provides configuration loading for the API server.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the structure of the settings.yaml file.
type Settings struct {
	Oracle OracleSettings `yaml:"oracle"`
	Sync   SyncSettings   `yaml:"sync"`
}

// OracleSettings configures the tag oracle connection. An empty URL means
// no server is configured and simulated readings are served instead.
type OracleSettings struct {
	URL            string        `yaml:"url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// SyncSettings configures the viewer-sync timers.
type SyncSettings struct {
	PollInterval      time.Duration `yaml:"poll_interval"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	HeartbeatExpiry   time.Duration `yaml:"heartbeat_expiry"`
	OverlayInterval   time.Duration `yaml:"overlay_interval"`
}

// Durations in the file are written in Go notation ("7s", "1m30s").
// yaml.v3 has no native duration decoding, so both settings structs decode
// through a raw form and parse the strings themselves.
func (o *OracleSettings) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		URL            string `yaml:"url"`
		RequestTimeout string `yaml:"request_timeout"`
	}

	if err := node.Decode(&raw); err != nil {
		return err
	}

	timeout, err := parseDuration(raw.RequestTimeout)
	if err != nil {
		return fmt.Errorf("oracle.request_timeout: %w", err)
	}

	o.URL = raw.URL
	if timeout != 0 {
		o.RequestTimeout = timeout
	}

	return nil
}

func (s *SyncSettings) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		PollInterval      string `yaml:"poll_interval"`
		HeartbeatInterval string `yaml:"heartbeat_interval"`
		HeartbeatExpiry   string `yaml:"heartbeat_expiry"`
		OverlayInterval   string `yaml:"overlay_interval"`
	}

	if err := node.Decode(&raw); err != nil {
		return err
	}

	fields := []struct {
		name  string
		value string
		out   *time.Duration
	}{
		{"sync.poll_interval", raw.PollInterval, &s.PollInterval},
		{"sync.heartbeat_interval", raw.HeartbeatInterval, &s.HeartbeatInterval},
		{"sync.heartbeat_expiry", raw.HeartbeatExpiry, &s.HeartbeatExpiry},
		{"sync.overlay_interval", raw.OverlayInterval, &s.OverlayInterval},
	}

	for _, field := range fields {
		parsed, err := parseDuration(field.value)
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}

		if parsed != 0 {
			*field.out = parsed
		}
	}

	return nil
}

func parseDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}

	return time.ParseDuration(value)
}

// DefaultSettings returns the settings used when no file is present.
func DefaultSettings() Settings {
	return Settings{
		Oracle: OracleSettings{
			RequestTimeout: 10 * time.Second,
		},
		Sync: SyncSettings{
			PollInterval:      7 * time.Second,
			HeartbeatInterval: 5 * time.Second,
			HeartbeatExpiry:   30 * time.Second,
			OverlayInterval:   5 * time.Second,
		},
	}
}

// LoadSettings loads settings from a YAML file, filling unset values with
// defaults.
func LoadSettings(filepath string) (Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(filepath)
	if err != nil {
		return settings, fmt.Errorf("failed to read settings file %s: %w", filepath, err)
	}

	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("failed to parse YAML settings: %w", err)
	}

	applyDefaults(&settings)

	if err := ValidateSettings(settings); err != nil {
		return settings, err
	}

	return settings, nil
}

// LoadSettingsOrDefault attempts to load settings from a file, falling
// back to defaults when the file does not exist.
func LoadSettingsOrDefault(filepath string) Settings {
	settings, err := LoadSettings(filepath)
	if err != nil {
		return DefaultSettings()
	}

	return settings
}

// ValidateSettings rejects interval combinations that would break the
// liveness model, such as an expiry shorter than the refresh period.
func ValidateSettings(settings Settings) error {
	if settings.Sync.PollInterval <= 0 {
		return fmt.Errorf("sync.poll_interval must be positive")
	}

	if settings.Sync.HeartbeatInterval <= 0 {
		return fmt.Errorf("sync.heartbeat_interval must be positive")
	}

	if settings.Sync.OverlayInterval <= 0 {
		return fmt.Errorf("sync.overlay_interval must be positive")
	}

	if settings.Sync.HeartbeatExpiry <= settings.Sync.HeartbeatInterval {
		return fmt.Errorf("sync.heartbeat_expiry must exceed sync.heartbeat_interval")
	}

	if settings.Oracle.URL != "" && settings.Oracle.RequestTimeout <= 0 {
		return fmt.Errorf("oracle.request_timeout must be positive when oracle.url is set")
	}

	return nil
}

func applyDefaults(settings *Settings) {
	defaults := DefaultSettings()

	if settings.Oracle.RequestTimeout == 0 {
		settings.Oracle.RequestTimeout = defaults.Oracle.RequestTimeout
	}

	if settings.Sync.PollInterval == 0 {
		settings.Sync.PollInterval = defaults.Sync.PollInterval
	}

	if settings.Sync.HeartbeatInterval == 0 {
		settings.Sync.HeartbeatInterval = defaults.Sync.HeartbeatInterval
	}

	if settings.Sync.HeartbeatExpiry == 0 {
		settings.Sync.HeartbeatExpiry = defaults.Sync.HeartbeatExpiry
	}

	if settings.Sync.OverlayInterval == 0 {
		settings.Sync.OverlayInterval = defaults.Sync.OverlayInterval
	}
}
