// Package config handles chamberwatch configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/chamberwatch/config.yaml, /config/config.yaml,
// /etc/chamberwatch/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "chamberwatch", "config.yaml"))
	}

	paths = append(paths, "/config/config.yaml") // Container convention
	paths = append(paths, "/etc/chamberwatch/config.yaml")
	return paths
}

// searchPathsFunc is a seam for tests; production code always uses
// DefaultSearchPaths.
var searchPathsFunc = DefaultSearchPaths

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches searchPathsFunc() and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	paths := searchPathsFunc()
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", paths)
}

// Config holds all chamberwatch configuration.
type Config struct {
	Listen   ListenConfig   `yaml:"listen"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	House    ChamberConfig  `yaml:"house"`
	Senate   ChamberConfig  `yaml:"senate"`
	DataDir  string         `yaml:"data_dir"`
	LogLevel string         `yaml:"log_level"`
}

// ChamberConfig defines per-chamber polling settings. Both House and
// Senate ship with working defaults pointing at the real feeds; the
// fields exist mainly to let operators disable a chamber or point it
// at a mirror during testing.
type ChamberConfig struct {
	// Enabled controls whether this chamber is polled at all. Defaults
	// to true.
	Enabled *bool `yaml:"enabled"`
	// FloorActivityBaseURL overrides the base URL used to construct a
	// day's floor-activity document request. Empty uses the built-in
	// clerk.house.gov / senate.gov default for the chamber.
	FloorActivityBaseURL string `yaml:"floor_activity_base_url"`
}

// IsEnabled reports whether the chamber should be polled, defaulting to
// true when Enabled was not set in the config file.
func (c ChamberConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// MQTTConfig defines the optional outbound MQTT signal bridge. When
// Enabled is false (the default), chamberwatch still computes signals
// and logs them, it just doesn't publish anywhere.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BrokerURL   string `yaml:"broker_url"` // e.g. tcp://localhost:1883
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"` // default: chamberwatch
	Discovery   bool   `yaml:"discovery"`    // publish Home-Assistant-style discovery configs
}

// ListenConfig defines the status/WebSocket HTTP server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// Load reads configuration from a YAML file, expands environment
// variables, applies defaults for any unset fields, and validates
// the result. After Load returns successfully, all fields are usable
// without additional nil/empty checks.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${HOME}, ${MQTT_PASSWORD}).
	// This is a convenience for container deployments; the recommended
	// approach is to put values directly in the config file.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills in zero-value fields with sensible defaults.
// Called automatically by Load. After this, callers can read any field
// without checking for empty strings or zero values.
func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 8080
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "chamberwatch"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "chamberwatch"
	}
}

// Validate checks that the configuration is internally consistent.
// It runs after applyDefaults, so it can assume defaults are populated.
// Returns an error describing the first problem found, or nil.
func (c *Config) Validate() error {
	if c.Listen.Port < 1 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port %d out of range (1-65535)", c.Listen.Port)
	}
	if c.MQTT.Enabled && c.MQTT.BrokerURL == "" {
		return fmt.Errorf("mqtt.broker_url is required when mqtt.enabled is true")
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	if !c.House.IsEnabled() && !c.Senate.IsEnabled() {
		return fmt.Errorf("at least one of house or senate must be enabled")
	}
	return nil
}

// Default returns a default configuration suitable for local
// development against the real House and Senate feeds. All defaults
// are already applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
