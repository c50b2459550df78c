package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindConfig_Explicit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	os.WriteFile(path, []byte("listen:\n  port: 9999\n"), 0600)

	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig(%q) error: %v", path, err)
	}
	if got != path {
		t.Errorf("FindConfig(%q) = %q, want %q", path, got, path)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	_, err := FindConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("FindConfig with missing explicit path should error")
	}
}

func TestFindConfig_SearchPath(t *testing.T) {
	// When no config exists anywhere, should error. Override
	// searchPathsFunc to avoid finding real config files on
	// developer/deploy machines (~/.config/chamberwatch/config.yaml,
	// /etc/chamberwatch/config.yaml, etc.).
	dir := t.TempDir()
	orig := searchPathsFunc
	searchPathsFunc = func() []string {
		return []string{filepath.Join(dir, "config.yaml")}
	}
	defer func() { searchPathsFunc = orig }()

	_, err := FindConfig("")
	if err == nil {
		t.Fatal("FindConfig(\"\") with no config files should error")
	}
}

func TestFindConfig_CWD(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("listen:\n  port: 8080\n"), 0600)

	orig, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(orig)

	got, err := FindConfig("")
	if err != nil {
		t.Fatalf("FindConfig(\"\") error: %v", err)
	}
	if got != "config.yaml" {
		t.Errorf("FindConfig(\"\") = %q, want %q", got, "config.yaml")
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("mqtt:\n  enabled: true\n  broker_url: tcp://localhost:1883\n  password: ${CHAMBERWATCH_TEST_PASSWORD}\n"), 0600)
	os.Setenv("CHAMBERWATCH_TEST_PASSWORD", "secret123")
	defer os.Unsetenv("CHAMBERWATCH_TEST_PASSWORD")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.MQTT.Password != "secret123" {
		t.Errorf("password = %q, want %q", cfg.MQTT.Password, "secret123")
	}
}

func TestLoad_InlineValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("data_dir: /var/lib/chamberwatch\nlog_level: debug\n"), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.DataDir != "/var/lib/chamberwatch" {
		t.Errorf("data_dir = %q, want %q", cfg.DataDir, "/var/lib/chamberwatch")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Listen.Port != 8080 {
		t.Errorf("listen.port = %d, want 8080", cfg.Listen.Port)
	}
	if cfg.DataDir != "./data" {
		t.Errorf("data_dir = %q, want ./data", cfg.DataDir)
	}
	if cfg.MQTT.ClientID != "chamberwatch" {
		t.Errorf("mqtt.client_id = %q, want chamberwatch", cfg.MQTT.ClientID)
	}
	if cfg.MQTT.TopicPrefix != "chamberwatch" {
		t.Errorf("mqtt.topic_prefix = %q, want chamberwatch", cfg.MQTT.TopicPrefix)
	}
	if !cfg.House.IsEnabled() {
		t.Error("house should be enabled by default")
	}
	if !cfg.Senate.IsEnabled() {
		t.Error("senate should be enabled by default")
	}
}

func TestChamberConfig_IsEnabled_ExplicitFalse(t *testing.T) {
	disabled := false
	c := ChamberConfig{Enabled: &disabled}
	if c.IsEnabled() {
		t.Error("expected IsEnabled() false when Enabled is explicitly false")
	}
}

func TestValidate_ListenPortOutOfRange(t *testing.T) {
	cfg := Default()
	cfg.Listen.Port = 70000

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for out-of-range listen.port")
	}
}

func TestValidate_MQTTEnabledMissingBrokerURL(t *testing.T) {
	cfg := Default()
	cfg.MQTT.Enabled = true
	cfg.MQTT.BrokerURL = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for missing mqtt.broker_url")
	}
}

func TestValidate_MQTTDisabledSkipsValidation(t *testing.T) {
	cfg := Default()
	cfg.MQTT.Enabled = false
	cfg.MQTT.BrokerURL = ""

	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mqtt should skip validation, got: %v", err)
	}
}

func TestValidate_BothChambersDisabled(t *testing.T) {
	cfg := Default()
	houseOff, senateOff := false, false
	cfg.House.Enabled = &houseOff
	cfg.Senate.Enabled = &senateOff

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error when both chambers disabled")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "not-a-level"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for invalid log_level")
	}
}
