package sensorlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogDir != "/home/pi/logs" {
		t.Errorf("LogDir = %q", cfg.LogDir)
	}
	if cfg.HTTP.Host != "0.0.0.0" || cfg.HTTP.Port != 5000 {
		t.Errorf("HTTP = %+v", cfg.HTTP)
	}
	if cfg.HTTP.RateLimitPerSecond != 1000 {
		t.Errorf("RateLimitPerSecond = %d", cfg.HTTP.RateLimitPerSecond)
	}
	if cfg.Query.DecimateTarget != DefaultDecimateTarget {
		t.Errorf("DecimateTarget = %d", cfg.Query.DecimateTarget)
	}
	if cfg.Query.RecentWindow != Duration(2*time.Hour) {
		t.Errorf("RecentWindow = %v", cfg.Query.RecentWindow)
	}
	if cfg.Stream.PollInterval != Duration(2*time.Second) {
		t.Errorf("PollInterval = %v", cfg.Stream.PollInterval)
	}
	if len(cfg.BlockedSensors) != 3 {
		t.Errorf("BlockedSensors = %v", cfg.BlockedSensors)
	}
	if cfg.Archive != nil || cfg.Auth != nil {
		t.Error("Archive and Auth should default to nil")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
log_dir: /var/log/sensors
blocked_sensors: [sim]
http:
  port: 8080
  rate_limit_per_second: -1
query:
  decimate_target: 500
stream:
  poll_interval: 5s
auth:
  enabled: true
  salt: pepper
  key_digests:
    - deadbeef
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogDir != "/var/log/sensors" {
		t.Errorf("LogDir = %q", cfg.LogDir)
	}
	if len(cfg.BlockedSensors) != 1 || cfg.BlockedSensors[0] != "sim" {
		t.Errorf("BlockedSensors = %v", cfg.BlockedSensors)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("Port = %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.RateLimitPerSecond != -1 {
		t.Errorf("RateLimitPerSecond = %d", cfg.HTTP.RateLimitPerSecond)
	}
	// Unset fields still get defaults.
	if cfg.HTTP.Host != "0.0.0.0" {
		t.Errorf("Host = %q", cfg.HTTP.Host)
	}
	if cfg.Query.DecimateTarget != 500 {
		t.Errorf("DecimateTarget = %d", cfg.Query.DecimateTarget)
	}
	if cfg.Query.RecentWindow != Duration(2*time.Hour) {
		t.Errorf("RecentWindow = %v", cfg.Query.RecentWindow)
	}
	if cfg.Stream.PollInterval != Duration(5*time.Second) {
		t.Errorf("PollInterval = %v", cfg.Stream.PollInterval)
	}
	if cfg.Auth == nil || !cfg.Auth.Enabled || cfg.Auth.Salt != "pepper" {
		t.Errorf("Auth = %+v", cfg.Auth)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv(logDirEnv, "/tmp/override")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogDir != "/tmp/override" {
		t.Errorf("LogDir = %q, want env override", cfg.LogDir)
	}
}

func TestDurationYAML(t *testing.T) {
	var out struct {
		A Duration `yaml:"a"`
		B Duration `yaml:"b"`
	}
	if err := yaml.Unmarshal([]byte("a: 1h30m\nb: 1000000000"), &out); err != nil {
		t.Fatal(err)
	}
	if out.A != Duration(90*time.Minute) {
		t.Errorf("a = %v", out.A)
	}
	if out.B != Duration(time.Second) {
		t.Errorf("b = %v", out.B)
	}

	if err := yaml.Unmarshal([]byte("a: fortnight"), &out); err == nil {
		t.Error("expected error for unparseable duration")
	}
}

func TestLoadConfigBadFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("log_dir: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}
