package sensorlog

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// logDirEnv overrides the configured log directory when set.
const logDirEnv = "SENSORLOG_DIR"

// Duration is a time.Duration that reads from YAML as either a Go duration
// string ("90s", "2h") or an integer nanosecond count.
type Duration time.Duration

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := node.Decode(&n); err != nil {
		return err
	}
	*d = Duration(n)
	return nil
}

// Config defines server configuration.
type Config struct {
	// LogDir is the directory holding the per-sensor .jsonl files.
	LogDir string `yaml:"log_dir"`

	// BlockedSensors lists substrings; a sensor whose id contains one
	// (case-insensitively) is excluded from the catalog.
	// Default: mock, test, dummy.
	BlockedSensors []string `yaml:"blocked_sensors"`

	// HTTP configures the HTTP API server.
	HTTP HTTPConfig `yaml:"http"`

	// Query configures query execution.
	Query QueryConfig `yaml:"query"`

	// Stream configures the WebSocket live feed.
	Stream StreamConfig `yaml:"stream"`

	// Archive configures the optional S3 log mirror.
	// If nil or Enabled is false, nothing is archived.
	Archive *ArchiveConfig `yaml:"archive"`

	// Auth configures HTTP API authentication.
	// If nil or Enabled is false, no authentication is required.
	Auth *AuthConfig `yaml:"auth"`
}

// HTTPConfig groups HTTP server settings.
type HTTPConfig struct {
	// Host is the listen address. Default: 0.0.0.0.
	Host string `yaml:"host"`

	// Port is the listen port. Default: 5000.
	Port int `yaml:"port"`

	// RateLimitPerSecond is the maximum requests per second per IP.
	// Default: 1000. Set to -1 to disable rate limiting.
	RateLimitPerSecond int `yaml:"rate_limit_per_second"`

	// ReadTimeout and WriteTimeout bound request handling.
	// Defaults: 15s each.
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
}

// DefaultConfig returns a Config with defaults matching the dashboard's
// conventional deployment.
func DefaultConfig() Config {
	return Config{
		LogDir:         "/home/pi/logs",
		BlockedSensors: []string{"mock", "test", "dummy"},
		HTTP: HTTPConfig{
			Host:               "0.0.0.0",
			Port:               5000,
			RateLimitPerSecond: 1000,
			ReadTimeout:        Duration(15 * time.Second),
			WriteTimeout:       Duration(15 * time.Second),
		},
		Query:  DefaultQueryConfig(),
		Stream: DefaultStreamConfig(),
	}
}

// applyDefaults fills zero-valued fields from DefaultConfig.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.LogDir == "" {
		c.LogDir = def.LogDir
	}
	if c.BlockedSensors == nil {
		c.BlockedSensors = def.BlockedSensors
	}
	if c.HTTP.Host == "" {
		c.HTTP.Host = def.HTTP.Host
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = def.HTTP.Port
	}
	if c.HTTP.RateLimitPerSecond == 0 {
		c.HTTP.RateLimitPerSecond = def.HTTP.RateLimitPerSecond
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = def.HTTP.ReadTimeout
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = def.HTTP.WriteTimeout
	}
	if c.Query.DecimateTarget == 0 {
		c.Query.DecimateTarget = def.Query.DecimateTarget
	}
	if c.Query.RecentWindow == 0 {
		c.Query.RecentWindow = def.Query.RecentWindow
	}
	if c.Stream.PollInterval == 0 {
		c.Stream.PollInterval = def.Stream.PollInterval
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = def.Stream.BufferSize
	}
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = def.Stream.PingInterval
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = def.Stream.WriteTimeout
	}
	if v := os.Getenv(logDirEnv); v != "" {
		c.LogDir = v
	}
}

// LoadConfig reads a YAML config file and fills unset fields with defaults.
// An empty path returns DefaultConfig with the environment override applied.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("invalid YAML: %w", err)
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}
