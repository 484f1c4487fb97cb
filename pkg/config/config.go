// Package config loads the coordinator's runtime configuration from a
// YAML file, command-line flags, and built-in defaults, in that
// increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so config files can write "90s"
// instead of a raw nanosecond count.
type Duration time.Duration

// UnmarshalYAML accepts a duration string ("90s", "2m"); yaml.v3 has
// no built-in notion of time.Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds the coordinator's runtime settings: listener ports,
// liveness tuning, TCP keep-alive, and the optional diagnostic trace.
type Config struct {
	UDPPort               int      `yaml:"udp_port"`
	TCPPort               int      `yaml:"tcp_port"`
	HeartbeatTimeout      Duration `yaml:"heartbeat_timeout"`
	HeartbeatScanInterval Duration `yaml:"heartbeat_scan_interval"`
	TCPKeepAliveIdle      Duration `yaml:"tcp_keepalive_idle"`
	TCPKeepAliveInterval  Duration `yaml:"tcp_keepalive_interval"`
	DiagnosticLogPath     string   `yaml:"diagnostic_log_path"`
	Advertise             bool     `yaml:"advertise"`
	InstanceName          string   `yaml:"instance_name"`
}

// Default returns the coordinator's built-in configuration defaults.
func Default() Config {
	return Config{
		UDPPort:               5000,
		TCPPort:               5001,
		HeartbeatTimeout:      Duration(60 * time.Second),
		HeartbeatScanInterval: Duration(10 * time.Second),
		TCPKeepAliveIdle:      Duration(30 * time.Second),
		TCPKeepAliveInterval:  Duration(10 * time.Second),
		InstanceName:          "coordinator",
	}
}

// Load parses a YAML config file at path and overlays it onto
// Default(). An empty path returns Default() unchanged: the file is
// optional.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
