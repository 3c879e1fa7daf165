// Package config loads the declarative scenario file. The file is
// YAML; JSON is a YAML subset, so main.json files load unchanged.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"digital.vasic.netprobe/pkg/scenario"
)

// Defaults for global_settings.
const (
	DefaultLogLevel   = "INFO"
	DefaultReportPath = "./results/speed_test/"
	DefaultLogDir     = "./logs"
	DefaultStatusAddr = ":8090"
	DefaultTick       = time.Second
	DefaultGrace      = 60 * time.Second
)

// Duration decodes "30s"-style strings or a bare number of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	if secs, err := strconv.ParseFloat(node.Value, 64); err == nil {
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	v, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q", node.Line, node.Value)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML renders the duration in Go notation.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// GlobalSettings holds the process-wide settings.
type GlobalSettings struct {
	LogLevel    string   `yaml:"log_level"`
	LogDir      string   `yaml:"log_dir"`
	ReportPath  string   `yaml:"report_path"`
	Tick        Duration `yaml:"tick"`
	GracePeriod Duration `yaml:"grace_period"`
	StatusAddr  string   `yaml:"status_addr"`

	// StatePath is the bbolt file holding run state. Empty
	// disables state persistence.
	StatePath string `yaml:"state_path"`
}

// Config is the parsed scenario file.
type Config struct {
	GlobalSettings GlobalSettings  `yaml:"global_settings"`
	Scenarios      []scenario.Spec `yaml:"scenarios"`

	// Source is the path the config was loaded from.
	Source string `yaml:"-"`
}

// Load reads and parses a config file and applies defaults. It does
// not validate scenarios; see Validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	cfg.Source = path
	return cfg, nil
}

// Parse decodes config data and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills unset global settings and scenario fields.
func (c *Config) ApplyDefaults() {
	g := &c.GlobalSettings
	if g.LogLevel == "" {
		g.LogLevel = DefaultLogLevel
	}
	if g.LogDir == "" {
		g.LogDir = DefaultLogDir
	}
	if g.ReportPath == "" {
		g.ReportPath = DefaultReportPath
	}
	if g.Tick == 0 {
		g.Tick = Duration(DefaultTick)
	}
	if g.GracePeriod == 0 {
		g.GracePeriod = Duration(DefaultGrace)
	}
	if g.StatusAddr == "" {
		g.StatusAddr = DefaultStatusAddr
	}
	for i := range c.Scenarios {
		c.Scenarios[i].ApplyDefaults()
	}
}

// Enabled returns the enabled scenarios in file order.
func (c *Config) Enabled() []scenario.Spec {
	var out []scenario.Spec
	for _, s := range c.Scenarios {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}
