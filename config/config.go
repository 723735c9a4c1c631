// Package config loads the toolkit configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the complete toolkit configuration.
type Config struct {
	Station     StationConfig     `yaml:"station"`
	Paths       PathsConfig       `yaml:"paths"`
	PSKReporter PSKReporterConfig `yaml:"pskreporter"`
	Live        LiveConfig        `yaml:"live"`
	Control     ControlConfig     `yaml:"control"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// StationConfig identifies the operator.
type StationConfig struct {
	Callsign string `yaml:"callsign"`
	Grid     string `yaml:"grid"`
	Mode     string `yaml:"mode"`
}

// PathsConfig holds file locations. DataDir is the root for registries,
// caches and published comparison artifacts.
type PathsConfig struct {
	DataDir   string `yaml:"data_dir"`
	DecodeLog string `yaml:"decode_log"`
	CTYPlist  string `yaml:"cty_plist"`
	GridDB    string `yaml:"grid_db"`
}

// PSKReporterConfig contains the retrieval API settings.
type PSKReporterConfig struct {
	BaseURL string `yaml:"base_url"`
}

// LiveConfig contains the optional MQTT live spot feed settings.
type LiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Broker  string `yaml:"broker"`
	Port    int    `yaml:"port"`
}

// ControlConfig contains the telnet control surface settings.
type ControlConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Port        int    `yaml:"port"`
	BindAddress string `yaml:"bind_address"`
}

// LoggingConfig contains logging settings. When enabled, log output is
// duplicated to daily files under Dir in addition to the console.
type LoggingConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
}

// Load loads configuration from a YAML file and fills in defaults.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()
	if cfg.Station.Callsign == "" {
		return nil, fmt.Errorf("config: station.callsign is required")
	}
	if cfg.Station.Grid == "" {
		return nil, fmt.Errorf("config: station.grid is required")
	}
	return &cfg, nil
}

// Default returns a configuration usable without a config file, for the
// common single-station case.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = "data"
	}
	if c.Station.Mode == "" {
		c.Station.Mode = "FT8"
	}
	if c.Live.Broker == "" {
		c.Live.Broker = "mqtt.pskreporter.info"
	}
	if c.Live.Port == 0 {
		c.Live.Port = 1883
	}
	if c.Control.Port == 0 {
		c.Control.Port = 7310
	}
	if c.Control.BindAddress == "" {
		c.Control.BindAddress = "127.0.0.1"
	}
	if c.Paths.GridDB == "" {
		c.Paths.GridDB = filepath.Join(c.Paths.DataDir, "grids.pebble")
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Logging.RetentionDays == 0 {
		c.Logging.RetentionDays = 7
	}
}

// SessionLogPath is the append-only session event log location.
func (c *Config) SessionLogPath() string {
	return filepath.Join(c.Paths.DataDir, "antenna_log.json")
}

// AntennasPath is the antenna registry location.
func (c *Config) AntennasPath() string {
	return filepath.Join(c.Paths.DataDir, "antennas.json")
}

// SpotCacheDir holds per-run spot caches, outside the artifact directories
// so an artifact republish never touches them.
func (c *Config) SpotCacheDir() string {
	return filepath.Join(c.Paths.DataDir, "psk_cache")
}
