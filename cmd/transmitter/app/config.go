package app

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultListenAddr       = "localhost:8765"
	defaultPath             = "/telemetry"
	defaultUpdateIntervalMS = 100
)

// Config represents the transmitter configuration.
type Config struct {
	Settings  Settings        `yaml:"settings"`
	Server    ServerConfig    `yaml:"server"`
	Simulator SimulatorConfig `yaml:"simulator"`
}

// Settings represents global application settings.
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// ServerConfig represents the websocket endpoint settings.
type ServerConfig struct {
	ListenAddr string `yaml:"listenAddr"`
	Path       string `yaml:"path"`
}

// SimulatorConfig represents the signal generation settings.
type SimulatorConfig struct {
	UpdateIntervalMS int   `yaml:"updateIntervalMs"`
	Seed             int64 `yaml:"seed"` // 0 seeds from the clock
}

// UpdateInterval returns the generation tick length.
func (c *SimulatorConfig) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalMS) * time.Millisecond
}

// NewConfig returns a configuration with all defaults applied.
func NewConfig() *Config {
	return &Config{
		Settings: Settings{LogLevel: "info"},
		Server: ServerConfig{
			ListenAddr: defaultListenAddr,
			Path:       defaultPath,
		},
		Simulator: SimulatorConfig{
			UpdateIntervalMS: defaultUpdateIntervalMS,
		},
	}
}

// LoadConfig reads a YAML configuration file on top of the defaults. An
// empty path returns the defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	config := NewConfig()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err = yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if config.Simulator.UpdateIntervalMS <= 0 {
		return nil, fmt.Errorf("invalid update interval: %dms", config.Simulator.UpdateIntervalMS)
	}
	return config, nil
}
