package app

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flightwire/drone-telemetry/internal/link"
	"github.com/flightwire/drone-telemetry/internal/store"
)

const (
	defaultListenAddr   = "localhost:8050"
	defaultStaleAfterMS = 1000
	defaultDataDir      = "data"
)

// Config represents the dashboard configuration.
type Config struct {
	Settings  Settings        `yaml:"settings"`
	Source    SourceConfig    `yaml:"source"`
	Store     StoreConfig     `yaml:"store"`
	API       APIConfig       `yaml:"api"`
	Recording RecordingConfig `yaml:"recording"`
}

// Settings represents global application settings.
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// SourceConfig points at the transmitter endpoint.
type SourceConfig struct {
	URL string `yaml:"url"`
}

// StoreConfig represents the retention knobs: the history window per
// channel and the staleness threshold for the degraded-data indicator.
type StoreConfig struct {
	MaxDataPoints int `yaml:"maxDataPoints"`
	StaleAfterMS  int `yaml:"staleAfterMs"`
}

// StaleAfter returns the staleness threshold.
func (c *StoreConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterMS) * time.Millisecond
}

// APIConfig represents the HTTP query surface settings.
type APIConfig struct {
	ListenAddr string `yaml:"listenAddr"`
	StaticDir  string `yaml:"staticDir"`
}

// RecordingConfig enables persisting received telemetry to a flight log.
type RecordingConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DataDirectory string `yaml:"dataDirectory"`
}

// NewConfig returns a configuration with all defaults applied.
func NewConfig() *Config {
	return &Config{
		Settings: Settings{LogLevel: "info"},
		Source:   SourceConfig{URL: link.DefaultEndpoint},
		Store: StoreConfig{
			MaxDataPoints: store.DefaultCapacity,
			StaleAfterMS:  defaultStaleAfterMS,
		},
		API: APIConfig{ListenAddr: defaultListenAddr},
		Recording: RecordingConfig{
			DataDirectory: defaultDataDir,
		},
	}
}

// LoadConfig reads a YAML configuration file on top of the defaults. An
// empty path returns the defaults unchanged. Retention misconfiguration is
// rejected here, at startup, never at runtime.
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

	if config.Store.MaxDataPoints <= 0 {
		return nil, fmt.Errorf("invalid maxDataPoints: %d", config.Store.MaxDataPoints)
	}
	if config.Store.StaleAfterMS <= 0 {
		return nil, fmt.Errorf("invalid staleAfterMs: %d", config.Store.StaleAfterMS)
	}
	return config, nil
}
