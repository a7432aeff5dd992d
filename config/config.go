package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Timeline sources
const (
	SourceLocal   = "local"
	SourceOSCSync = "oscsync"
)

// Config is the main configuration structure
type Config struct {
	// Tempo is the initial tempo of a local timeline (BPM)
	Tempo     float64         `mapstructure:"tempo"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Timeline  TimelineConfig  `mapstructure:"timeline"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	UI        UIConfig        `mapstructure:"ui"`
}

// DiscoveryConfig controls output port hot-plug detection
type DiscoveryConfig struct {
	// PollInterval is how often the outputs are enumerated
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// EnumerateTimeout abandons a scan when the driver hangs
	EnumerateTimeout time.Duration `mapstructure:"enumerate_timeout"`
}

// TimelineConfig selects where shared time comes from
type TimelineConfig struct {
	// Source is "local" or "oscsync"
	Source  string        `mapstructure:"source"`
	OSCSync OSCSyncConfig `mapstructure:"oscsync"`
}

// OSCSyncConfig locates the oscsync master
type OSCSyncConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LoggingConfig controls console and debug logging
type LoggingConfig struct {
	// Level is the console level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Debug enables the categorized debug log file
	Debug bool `mapstructure:"debug"`
	// DebugFile overrides ~/.config/midiclock/debug.log
	DebugFile string `mapstructure:"debug_file"`
}

// UIConfig stores monitor preferences
type UIConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Palette is a GIMP .gpl palette file; empty uses the built-in one
	Palette string `mapstructure:"palette"`
}

// SetDefaults registers every key's default on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("tempo", 120.0)

	v.SetDefault("discovery.poll_interval", time.Second)
	v.SetDefault("discovery.enumerate_timeout", 3*time.Second)

	v.SetDefault("timeline.source", SourceLocal)
	v.SetDefault("timeline.oscsync.host", "127.0.0.1")
	v.SetDefault("timeline.oscsync.port", 5776)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.debug", false)
	v.SetDefault("logging.debug_file", "")

	v.SetDefault("ui.enabled", false)
	v.SetDefault("ui.palette", "")
}

func defaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, _ := FromViper(v)
	return cfg
}

// FromViper decodes and validates the configuration held by v
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Tempo < 20 || c.Tempo > 999 {
		return fmt.Errorf("tempo %.2f out of range [20, 999]", c.Tempo)
	}
	if c.Discovery.PollInterval <= 0 {
		return fmt.Errorf("discovery.poll_interval must be positive, got %s", c.Discovery.PollInterval)
	}
	if c.Discovery.EnumerateTimeout <= 0 {
		return fmt.Errorf("discovery.enumerate_timeout must be positive, got %s", c.Discovery.EnumerateTimeout)
	}
	switch c.Timeline.Source {
	case SourceLocal:
	case SourceOSCSync:
		if c.Timeline.OSCSync.Host == "" {
			return fmt.Errorf("timeline.oscsync.host is required for source %q", SourceOSCSync)
		}
		if c.Timeline.OSCSync.Port <= 0 || c.Timeline.OSCSync.Port > 65535 {
			return fmt.Errorf("timeline.oscsync.port %d out of range", c.Timeline.OSCSync.Port)
		}
	default:
		return fmt.Errorf("unknown timeline.source %q (want %q or %q)", c.Timeline.Source, SourceLocal, SourceOSCSync)
	}
	return nil
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "midiclock"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}
