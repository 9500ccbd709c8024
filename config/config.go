// Package config loads the logtool configuration.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/INLOpen/recordlog/compressors"
)

// Config holds defaults for logtool commands. All fields can be
// overridden by command-line flags.
type Config struct {
	// Magic is the record magic every inspected log must carry.
	Magic string `yaml:"magic"`
	// Codec names the compression codec backups are written with.
	Codec string `yaml:"codec"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Load reads configuration from an io.Reader. A nil reader or empty
// input yields the defaults.
func Load(r io.Reader) (*Config, error) {
	cfg := &Config{
		Magic:    "RECLOG1",
		Codec:    "none",
		LogLevel: "info",
	}

	if r == nil {
		return cfg, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config data: %w", err)
	}
	if len(data) == 0 {
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig reads configuration from a YAML file by path. A missing
// file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Load(nil)
		}
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	return Load(file)
}

// Validate checks the configuration for values the tool cannot use.
func (c *Config) Validate() error {
	if c.Magic == "" {
		return fmt.Errorf("magic must not be empty")
	}
	if _, err := compressors.Get(c.Codec); err != nil {
		return fmt.Errorf("invalid codec: %w", err)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel converts a configured log level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch name {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}
