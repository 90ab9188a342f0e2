// Package config provides runtime configuration loading for the warden CLI.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/warden/internal/repository"
)

// FileName is the name of the project-level config file.
const FileName = "warden.yaml"

// Config represents the complete warden runtime configuration.
type Config struct {
	// Database is the SQLite file path (":memory:" for a throwaway store)
	Database string `yaml:"database"`
	// Specs is the directory holding the CUE type declarations
	Specs string `yaml:"specs"`
	// PostPhase selects how post-write rule violations are handled:
	// "rollback" (default) or "advisory"
	PostPhase string `yaml:"post_phase"`
	// LogLevel is one of debug, info, warn, error
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database:  "warden.db",
		Specs:     "specs",
		PostPhase: string(repository.PostRollback),
		LogLevel:  "info",
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.Specs == "" {
		return fmt.Errorf("specs is required")
	}
	if _, err := repository.ParsePostPhasePolicy(c.PostPhase); err != nil {
		return fmt.Errorf("post_phase: %w", err)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// Policy returns the parsed post-phase policy. Call Validate first.
func (c *Config) Policy() repository.PostPhasePolicy {
	p, _ := repository.ParsePostPhasePolicy(c.PostPhase)
	return p
}

// Level returns the parsed log level, falling back to info.
func (c *Config) Level() slog.Level {
	l, err := ParseLogLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

// Resolve makes relative paths absolute against base, the directory of
// the file they were read from.
func (c *Config) Resolve(base string) {
	if c.Database != "" && c.Database != ":memory:" && !filepath.IsAbs(c.Database) {
		c.Database = filepath.Join(base, c.Database)
	}
	if c.Specs != "" && !filepath.IsAbs(c.Specs) {
		c.Specs = filepath.Join(base, c.Specs)
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if other.Database != "" {
		c.Database = other.Database
	}
	if other.Specs != "" {
		c.Specs = other.Specs
	}
	if other.PostPhase != "" {
		c.PostPhase = other.PostPhase
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}

// ParseLogLevel maps a level name to a slog.Level. Empty means info.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
