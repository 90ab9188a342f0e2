package config

import (
	"log/slog"
	"os"
	"path/filepath"
)

// Loader handles configuration loading with layered precedence.
type Loader struct {
	logger *slog.Logger
	dir    string
}

// NewLoader creates a loader that searches upward from dir.
// An empty dir means the current working directory.
func NewLoader(logger *slog.Logger, dir string) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger, dir: dir}
}

// Load loads configuration with layered precedence:
//  1. Default config
//  2. explicit file if path is non-empty, otherwise warden.yaml in the
//     start directory or its parents
//
// Relative paths in a file are resolved against the file's directory.
// An explicit path that cannot be read is an error; a missing project
// file is not.
func (l *Loader) Load(path string) (*Config, error) {
	config := DefaultConfig()

	if path == "" {
		path = l.findProjectConfig()
	}
	if path == "" {
		l.logger.Debug("No project config found")
	} else {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		fileConfig.Resolve(filepath.Dir(path))
		l.logger.Debug("Loaded project config", slog.String("path", path))
		config = fileConfig
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// findProjectConfig looks for warden.yaml in the start directory and its parents.
func (l *Loader) findProjectConfig() string {
	dir := l.dir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return ""
		}
		dir = cwd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
