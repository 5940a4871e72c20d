package config

import (
	"fmt"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// Environment holds the settings read from environment variables. They apply
// before any configuration file is read.
type Environment struct {
	Home     string `env:"MULTIPACKS_HOME,expand" envDefault:"${HOME}/.multipacks"`
	CacheDir string `env:"MULTIPACKS_CACHE_DIR"`
	LogLevel string `env:"MULTIPACKS_LOG_LEVEL" envDefault:"info"`
}

// ParseEnv loads the environment settings.
func ParseEnv() (*Environment, error) {
	var e Environment
	if err := env.Parse(&e); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &e, nil
}

// ConfigFile is the default configuration file inside the home directory.
func (e *Environment) ConfigFile() string {
	return filepath.Join(e.Home, "config.yaml")
}

// Cache returns the cache directory: the environment wins over the
// configuration file, which wins over the home directory.
func (e *Environment) Cache(root *Root) string {
	if e.CacheDir != "" {
		return e.CacheDir
	}
	if root != nil && root.CacheDir != "" {
		return root.CacheDir
	}
	return filepath.Join(e.Home, "cache")
}
