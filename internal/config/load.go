// Package config loads and validates the application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads and returns the typed configuration.
// It searches for configuration files in priority order:
//  1. Directory specified by ARCHLENS_CONFIG_DIR environment variable
//  2. ~/.config/archlens/
//  3. Current working directory (.)
//
// If no config file is found, defaults are used. If a config file exists but
// is invalid, Load returns an error.
func Load() (*Config, error) {
	v := newViper()

	for _, dir := range searchDirs() {
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config; %w", err)
		}
	}

	return unmarshalConfig(v)
}

// LoadFromPath reads configuration from a specific file path.
func LoadFromPath(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %q; %w", path, err)
	}

	return unmarshalConfig(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("ARCHLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setViperDefaults(v)
	return v
}

func searchDirs() []string {
	var dirs []string
	if envPath := os.Getenv("ARCHLENS_CONFIG_DIR"); envPath != "" {
		dirs = append(dirs, envPath)
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".config", "archlens"))
	}
	return append(dirs, ".")
}

func unmarshalConfig(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config; %w", err)
	}

	expandPaths(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandPaths expands a leading ~ in filesystem paths.
func expandPaths(cfg *Config) {
	cfg.LogFile = ExpandHome(cfg.LogFile)
	cfg.Storage.DBPath = ExpandHome(cfg.Storage.DBPath)
	cfg.Storage.ScratchDir = ExpandHome(cfg.Storage.ScratchDir)
}

// ExpandHome expands "~" or "~/..." to the user's home directory.
// Patterns like "~user" are returned unchanged.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	if len(path) > 1 && path[1] != '/' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
