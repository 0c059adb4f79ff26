package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath returns the default location of the config file.
func DefaultConfigPath() string {
	if envPath := os.Getenv("ARCHLENS_CONFIG_DIR"); envPath != "" {
		return filepath.Join(envPath, "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "archlens", "config.yaml")
}

// Write writes the configuration to the specified path.
// Creates the directory with 0700 permissions if it doesn't exist and writes
// the file with 0600 permissions (the file may reference API keys).
func Write(cfg *Config, path string) error {
	path = ExpandHome(path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s; %w", dir, err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config; %w", err)
	}

	header := fmt.Sprintf("# archlens configuration\n# Generated: %s\n\n",
		time.Now().Format(time.RFC3339))
	content := append([]byte(header), data...)

	if err := os.WriteFile(path, content, 0600); err != nil {
		return fmt.Errorf("failed to write config file %s; %w", path, err)
	}

	return nil
}

// Starter returns a config populated with defaults, suitable as the basis
// for a generated config file.
func Starter() *Config {
	v := newViper()
	cfg, err := unmarshalConfig(v)
	if err != nil {
		// Defaults always validate; reaching here means a programming error.
		panic(err)
	}
	return cfg
}
