package config

import "sync"

var (
	currentMu sync.RWMutex
	current   *Config
)

// Init loads the configuration and makes it available through Get.
func Init() error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	currentMu.Lock()
	current = cfg
	currentMu.Unlock()
	return nil
}

// Get returns the configuration loaded by Init. Before Init it returns
// the built-in defaults so read-only callers never see nil.
func Get() *Config {
	currentMu.RLock()
	cfg := current
	currentMu.RUnlock()

	if cfg != nil {
		return cfg
	}
	return Starter()
}

// SetCurrent replaces the active configuration. Used by config reload
// and by tests.
func SetCurrent(cfg *Config) {
	currentMu.Lock()
	current = cfg
	currentMu.Unlock()
}
