package config

import (
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc is invoked with the freshly loaded configuration after the
// config file changes on disk.
type ReloadFunc func(*Config)

var watchMu sync.Mutex

// Watch re-reads the config file whenever it changes and invokes fn with the
// new configuration. Invalid edits are logged and ignored; the previous
// configuration stays in effect until the file becomes valid again.
func Watch(path string, fn ReloadFunc) {
	v := newViper()
	v.SetConfigFile(path)

	v.OnConfigChange(func(e fsnotify.Event) {
		watchMu.Lock()
		defer watchMu.Unlock()

		if err := v.ReadInConfig(); err != nil {
			slog.Warn("config reload failed; keeping previous configuration",
				"file", e.Name, "error", err)
			return
		}

		cfg, err := unmarshalConfig(v)
		if err != nil {
			slog.Warn("config reload invalid; keeping previous configuration",
				"file", e.Name, "error", err)
			return
		}

		slog.Info("config reloaded", "file", e.Name, "op", e.Op.String())
		fn(cfg)
	})

	v.WatchConfig()
}
