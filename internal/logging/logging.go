// Package logging manages the process-wide slog logger lifecycle.
//
// The process starts in bootstrap mode (text to stderr) before configuration
// is available; Upgrade switches to fanout mode (text to stderr plus JSON to
// a rotating file) without invalidating loggers already handed out.
package logging

import (
	"log/slog"
	"os"
	"sync"

	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Manager owns the root logger and its swappable handler.
type Manager struct {
	mu      sync.Mutex
	handler *swappableHandler
	logger  *slog.Logger
	level   *slog.LevelVar
	sink    *lumberjack.Logger
}

// NewManager creates a logging manager in bootstrap mode.
func NewManager() *Manager {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	bootstrap := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	handler := newSwappableHandler(bootstrap)

	return &Manager{
		handler: handler,
		logger:  slog.New(handler),
		level:   level,
	}
}

// Logger returns the root logger. It remains valid across Upgrade calls.
func (m *Manager) Logger() *slog.Logger {
	return m.logger
}

// Upgrade transitions from bootstrap mode to full mode: text to stderr plus
// JSON to a size-rotated log file.
func (m *Manager) Upgrade(logFilePath string, level slog.Level) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sink != nil {
		_ = m.sink.Close()
	}
	m.sink = &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}

	m.level.Set(level)
	opts := &slog.HandlerOptions{Level: m.level}

	m.handler.swap(slogmulti.Fanout(
		slog.NewTextHandler(os.Stderr, opts),
		slog.NewJSONHandler(m.sink, opts),
	))
}

// SetLevel changes the log level at runtime.
func (m *Manager) SetLevel(level slog.Level) {
	m.level.Set(level)
}

// Close releases the log file sink.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sink != nil {
		err := m.sink.Close()
		m.sink = nil
		return err
	}
	return nil
}
