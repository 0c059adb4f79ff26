package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in    string
		want  slog.Level
		valid bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"Warn", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"loud", DefaultLevel, false},
		{"", DefaultLevel, false},
	}

	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		if got != tt.want || ok != tt.valid {
			t.Errorf("ParseLevel(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.valid)
		}
	}
}

func TestManagerBootstrap(t *testing.T) {
	m := NewManager()
	defer m.Close()

	logger := m.Logger()
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}

	// Debug is below the bootstrap level.
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be disabled in bootstrap mode")
	}
	if !logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be enabled in bootstrap mode")
	}
}

func TestManagerUpgradeWritesJSON(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "test.log")

	m := NewManager()
	logger := m.Logger()

	m.Upgrade(logPath, slog.LevelDebug)
	logger.Debug("after upgrade", "key", "value")

	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"after upgrade"`) {
		t.Errorf("log file missing JSON record, got: %s", data)
	}
	if !strings.Contains(string(data), `"key":"value"`) {
		t.Errorf("log file missing attribute, got: %s", data)
	}
}

func TestManagerSetLevel(t *testing.T) {
	m := NewManager()
	defer m.Close()

	m.SetLevel(slog.LevelError)
	if m.Logger().Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn should be disabled after SetLevel(error)")
	}

	m.SetLevel(slog.LevelDebug)
	if !m.Logger().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be enabled after SetLevel(debug)")
	}
}

func TestLoggerStableAcrossUpgrade(t *testing.T) {
	dir := t.TempDir()

	m := NewManager()
	defer m.Close()

	before := m.Logger()
	m.Upgrade(filepath.Join(dir, "x.log"), slog.LevelInfo)
	after := m.Logger()

	if before != after {
		t.Error("Logger() should return the same instance across Upgrade")
	}
}
