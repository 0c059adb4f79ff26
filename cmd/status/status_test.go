package status

import (
	"testing"

	"github.com/archlens/archlens/internal/store"
)

func TestTerminalStatus(t *testing.T) {
	tests := []struct {
		status store.ProjectStatus
		want   bool
	}{
		{store.StatusCreated, true},
		{store.StatusCompleted, true},
		{store.StatusFailed, true},
		{store.StatusQueued, false},
		{store.StatusAnalyzing, false},
		{store.StatusFilesReady, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := terminalStatus(tt.status); got != tt.want {
				t.Errorf("terminalStatus(%q) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}
