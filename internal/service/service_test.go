package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeServer implements HTTPServer for lifecycle tests.
type fakeServer struct {
	mu           sync.Mutex
	startErr     error
	shutdownDone bool
}

func (f *fakeServer) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	<-ctx.Done()
	return nil
}

func (f *fakeServer) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdownDone = true
	return nil
}

func (f *fakeServer) shutdownCalled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shutdownDone
}

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  bool
	}{
		{"starting is not terminal", StateStarting, false},
		{"running is not terminal", StateRunning, false},
		{"degraded is not terminal", StateDegraded, false},
		{"stopping is not terminal", StateStopping, false},
		{"stopped is terminal", StateStopped, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.want {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestState_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from State
		to   State
		want bool
	}{
		{"starting to running", StateStarting, StateRunning, true},
		{"starting to stopped", StateStarting, StateStopped, true},
		{"starting to degraded", StateStarting, StateDegraded, false},
		{"running to degraded", StateRunning, StateDegraded, true},
		{"running to stopping", StateRunning, StateStopping, true},
		{"running to stopped", StateRunning, StateStopped, false},
		{"degraded to running", StateDegraded, StateRunning, true},
		{"degraded to stopping", StateDegraded, StateStopping, true},
		{"stopping to stopped", StateStopping, StateStopped, true},
		{"stopping to running", StateStopping, StateRunning, false},
		{"stopped to anything", StateStopped, StateStarting, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("State(%v).CanTransitionTo(%v) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestNewRuntime_Defaults(t *testing.T) {
	rt := NewRuntime(Config{}, nil, &fakeServer{})

	if rt.cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v, want %v", rt.cfg.ShutdownTimeout, 30*time.Second)
	}
	if rt.State() != StateStopped {
		t.Errorf("State() = %v, want %v", rt.State(), StateStopped)
	}
	if rt.health == nil {
		t.Error("expected health manager to be created")
	}
}

func TestRuntime_RunStopsOnContextCancel(t *testing.T) {
	srv := &fakeServer{}
	health := NewHealthManager()
	rt := NewRuntime(Config{ShutdownTimeout: time.Second}, health, srv)

	componentStopped := make(chan struct{})
	rt.Add(Func{
		ComponentName: "bus_consumer",
		StartFn: func(ctx context.Context) error {
			<-ctx.Done()
			close(componentStopped)
			return ctx.Err()
		},
	}, RestartOnFailure)

	ctx, cancel := context.WithCancel(context.Background())

	runDone := make(chan error, 1)
	go func() { runDone <- rt.Run(ctx) }()

	// Wait for the runtime to come up, then signal shutdown.
	deadline := time.After(time.Second)
	for rt.State() != StateRunning {
		select {
		case <-deadline:
			t.Fatal("runtime did not reach running state")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-runDone:
		if err != nil {
			t.Fatalf("Run() error = %v, want nil on clean shutdown", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	select {
	case <-componentStopped:
	case <-time.After(time.Second):
		t.Fatal("component was not stopped during shutdown")
	}

	if rt.State() != StateStopped {
		t.Errorf("State() = %v, want %v", rt.State(), StateStopped)
	}
	if !srv.shutdownCalled() {
		t.Error("expected HTTP server shutdown to be called")
	}
}

func TestRuntime_RunReturnsServerError(t *testing.T) {
	srv := &fakeServer{startErr: errors.New("listen failed")}
	rt := NewRuntime(Config{ShutdownTimeout: time.Second}, NewHealthManager(), srv)

	err := rt.Run(context.Background())
	if err == nil {
		t.Fatal("Run() error = nil, want server error")
	}
	if err.Error() != "listen failed" {
		t.Errorf("Run() error = %q, want %q", err, "listen failed")
	}
	if rt.State() != StateStopped {
		t.Errorf("State() = %v, want %v", rt.State(), StateStopped)
	}
}

func TestRuntime_RunReturnsFatalComponentError(t *testing.T) {
	srv := &fakeServer{}
	rt := NewRuntime(Config{ShutdownTimeout: time.Second}, NewHealthManager(), srv)

	rt.Add(Func{
		ComponentName: "critical_component",
		StartFn: func(ctx context.Context) error {
			return errors.New("boom")
		},
	}, RestartNever)

	err := rt.Run(context.Background())
	if err == nil {
		t.Fatal("Run() error = nil, want fatal component error")
	}
	if !srv.shutdownCalled() {
		t.Error("expected HTTP server shutdown after fatal component failure")
	}
}

func TestRuntime_StopHooksRun(t *testing.T) {
	srv := &fakeServer{}
	rt := NewRuntime(Config{ShutdownTimeout: time.Second}, NewHealthManager(), srv)

	var mu sync.Mutex
	stopCalled := false
	rt.Add(Func{
		ComponentName: "with_cleanup",
		StopFn: func(ctx context.Context) error {
			mu.Lock()
			stopCalled = true
			mu.Unlock()
			return nil
		},
	}, RestartOnFailure)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- rt.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return")
	}

	mu.Lock()
	defer mu.Unlock()
	if !stopCalled {
		t.Error("expected component Stop hook to run during shutdown")
	}
}

func TestRuntime_HealthReflectsComponents(t *testing.T) {
	srv := &fakeServer{}
	health := NewHealthManager()
	rt := NewRuntime(Config{ShutdownTimeout: time.Second}, health, srv)

	rt.Add(Func{ComponentName: "bus_consumer"}, RestartOnFailure)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- rt.Run(ctx) }()

	deadline := time.After(time.Second)
	for {
		status := rt.Health()
		if h, ok := status.Components["bus_consumer"]; ok && h.Status == StatusRunning {
			break
		}
		select {
		case <-deadline:
			t.Fatal("component never reported running")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if !health.Ready() {
		t.Error("Ready() = false while components are running, want true")
	}

	cancel()
	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return")
	}
}
