package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockHealth records component health transitions for assertions.
type mockHealth struct {
	mu       sync.Mutex
	statuses map[string]ComponentHealth
	updates  int
}

func newMockHealth() *mockHealth {
	return &mockHealth{statuses: make(map[string]ComponentHealth)}
}

func (m *mockHealth) UpdateComponent(name string, health ComponentHealth) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[name] = health
	m.updates++
}

func (m *mockHealth) status(name string) (ComponentHealth, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.statuses[name]
	return h, ok
}

func TestNewSupervisor(t *testing.T) {
	health := newMockHealth()
	sup := NewSupervisor(health)

	if sup == nil {
		t.Fatal("expected non-nil supervisor")
	}
	if sup.minBackoff != defaultMinBackoff {
		t.Errorf("minBackoff = %v, want %v", sup.minBackoff, defaultMinBackoff)
	}
	if sup.maxBackoff != defaultMaxBackoff {
		t.Errorf("maxBackoff = %v, want %v", sup.maxBackoff, defaultMaxBackoff)
	}
}

func TestSupervisor_RunsUntilCancelled(t *testing.T) {
	health := newMockHealth()
	sup := NewSupervisor(health)

	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	stopped := make(chan struct{})
	sup.Supervise(ctx, Func{
		ComponentName: "steady_component",
		StartFn: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			close(stopped)
			return ctx.Err()
		},
	}, RestartOnFailure)

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("component did not start")
	}

	h, ok := health.status("steady_component")
	if !ok {
		t.Fatal("expected health status to be set")
	}
	if h.Status != StatusRunning {
		t.Errorf("status = %s, want %s", h.Status, StatusRunning)
	}
	if sup.SupervisedCount() != 1 {
		t.Errorf("SupervisedCount() = %d, want 1", sup.SupervisedCount())
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("component did not stop after cancel")
	}
	sup.Wait()

	h, _ = health.status("steady_component")
	if h.Status != StatusStopped {
		t.Errorf("status after cancel = %s, want %s", h.Status, StatusStopped)
	}
}

func TestSupervisor_RestartsOnFailure(t *testing.T) {
	health := newMockHealth()
	sup := NewSupervisor(health, WithBackoff(5*time.Millisecond, 20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	calls := 0
	sup.Supervise(ctx, Func{
		ComponentName: "flaky_component",
		StartFn: func(ctx context.Context) error {
			mu.Lock()
			calls++
			mu.Unlock()
			return errors.New("simulated failure")
		},
	}, RestartOnFailure)

	deadline := time.After(time.Second)
	for {
		mu.Lock()
		n := calls
		mu.Unlock()
		if n >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 start attempts, got %d", n)
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	sup.Wait()
}

func TestSupervisor_FatalOnRestartNever(t *testing.T) {
	health := newMockHealth()
	sup := NewSupervisor(health)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup.Supervise(ctx, Func{
		ComponentName: "critical_component",
		StartFn: func(ctx context.Context) error {
			return errors.New("boom")
		},
	}, RestartNever)

	select {
	case err := <-sup.Fatal():
		if err == nil {
			t.Fatal("expected non-nil fatal error")
		}
	case <-time.After(time.Second):
		t.Fatal("fatal channel did not receive the failure")
	}
	sup.Wait()

	h, ok := health.status("critical_component")
	if !ok {
		t.Fatal("expected health status to be set")
	}
	if h.Status != StatusFailed {
		t.Errorf("status = %s, want %s", h.Status, StatusFailed)
	}
	if h.Error != "boom" {
		t.Errorf("error = %q, want %q", h.Error, "boom")
	}
}

func TestSupervisor_CleanExitStopsSupervision(t *testing.T) {
	health := newMockHealth()
	sup := NewSupervisor(health)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	calls := 0
	sup.Supervise(ctx, Func{
		ComponentName: "one_shot_component",
		StartFn: func(ctx context.Context) error {
			mu.Lock()
			calls++
			mu.Unlock()
			return nil
		},
	}, RestartOnFailure)

	sup.Wait()

	mu.Lock()
	n := calls
	mu.Unlock()
	if n != 1 {
		t.Errorf("expected 1 start attempt for clean exit, got %d", n)
	}

	h, _ := health.status("one_shot_component")
	if h.Status != StatusStopped {
		t.Errorf("status = %s, want %s", h.Status, StatusStopped)
	}
}

func TestSupervisor_Cancel(t *testing.T) {
	health := newMockHealth()
	sup := NewSupervisor(health)

	stopped := make(chan struct{})
	sup.Supervise(context.Background(), Func{
		ComponentName: "cancelable_component",
		StartFn: func(ctx context.Context) error {
			<-ctx.Done()
			close(stopped)
			return ctx.Err()
		},
	}, RestartOnFailure)

	// Give the goroutine time to start.
	time.Sleep(10 * time.Millisecond)

	sup.Cancel("cancelable_component")

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("component did not stop after Cancel")
	}

	if sup.SupervisedCount() != 0 {
		t.Errorf("SupervisedCount() after Cancel = %d, want 0", sup.SupervisedCount())
	}
}

func TestSupervisor_CancelAll(t *testing.T) {
	health := newMockHealth()
	sup := NewSupervisor(health)

	stopped1 := make(chan struct{})
	stopped2 := make(chan struct{})

	sup.Supervise(context.Background(), Func{
		ComponentName: "component1",
		StartFn: func(ctx context.Context) error {
			<-ctx.Done()
			close(stopped1)
			return ctx.Err()
		},
	}, RestartOnFailure)
	sup.Supervise(context.Background(), Func{
		ComponentName: "component2",
		StartFn: func(ctx context.Context) error {
			<-ctx.Done()
			close(stopped2)
			return ctx.Err()
		},
	}, RestartOnFailure)

	time.Sleep(10 * time.Millisecond)

	if sup.SupervisedCount() != 2 {
		t.Fatalf("SupervisedCount() = %d, want 2", sup.SupervisedCount())
	}

	sup.CancelAll()

	select {
	case <-stopped1:
	case <-time.After(time.Second):
		t.Fatal("component1 did not stop after CancelAll")
	}
	select {
	case <-stopped2:
	case <-time.After(time.Second):
		t.Fatal("component2 did not stop after CancelAll")
	}

	if sup.SupervisedCount() != 0 {
		t.Errorf("SupervisedCount() after CancelAll = %d, want 0", sup.SupervisedCount())
	}
}

func TestSupervisor_NilHealth(t *testing.T) {
	sup := NewSupervisor(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	sup.Supervise(ctx, Func{
		ComponentName: "no_health_component",
		StartFn: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		},
	}, RestartOnFailure)

	// Must not panic without a health updater.
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("component did not start with nil health updater")
	}
}
