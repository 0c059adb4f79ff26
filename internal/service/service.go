// Package service composes the review service: it supervises the
// long-running components (bus consumer, watchdog sweeper) with restart
// backoff, runs the HTTP server, aggregates component health for the
// probe endpoints, and drives graceful shutdown.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// State represents the lifecycle state of the service.
type State string

const (
	// StateStarting indicates the service is initializing.
	StateStarting State = "starting"

	// StateRunning indicates all components are supervised and serving.
	StateRunning State = "running"

	// StateDegraded indicates a restartable component is failing.
	StateDegraded State = "degraded"

	// StateStopping indicates graceful shutdown is in progress.
	StateStopping State = "stopping"

	// StateStopped indicates the service has terminated.
	StateStopped State = "stopped"
)

// IsTerminal returns true if this state is terminal.
func (s State) IsTerminal() bool {
	return s == StateStopped
}

// CanTransitionTo returns true if transitioning to the target state is valid.
func (s State) CanTransitionTo(target State) bool {
	switch s {
	case StateStarting:
		return target == StateRunning || target == StateStopped
	case StateRunning:
		return target == StateDegraded || target == StateStopping
	case StateDegraded:
		return target == StateRunning || target == StateStopping
	case StateStopping:
		return target == StateStopped
	case StateStopped:
		return false
	default:
		return false
	}
}

// HTTPServer is the serving surface managed by the runtime. Start blocks
// until the server stops; Shutdown drains in-flight requests.
type HTTPServer interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Config holds runtime configuration.
type Config struct {
	// ShutdownTimeout bounds graceful shutdown of the HTTP server and the
	// supervised components.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the default runtime configuration.
func DefaultConfig() Config {
	return Config{
		ShutdownTimeout: 30 * time.Second,
	}
}

type supervised struct {
	comp   Component
	policy RestartPolicy
}

// Runtime manages the service lifecycle. It is safe for concurrent use.
type Runtime struct {
	mu         sync.RWMutex
	cfg        Config
	state      State
	health     *HealthManager
	supervisor *Supervisor
	server     HTTPServer
	components []supervised
	logger     *slog.Logger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeLogger sets the logger.
func WithRuntimeLogger(logger *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRuntime creates a runtime around the given HTTP server, reporting
// component health into health.
func NewRuntime(cfg Config, health *HealthManager, server HTTPServer, opts ...RuntimeOption) *Runtime {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}
	if health == nil {
		health = NewHealthManager()
	}

	r := &Runtime{
		cfg:    cfg,
		state:  StateStopped,
		health: health,
		server: server,
		logger: slog.Default(),
	}
	r.supervisor = NewSupervisor(health)

	for _, opt := range opts {
		opt(r)
	}
	WithSupervisorLogger(r.logger)(r.supervisor)

	return r
}

// State returns the current service state.
func (r *Runtime) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Runtime) setState(state State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
}

// Health returns the current aggregate health status.
func (r *Runtime) Health() HealthStatus {
	return r.health.Status()
}

// Add registers a component for supervision. Components must be added
// before Run is called.
func (r *Runtime) Add(comp Component, policy RestartPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components = append(r.components, supervised{comp: comp, policy: policy})
}

// Run starts the supervised components and the HTTP server, then blocks
// until ctx is cancelled, the server fails, or a component fails without
// a restart policy. It performs graceful shutdown before returning; the
// returned error is the failure that ended the run, if any.
func (r *Runtime) Run(ctx context.Context) error {
	r.setState(StateStarting)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.mu.RLock()
	components := make([]supervised, len(r.components))
	copy(components, r.components)
	r.mu.RUnlock()

	for _, sc := range components {
		r.supervisor.Supervise(runCtx, sc.comp, sc.policy)
	}

	r.setState(StateRunning)
	r.logger.Info("service started", "components", len(components))

	serverErr := make(chan error, 1)
	go func() {
		if err := r.server.Start(runCtx); err != nil {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			r.logger.Error("http server failed", "error", err)
			runErr = err
		}
	case err := <-r.supervisor.Fatal():
		r.logger.Error("unrecoverable component failure", "error", err)
		runErr = err
	}

	if err := r.stop(components); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// stop drains the HTTP server, cancels component supervision, and runs
// the component Stop hooks, all bounded by the shutdown timeout.
func (r *Runtime) stop(components []supervised) error {
	r.setState(StateStopping)
	r.logger.Info("stopping service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), r.cfg.ShutdownTimeout)
	defer cancel()

	if err := r.server.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("failed to shutdown http server", "error", err)
	}

	r.supervisor.CancelAll()

	done := make(chan struct{})
	go func() {
		r.supervisor.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		r.logger.Warn("components did not stop before the shutdown timeout")
	}

	for _, sc := range components {
		if err := sc.comp.Stop(shutdownCtx); err != nil {
			r.logger.Warn("component stop failed",
				"component", sc.comp.Name(),
				"error", err,
			)
		}
	}

	r.setState(StateStopped)
	r.logger.Info("service stopped")

	return nil
}
