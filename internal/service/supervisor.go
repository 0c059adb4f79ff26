package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultMinBackoff = time.Second
	defaultMaxBackoff = 30 * time.Second
)

// HealthUpdater receives component health transitions from the supervisor.
type HealthUpdater interface {
	UpdateComponent(name string, health ComponentHealth)
}

// Supervisor runs components and restarts the restartable ones after
// failure with doubling backoff. A failure of a RestartNever component
// is unrecoverable and is reported on the fatal channel instead.
type Supervisor struct {
	cancels    map[string]context.CancelFunc
	health     HealthUpdater
	logger     *slog.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
	fatal      chan error
	wg         sync.WaitGroup
	mu         sync.Mutex
}

// SupervisorOption configures a Supervisor.
type SupervisorOption func(*Supervisor)

// WithSupervisorLogger sets the logger for supervision.
func WithSupervisorLogger(logger *slog.Logger) SupervisorOption {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithBackoff sets the min and max restart backoff durations.
func WithBackoff(min, max time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.minBackoff = min
		s.maxBackoff = max
	}
}

// NewSupervisor creates a supervisor reporting into health. A nil health
// updater disables health reporting.
func NewSupervisor(health HealthUpdater, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		cancels:    make(map[string]context.CancelFunc),
		health:     health,
		logger:     slog.Default(),
		minBackoff: defaultMinBackoff,
		maxBackoff: defaultMaxBackoff,
		fatal:      make(chan error, 1),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Fatal returns the channel carrying the first unrecoverable component
// failure. The runtime shuts the service down when it receives one.
func (s *Supervisor) Fatal() <-chan error {
	return s.fatal
}

// Supervise starts comp in a goroutine and keeps it running per policy.
// comp.Start must return promptly once its context is cancelled; a return
// caused by cancellation is recorded as stopped, not failed.
func (s *Supervisor) Supervise(ctx context.Context, comp Component, policy RestartPolicy) {
	runCtx, cancel := context.WithCancel(ctx)
	name := comp.Name()

	s.mu.Lock()
	s.cancels[name] = cancel
	s.mu.Unlock()

	backoff := s.minBackoff

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			s.update(name, ComponentHealth{
				Status:      StatusRunning,
				LastChecked: time.Now(),
				LastSuccess: time.Now(),
			})

			err := comp.Start(runCtx)

			if runCtx.Err() != nil {
				s.update(name, ComponentHealth{
					Status:      StatusStopped,
					LastChecked: time.Now(),
				})
				return
			}

			if err == nil {
				// Clean exit without cancellation; nothing to restart.
				s.update(name, ComponentHealth{
					Status:      StatusStopped,
					LastChecked: time.Now(),
				})
				return
			}

			s.logger.Warn("component failed",
				"component", name,
				"error", err,
			)
			s.update(name, ComponentHealth{
				Status:      StatusFailed,
				Error:       err.Error(),
				LastChecked: time.Now(),
			})

			if policy == RestartNever {
				s.reportFatal(fmt.Errorf("component %s failed; %w", name, err))
				return
			}

			select {
			case <-runCtx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > s.maxBackoff {
				backoff = s.maxBackoff
			}

			s.logger.Info("restarting component",
				"component", name,
				"next_backoff", backoff,
			)
		}
	}()
}

// Cancel cancels supervision for a specific component.
func (s *Supervisor) Cancel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, ok := s.cancels[name]; ok {
		cancel()
		delete(s.cancels, name)
	}
}

// CancelAll cancels all supervised components.
func (s *Supervisor) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, cancel := range s.cancels {
		s.logger.Debug("cancelling component", "component", name)
		cancel()
	}
	s.cancels = make(map[string]context.CancelFunc)
}

// SupervisedCount returns the number of currently supervised components.
func (s *Supervisor) SupervisedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cancels)
}

// Wait blocks until every supervision goroutine has exited.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

func (s *Supervisor) update(name string, health ComponentHealth) {
	if s.health == nil {
		return
	}
	s.health.UpdateComponent(name, health)
}

func (s *Supervisor) reportFatal(err error) {
	select {
	case s.fatal <- err:
	default:
	}
}
