package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/archlens/archlens/internal/metrics"
)

// ErrBreakerOpen is returned when the circuit is open and calls are refused.
var ErrBreakerOpen = errors.New("circuit breaker open")

// BreakerState is the current circuit state.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateHalfOpen
	StateOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	default:
		return "open"
	}
}

// BreakerConfig controls when the circuit opens.
type BreakerConfig struct {
	// FailureRatio opens the circuit when failures/total meets it.
	FailureRatio float64

	// MinThroughput is the minimum number of calls in the sampling window
	// before the ratio is evaluated.
	MinThroughput int

	// SamplingWindow is the period over which calls are counted.
	SamplingWindow time.Duration

	// BreakDuration is how long the circuit stays open before half-opening.
	BreakDuration time.Duration
}

// DefaultBreakerConfig returns the standard configuration: open at 50%
// failures over at least 10 calls within 30s, stay open 30s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureRatio:   0.5,
		MinThroughput:  10,
		SamplingWindow: 30 * time.Second,
		BreakDuration:  30 * time.Second,
	}
}

// CircuitBreaker refuses calls to a failing target until it recovers. A
// half-open circuit admits one probe; its outcome closes or re-opens the
// circuit.
type CircuitBreaker struct {
	target string
	cfg    BreakerConfig
	now    func() time.Time

	mu          sync.Mutex
	state       BreakerState
	windowStart time.Time
	successes   int
	failures    int
	openedAt    time.Time
	probing     bool
}

// NewBreaker creates a circuit breaker for the named target.
func NewBreaker(target string, cfg BreakerConfig) *CircuitBreaker {
	b := &CircuitBreaker{
		target: target,
		cfg:    cfg,
		now:    time.Now,
		state:  StateClosed,
	}
	b.windowStart = b.now()
	return b
}

// Allow reports whether a call may proceed. In the half-open state only a
// single probe is admitted at a time.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	switch b.state {
	case StateClosed:
		b.rotateWindow(now)
		return true
	case StateOpen:
		if now.Sub(b.openedAt) >= b.cfg.BreakDuration {
			b.transition(StateHalfOpen)
			b.probing = true
			return true
		}
		return false
	default: // half-open
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
}

// Record reports a call outcome to the breaker.
func (b *CircuitBreaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	switch b.state {
	case StateHalfOpen:
		b.probing = false
		if err == nil {
			b.transition(StateClosed)
			b.resetWindow(now)
		} else {
			b.transition(StateOpen)
			b.openedAt = now
		}
	case StateClosed:
		b.rotateWindow(now)
		if err == nil {
			b.successes++
			return
		}
		b.failures++
		total := b.successes + b.failures
		if total >= b.cfg.MinThroughput &&
			float64(b.failures)/float64(total) >= b.cfg.FailureRatio {
			b.transition(StateOpen)
			b.openedAt = now
		}
	}
}

// Do runs fn if the circuit admits the call and records the outcome.
func (b *CircuitBreaker) Do(fn func() error) error {
	if !b.Allow() {
		return ErrBreakerOpen
	}
	err := fn()
	b.Record(err)
	return err
}

// State returns the current circuit state.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// rotateWindow resets counters when the sampling window has elapsed.
// Callers hold b.mu.
func (b *CircuitBreaker) rotateWindow(now time.Time) {
	if now.Sub(b.windowStart) >= b.cfg.SamplingWindow {
		b.resetWindow(now)
	}
}

func (b *CircuitBreaker) resetWindow(now time.Time) {
	b.windowStart = now
	b.successes = 0
	b.failures = 0
}

func (b *CircuitBreaker) transition(next BreakerState) {
	b.state = next
	metrics.BreakerState.WithLabelValues(b.target).Set(float64(next))
}
