// Package resilience wraps outbound calls to the embedder, the chat model
// and the vector store with retry, circuit breaking and per-class timeouts.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"github.com/archlens/archlens/internal/metrics"
)

// Default timeout classes for outbound calls.
const (
	EmbeddingTimeout = 120 * time.Second
	ChatTimeout      = 180 * time.Second
)

// RetryConfig controls the exponential backoff schedule.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// Factor multiplies the delay after each attempt.
	Factor float64

	// MaxDelay caps the delay between attempts.
	MaxDelay time.Duration
}

// DefaultRetryConfig returns the standard schedule: base 250ms, factor 2,
// cap 15s.
func DefaultRetryConfig(maxAttempts int) RetryConfig {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return RetryConfig{
		MaxAttempts: maxAttempts,
		BaseDelay:   250 * time.Millisecond,
		Factor:      2.0,
		MaxDelay:    15 * time.Second,
	}
}

// HTTPStatusError carries an HTTP status code so the classifier can decide
// whether the failure is transient.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Body)
}

// IsTransient reports whether an error is worth retrying: HTTP
// 408/425/429/500-504, socket-level failures, and an expired per-call
// deadline (the provider was too slow, not wrong). Caller cancellation
// is never transient; Retry checks the parent context separately so a
// deadline inherited from the caller does not loop.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
			return true
		}
		return statusErr.StatusCode >= 500 && statusErr.StatusCode <= 504
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// Retry runs fn up to cfg.MaxAttempts times, backing off between attempts
// with full jitter. Non-transient errors and context cancellation stop the
// loop immediately.
func Retry(ctx context.Context, cfg RetryConfig, target string, logger *slog.Logger, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	delay := cfg.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
		// A dead parent context means the deadline or cancellation came
		// from the caller, not a per-call timeout. Stop without retrying.
		if ctx.Err() != nil {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		metrics.RetriesTotal.WithLabelValues(target).Inc()

		// Full jitter keeps concurrent retries from synchronizing.
		sleep := time.Duration(rand.Int64N(int64(delay) + 1))
		if logger != nil {
			logger.Warn("retrying after transient failure",
				"target", target,
				"attempt", attempt,
				"delay", sleep,
				"error", lastErr,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}

		delay = time.Duration(float64(delay) * cfg.Factor)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("all %d attempts against %s failed; %w", cfg.MaxAttempts, target, lastErr)
}

// WithTimeout runs fn under a per-call deadline.
func WithTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}
