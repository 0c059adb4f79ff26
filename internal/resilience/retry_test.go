package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"
)

func fastRetryConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		Factor:      2.0,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"http 429", &HTTPStatusError{StatusCode: 429}, true},
		{"http 408", &HTTPStatusError{StatusCode: 408}, true},
		{"http 425", &HTTPStatusError{StatusCode: 425}, true},
		{"http 500", &HTTPStatusError{StatusCode: 500}, true},
		{"http 503", &HTTPStatusError{StatusCode: 503}, true},
		{"http 504", &HTTPStatusError{StatusCode: 504}, true},
		{"http 505", &HTTPStatusError{StatusCode: 505}, false},
		{"http 400", &HTTPStatusError{StatusCode: 400}, false},
		{"http 401", &HTTPStatusError{StatusCode: 401}, false},
		{"net op error", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"wrapped 429", errors.Join(errors.New("outer"), &HTTPStatusError{StatusCode: 429}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(3), "test", nil, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &HTTPStatusError{StatusCode: 503}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryStopsOnNonTransient(t *testing.T) {
	calls := 0
	permanent := errors.New("bad request")
	err := Retry(context.Background(), fastRetryConfig(3), "test", nil, func(ctx context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected the permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("non-transient error should not be retried, got %d calls", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(3), "test", nil, func(ctx context.Context) error {
		calls++
		return &HTTPStatusError{StatusCode: 500}
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}

	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Errorf("final error should wrap the last failure: %v", err)
	}
}

func TestRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	cfg := RetryConfig{MaxAttempts: 5, BaseDelay: time.Hour, Factor: 2, MaxDelay: time.Hour}

	done := make(chan error, 1)
	go func() {
		done <- Retry(ctx, cfg, "test", nil, func(ctx context.Context) error {
			calls++
			return &HTTPStatusError{StatusCode: 503}
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("retry did not observe cancellation")
	}
	if calls != 1 {
		t.Errorf("expected 1 call before cancel, got %d", calls)
	}
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestPerCallTimeoutIsTransient(t *testing.T) {
	// A provider-style wrap of an expired per-call deadline must stay
	// retryable so a single slow response does not fail the whole run.
	err := WithTimeout(context.Background(), 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return fmt.Errorf("embeddings request failed; %w", ctx.Err())
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if !IsTransient(err) {
		t.Errorf("per-call timeout should be transient: %v", err)
	}
}

func TestRetryRetriesPerCallTimeout(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(3), "test", nil, func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return WithTimeout(ctx, time.Nanosecond, func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			})
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected a retry after a per-call timeout, got %d calls", calls)
	}
}

func TestRetryStopsWhenParentDeadlineExpired(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	calls := 0
	err := Retry(ctx, fastRetryConfig(5), "test", nil, func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if calls != 1 {
		t.Errorf("caller deadline must not be retried, got %d calls", calls)
	}
}
