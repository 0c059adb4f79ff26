package embedding

import (
	"context"
	"testing"
	"time"

	"github.com/archlens/archlens/internal/apperr"
	"github.com/archlens/archlens/internal/resilience"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Factor:      2.0,
		MaxDelay:    5 * time.Millisecond,
	}
}

func newTestClient(p Provider, cfg Config) *Client {
	c := NewClient(p, cfg,
		WithTokenCounter(func(s string) int { return len(s) }),
		WithRetryConfig(fastRetry()),
	)
	c.waitStep = time.Millisecond
	c.maxWaits = 5
	return c
}

func TestEmbedBatch(t *testing.T) {
	p := &mockProvider{dims: 8}
	c := newTestClient(p, Config{Dimension: 8})

	vectors, err := c.EmbedBatch(context.Background(), []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("vector count = %d, want 2", len(vectors))
	}
	for i, v := range vectors {
		if len(v) != 8 {
			t.Errorf("vector %d dimension = %d, want 8", i, len(v))
		}
	}
	if got := p.calls.Load(); got != 1 {
		t.Errorf("provider calls = %d, want 1", got)
	}
}

func TestEmbedBatchRejectsWrongDimension(t *testing.T) {
	p := &mockProvider{dims: 4}
	c := newTestClient(p, Config{Dimension: 8})

	if _, err := c.EmbedBatch(context.Background(), []string{"alpha"}); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestEmbedAllBatches(t *testing.T) {
	p := &mockProvider{dims: 4}
	c := newTestClient(p, Config{Dimension: 4, BatchSize: 16})

	texts := make([]string, 40)
	for i := range texts {
		texts[i] = "text"
	}

	var reports [][2]int
	vectors, err := c.EmbedAll(context.Background(), texts, func(done, total int) {
		reports = append(reports, [2]int{done, total})
	})
	if err != nil {
		t.Fatalf("EmbedAll: %v", err)
	}
	if len(vectors) != 40 {
		t.Fatalf("vector count = %d, want 40", len(vectors))
	}

	wantSizes := []int{16, 16, 8}
	if len(p.batchSizes) != len(wantSizes) {
		t.Fatalf("batch count = %d, want %d", len(p.batchSizes), len(wantSizes))
	}
	for i, size := range wantSizes {
		if p.batchSizes[i] != size {
			t.Errorf("batch %d size = %d, want %d", i, p.batchSizes[i], size)
		}
	}

	wantReports := [][2]int{{16, 40}, {32, 40}, {40, 40}}
	if len(reports) != len(wantReports) {
		t.Fatalf("progress reports = %v, want %v", reports, wantReports)
	}
	for i := range wantReports {
		if reports[i] != wantReports[i] {
			t.Errorf("report %d = %v, want %v", i, reports[i], wantReports[i])
		}
	}
}

func TestReserveTokensProceedsAfterBudgetWaits(t *testing.T) {
	p := &mockProvider{dims: 4}
	c := newTestClient(p, Config{Dimension: 4, TokensPerMinute: 100})

	// Freeze the clock so the window never resets.
	fixed := time.Now()
	c.now = func() time.Time { return fixed }
	c.periodStart = fixed

	c.reserveTokens(context.Background(), 60)
	c.reserveTokens(context.Background(), 60)

	c.mu.Lock()
	got := c.tokensThisPeriod
	c.mu.Unlock()
	if got != 120 {
		t.Errorf("tokens this period = %d, want 120 (forced through after waits)", got)
	}
}

func TestReserveTokensOversizedPassesAfterReset(t *testing.T) {
	p := &mockProvider{dims: 4}
	c := newTestClient(p, Config{Dimension: 4, TokensPerMinute: 100})

	base := time.Now()
	calls := 0
	c.now = func() time.Time {
		calls++
		if calls > 2 {
			return base.Add(2 * time.Minute)
		}
		return base
	}
	c.periodStart = base

	// A batch larger than the whole budget passes immediately on a fresh
	// window.
	c.reserveTokens(context.Background(), 250)
	c.mu.Lock()
	if c.tokensThisPeriod != 250 {
		t.Errorf("tokens = %d, want 250", c.tokensThisPeriod)
	}
	c.mu.Unlock()

	// The next reservation exceeds the budget until the clock moves past
	// the window, then passes against the reset.
	c.reserveTokens(context.Background(), 50)
	c.mu.Lock()
	if c.tokensThisPeriod != 50 {
		t.Errorf("tokens after reset = %d, want 50", c.tokensThisPeriod)
	}
	c.mu.Unlock()
}

func TestAcquireSlotTimesOutAndProceeds(t *testing.T) {
	p := &mockProvider{dims: 4}
	c := newTestClient(p, Config{Dimension: 4, Concurrency: 1})
	c.slotTimeout = 5 * time.Millisecond

	// Hold the only slot so the call has to time out.
	if err := c.slots.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("setup acquire: %v", err)
	}
	defer c.slots.Release(1)

	vectors, err := c.EmbedBatch(context.Background(), []string{"alpha"})
	if err != nil {
		t.Fatalf("EmbedBatch should proceed past slot timeout: %v", err)
	}
	if len(vectors) != 1 {
		t.Fatalf("vector count = %d, want 1", len(vectors))
	}
}

func TestEmbedBatchRetriesTransient(t *testing.T) {
	p := &mockProvider{dims: 4}
	p.fail = func(call int64) error {
		if call <= 2 {
			return &resilience.HTTPStatusError{StatusCode: 503, Body: "unavailable"}
		}
		return nil
	}
	c := newTestClient(p, Config{Dimension: 4})

	if _, err := c.EmbedBatch(context.Background(), []string{"alpha"}); err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if got := p.calls.Load(); got != 3 {
		t.Errorf("provider calls = %d, want 3 (two retries)", got)
	}
}

func TestEmbedBatchRateLimitedCode(t *testing.T) {
	p := &mockProvider{dims: 4}
	p.fail = func(call int64) error {
		return &resilience.HTTPStatusError{StatusCode: 429, Body: "slow down"}
	}
	c := newTestClient(p, Config{Dimension: 4})

	_, err := c.EmbedBatch(context.Background(), []string{"alpha"})
	if err == nil {
		t.Fatal("expected rate limit error")
	}
	if !apperr.HasCode(err, apperr.CodeEmbeddingRateLimited) {
		t.Errorf("error %v does not carry %s", err, apperr.CodeEmbeddingRateLimited)
	}
}
