package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/archlens/archlens/internal/apperr"
	"github.com/archlens/archlens/internal/metrics"
	"github.com/archlens/archlens/internal/resilience"
	"github.com/archlens/archlens/internal/tokenizer"
)

// Config bounds the embedding client.
type Config struct {
	// Concurrency is the number of in-flight provider requests.
	Concurrency int

	// TokensPerMinute is the token budget of the sliding rate window.
	TokensPerMinute int

	// BatchSize is the number of texts per provider request in batched
	// mode.
	BatchSize int

	// Dimension is the required length of every returned vector.
	Dimension int

	// MaxRetryAttempts is the total attempts per provider request.
	MaxRetryAttempts int
}

// DefaultConfig returns the production embedding bounds.
func DefaultConfig() Config {
	return Config{
		Concurrency:      5,
		TokensPerMinute:  1_000_000,
		BatchSize:        16,
		Dimension:        1536,
		MaxRetryAttempts: 3,
	}
}

// Client wraps a Provider with a concurrency gate and a per-minute token
// window. Both controls degrade rather than deadlock: a slot wait times out
// after two minutes and proceeds, and a token reservation gives up after
// 120 one-second waits and proceeds. Oversized batches pass right after a
// window reset so they cannot livelock.
type Client struct {
	cfg      Config
	provider Provider
	slots    *semaphore.Weighted
	retry    resilience.RetryConfig
	count    func(string) int
	logger   *slog.Logger

	// mu guards the window arithmetic only; waiting happens unlocked.
	mu               sync.Mutex
	periodStart      time.Time
	tokensThisPeriod int

	now         func() time.Time
	waitStep    time.Duration
	maxWaits    int
	slotTimeout time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger sets the client's logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithTokenCounter overrides estimation of a text's token cost.
func WithTokenCounter(count func(string) int) ClientOption {
	return func(c *Client) { c.count = count }
}

// WithRetryConfig overrides the retry schedule.
func WithRetryConfig(cfg resilience.RetryConfig) ClientOption {
	return func(c *Client) { c.retry = cfg }
}

// NewClient creates a Client around a provider. Zero config fields fall
// back to defaults.
func NewClient(provider Provider, cfg Config, opts ...ClientOption) *Client {
	def := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.TokensPerMinute <= 0 {
		cfg.TokensPerMinute = def.TokensPerMinute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = def.Dimension
	}
	if cfg.MaxRetryAttempts <= 0 {
		cfg.MaxRetryAttempts = def.MaxRetryAttempts
	}

	c := &Client{
		cfg:         cfg,
		provider:    provider,
		slots:       semaphore.NewWeighted(int64(cfg.Concurrency)),
		retry:       resilience.DefaultRetryConfig(cfg.MaxRetryAttempts),
		count:       func(text string) int { return tokenizer.Shared().Count(text) },
		logger:      slog.Default(),
		now:         time.Now,
		waitStep:    time.Second,
		maxWaits:    120,
		slotTimeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.periodStart = c.now()
	return c
}

// EmbedBatch embeds one group of texts through the gate, the token window
// and the retry schedule. Every returned vector has the configured
// dimension.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	estimate := 0
	for _, t := range texts {
		estimate += c.count(t)
	}

	release := c.acquireSlot(ctx)
	defer release()
	c.reserveTokens(ctx, estimate)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("embedding canceled; %w", err)
	}

	start := time.Now()
	var vectors [][]float32
	err := resilience.Retry(ctx, c.retry, "embeddings", c.logger, func(ctx context.Context) error {
		return resilience.WithTimeout(ctx, resilience.EmbeddingTimeout, func(ctx context.Context) error {
			var callErr error
			vectors, callErr = c.provider.EmbedBatch(ctx, texts)
			return callErr
		})
	})
	metrics.EmbeddingBatchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues("error").Inc()
		var statusErr *resilience.HTTPStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests {
			return nil, apperr.Wrap(apperr.CodeEmbeddingRateLimited, "embedding provider throttled", err)
		}
		return nil, fmt.Errorf("embedding batch failed; %w", err)
	}

	if len(vectors) != len(texts) {
		metrics.EmbeddingRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("provider returned %d vectors for %d inputs", len(vectors), len(texts))
	}
	for i, vec := range vectors {
		if len(vec) != c.cfg.Dimension {
			metrics.EmbeddingRequestsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(vec), c.cfg.Dimension)
		}
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues("ok").Inc()
	return vectors, nil
}

// EmbedAll embeds a sequence in groups of the configured batch size,
// reporting progress after each group.
func (c *Client) EmbedAll(ctx context.Context, texts []string, progress func(done, total int)) ([][]float32, error) {
	total := len(texts)
	out := make([][]float32, 0, total)

	for start := 0; start < total; start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > total {
			end = total
		}
		vectors, err := c.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch at offset %d; %w", start, err)
		}
		out = append(out, vectors...)
		if progress != nil {
			progress(end, total)
		}
	}
	return out, nil
}

// acquireSlot takes a concurrency slot, or gives up after the slot timeout
// and lets the call proceed unthrottled. The returned func releases the
// slot and is a no-op when acquisition failed.
func (c *Client) acquireSlot(ctx context.Context) func() {
	acqCtx, cancel := context.WithTimeout(ctx, c.slotTimeout)
	defer cancel()

	if err := c.slots.Acquire(acqCtx, 1); err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("concurrency slot wait timed out, proceeding unthrottled",
				"timeout", c.slotTimeout,
			)
		}
		return func() {}
	}
	return func() { c.slots.Release(1) }
}

// reserveTokens charges an estimate against the per-minute window, waiting
// in one-second steps while the budget is exhausted. After maxWaits steps
// the reservation is forced through. An estimate at or above the whole
// budget passes as soon as the window resets.
func (c *Client) reserveTokens(ctx context.Context, estimate int) {
	for waited := 0; waited < c.maxWaits; waited++ {
		c.mu.Lock()
		now := c.now()
		if now.Sub(c.periodStart) >= time.Minute {
			c.periodStart = now
			c.tokensThisPeriod = 0
		}
		oversized := estimate >= c.cfg.TokensPerMinute && c.tokensThisPeriod == 0
		if oversized || c.tokensThisPeriod+estimate <= c.cfg.TokensPerMinute {
			c.tokensThisPeriod += estimate
			c.mu.Unlock()
			metrics.EmbeddingTokensTotal.Add(float64(estimate))
			return
		}
		c.mu.Unlock()

		metrics.EmbeddingRateWaits.Inc()
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.waitStep):
		}
	}

	c.mu.Lock()
	c.tokensThisPeriod += estimate
	c.mu.Unlock()
	metrics.EmbeddingTokensTotal.Add(float64(estimate))
	c.logger.Warn("token budget wait exhausted, proceeding anyway",
		"estimate", estimate,
		"budget", c.cfg.TokensPerMinute,
	)
}
