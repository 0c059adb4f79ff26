// Package watchdog supervises long-running batch operations and marks jobs
// stuck when heartbeats stop or a project overruns its time budget.
package watchdog

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/archlens/archlens/internal/metrics"
)

// Stuck reasons reported by the sweeper.
const (
	ReasonHeartbeat = "heartbeat"
	ReasonOverrun   = "overrun"
)

// Config controls sweep cadence and thresholds.
type Config struct {
	CheckInterval        time.Duration
	MaxHeartbeatInterval time.Duration
	MaxProjectDuration   time.Duration
	AutoCancelStuck      bool
}

// DefaultConfig returns the standard thresholds: sweep every 30s, stuck
// after 120s without a heartbeat or 3600s total.
func DefaultConfig() Config {
	return Config{
		CheckInterval:        30 * time.Second,
		MaxHeartbeatInterval: 120 * time.Second,
		MaxProjectDuration:   3600 * time.Second,
	}
}

// StuckOp describes an operation the sweeper marked stuck.
type StuckOp struct {
	ProjectID string
	Phase     string
	Offset    int
	Total     int
	Reason    string
	Since     time.Duration
}

// trackedOp is the supervised state for one project's active batch work.
type trackedOp struct {
	projectID     string
	phase         string
	offset        int
	total         int
	startedAt     time.Time
	lastHeartbeat time.Time
	cancel        context.CancelFunc
	stuck         bool
}

// Tracker owns the map of supervised operations and the background sweeper.
type Tracker struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu  sync.Mutex
	ops map[string]*trackedOp

	// onStuck is invoked once per operation when it is first marked stuck.
	onStuck func(StuckOp)
}

// Option configures the Tracker.
type Option func(*Tracker)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithOnStuck registers a callback fired when an operation is marked stuck.
func WithOnStuck(fn func(StuckOp)) Option {
	return func(t *Tracker) {
		t.onStuck = fn
	}
}

// NewTracker creates a watchdog tracker.
func NewTracker(cfg Config, opts ...Option) *Tracker {
	t := &Tracker{
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
		ops:    make(map[string]*trackedOp),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Handle scopes one tracked operation; Release removes the tracking.
type Handle struct {
	tracker   *Tracker
	projectID string
	released  atomic.Bool
}

// Release removes the operation from supervision. Safe to call twice.
func (h *Handle) Release() {
	if h == nil || !h.released.CompareAndSwap(false, true) {
		return
	}
	h.tracker.mu.Lock()
	_, present := h.tracker.ops[h.projectID]
	delete(h.tracker.ops, h.projectID)
	h.tracker.mu.Unlock()
	if present {
		metrics.WatchdogTrackedOps.Dec()
	}
}

// Track begins supervising a batch operation for a project. cancel is
// invoked by the sweeper when the operation is marked stuck and auto-cancel
// is enabled. Tracking the same project again replaces the previous entry.
func (t *Tracker) Track(projectID string, offset, total int, cancel context.CancelFunc) *Handle {
	now := t.now()
	t.mu.Lock()
	if _, ok := t.ops[projectID]; !ok {
		metrics.WatchdogTrackedOps.Inc()
	}
	t.ops[projectID] = &trackedOp{
		projectID:     projectID,
		offset:        offset,
		total:         total,
		startedAt:     now,
		lastHeartbeat: now,
		cancel:        cancel,
	}
	t.mu.Unlock()

	return &Handle{tracker: t, projectID: projectID}
}

// Heartbeat records liveness for a project's tracked operation.
func (t *Tracker) Heartbeat(projectID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if op, ok := t.ops[projectID]; ok {
		op.lastHeartbeat = t.now()
	}
}

// UpdatePhase records the pipeline phase the operation is in.
func (t *Tracker) UpdatePhase(projectID, phase string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if op, ok := t.ops[projectID]; ok {
		op.phase = phase
	}
}

// UpdateOffset advances the batch offset for progress-aware supervision.
func (t *Tracker) UpdateOffset(projectID string, offset int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if op, ok := t.ops[projectID]; ok {
		op.offset = offset
	}
}

// Tracked returns the number of operations currently supervised.
func (t *Tracker) Tracked() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ops)
}

// Run drives the sweeper until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.Sweep()
		}
	}
}

// Sweep checks every tracked operation once and marks stuck ones. A stuck
// operation stays tracked until its handle releases it, but is only
// reported once.
func (t *Tracker) Sweep() []StuckOp {
	now := t.now()

	t.mu.Lock()
	var found []StuckOp
	for _, op := range t.ops {
		if op.stuck {
			continue
		}

		var reason string
		var since time.Duration
		if gap := now.Sub(op.lastHeartbeat); gap > t.cfg.MaxHeartbeatInterval {
			reason, since = ReasonHeartbeat, gap
		} else if run := now.Sub(op.startedAt); run > t.cfg.MaxProjectDuration {
			reason, since = ReasonOverrun, run
		} else {
			continue
		}

		op.stuck = true
		found = append(found, StuckOp{
			ProjectID: op.projectID,
			Phase:     op.phase,
			Offset:    op.offset,
			Total:     op.total,
			Reason:    reason,
			Since:     since,
		})
		if t.cfg.AutoCancelStuck && op.cancel != nil {
			op.cancel()
		}
	}
	t.mu.Unlock()

	for _, s := range found {
		metrics.WatchdogStuckTotal.WithLabelValues(s.Reason).Inc()
		t.logger.Warn("operation marked stuck",
			"project_id", s.ProjectID,
			"phase", s.Phase,
			"reason", s.Reason,
			"since", s.Since,
			"offset", s.Offset,
			"total", s.Total,
		)
		if t.onStuck != nil {
			t.onStuck(s)
		}
	}

	return found
}
