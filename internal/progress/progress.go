// Package progress fans per-project progress updates out to subscribers.
//
// Publishing never blocks: a subscriber that falls behind loses its oldest
// buffered updates first, so the most recent state is always delivered.
package progress

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/archlens/archlens/internal/metrics"
)

// Phase identifies the pipeline stage a job is in.
type Phase string

const (
	PhaseQueued     Phase = "queued"
	PhaseExtracting Phase = "extracting"
	PhaseRouting    Phase = "routing"
	PhaseChunking   Phase = "chunking"
	PhaseEmbedding  Phase = "embedding"
	PhaseIndexing   Phase = "indexing"
	PhaseAnalyzing  Phase = "analyzing"
	PhaseReporting  Phase = "reporting"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
)

// Update is one progress report for a project.
type Update struct {
	ProjectID      string  `json:"project_id"`
	Phase          Phase   `json:"phase"`
	Percent        float64 `json:"percent"`
	CurrentFile    string  `json:"current_file,omitempty"`
	FilesProcessed int     `json:"files_processed"`
	TotalFiles     int     `json:"total_files"`
	Message        string  `json:"message,omitempty"`
}

// subscription is one subscriber's buffered view of a project topic.
type subscription struct {
	id           uint64
	projectID    string
	updates      chan Update
	unsubscribed atomic.Bool
}

// Broker is the in-process fan-out for progress updates.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]*subscription
	nextID atomic.Uint64
	closed atomic.Bool
	logger *slog.Logger

	// bufferSize is the per-subscriber ring capacity.
	bufferSize int
}

// Option configures the Broker.
type Option func(*Broker)

// WithBufferSize sets the per-subscriber buffer capacity.
func WithBufferSize(size int) Option {
	return func(b *Broker) {
		if size > 0 {
			b.bufferSize = size
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broker) {
		b.logger = logger
	}
}

// NewBroker creates a progress broker.
func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		subs:       make(map[string]map[uint64]*subscription),
		bufferSize: 64,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish delivers an update to every subscriber of the project topic.
// Updates for the same project reach each subscriber in publication order;
// a full subscriber buffer evicts its oldest update to make room.
func (b *Broker) Publish(u Update) {
	if b.closed.Load() {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs[u.ProjectID] {
		for {
			select {
			case sub.updates <- u:
			default:
				// Buffer full: drop the oldest update, then retry.
				select {
				case <-sub.updates:
					metrics.ProgressDroppedTotal.Inc()
				default:
				}
				continue
			}
			break
		}
	}
}

// Subscribe registers interest in one project's updates. The returned channel
// is closed on unsubscribe or broker close.
func (b *Broker) Subscribe(projectID string) (<-chan Update, func()) {
	sub := &subscription{
		id:        b.nextID.Add(1),
		projectID: projectID,
		updates:   make(chan Update, b.bufferSize),
	}

	if b.closed.Load() {
		close(sub.updates)
		return sub.updates, func() {}
	}

	b.mu.Lock()
	if b.subs[projectID] == nil {
		b.subs[projectID] = make(map[uint64]*subscription)
	}
	b.subs[projectID][sub.id] = sub
	b.mu.Unlock()

	metrics.ProgressSubscribers.Inc()

	return sub.updates, func() { b.unsubscribe(sub) }
}

func (b *Broker) unsubscribe(sub *subscription) {
	b.mu.Lock()
	if m, ok := b.subs[sub.projectID]; ok {
		if _, ok := m[sub.id]; ok {
			delete(m, sub.id)
			if len(m) == 0 {
				delete(b.subs, sub.projectID)
			}
		}
	}
	b.mu.Unlock()

	if sub.unsubscribed.CompareAndSwap(false, true) {
		close(sub.updates)
		metrics.ProgressSubscribers.Dec()
	}
}

// SubscriberCount returns the number of subscribers for a project.
func (b *Broker) SubscriberCount(projectID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[projectID])
}

// Close shuts the broker down and closes every subscriber channel.
func (b *Broker) Close() {
	if b.closed.Swap(true) {
		return
	}

	b.mu.Lock()
	var all []*subscription
	for _, m := range b.subs {
		for _, sub := range m {
			all = append(all, sub)
		}
	}
	b.subs = make(map[string]map[uint64]*subscription)
	b.mu.Unlock()

	for _, sub := range all {
		if sub.unsubscribed.CompareAndSwap(false, true) {
			close(sub.updates)
			metrics.ProgressSubscribers.Dec()
		}
	}
}
