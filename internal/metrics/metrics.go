// Package metrics provides Prometheus metrics for the review service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "archlens"

// Routing metrics track file router decisions.
var (
	// FilesRoutedTotal counts routed files by decision (direct, rag, skipped).
	FilesRoutedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "files_routed_total",
		Help:      "Total number of files routed, by decision",
	}, []string{"decision"})
)

// Chunking metrics track the semantic chunker.
var (
	// ChunksProducedTotal counts emitted chunks by language.
	ChunksProducedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chunks_produced_total",
		Help:      "Total number of chunks produced",
	}, []string{"language"})

	// ChunkerFallbacksTotal counts files that fell back to sliding-window
	// chunking after a parser failure or timeout.
	ChunkerFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chunker_fallbacks_total",
		Help:      "Total number of files chunked via the sliding-window fallback",
	})

	// ChunkingDuration is a histogram of per-file chunking duration.
	ChunkingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "chunking_duration_seconds",
		Help:      "Duration of per-file chunking in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
	})
)

// Embedding metrics track the embedding client.
var (
	// EmbeddingRequestsTotal counts embedding API requests by outcome.
	EmbeddingRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "embedding_requests_total",
		Help:      "Total number of embedding API requests",
	}, []string{"outcome"})

	// EmbeddingTokensTotal counts tokens reserved against the rate window.
	EmbeddingTokensTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "embedding_tokens_total",
		Help:      "Total number of tokens reserved for embedding",
	})

	// EmbeddingRateWaits counts waits imposed by the token rate window.
	EmbeddingRateWaits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "embedding_rate_waits_total",
		Help:      "Total number of one-second waits due to the token rate limit",
	})

	// EmbeddingBatchDuration is a histogram of embedding batch duration.
	EmbeddingBatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "embedding_batch_duration_seconds",
		Help:      "Duration of embedding batch requests in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~200s
	})
)

// Vector store metrics.
var (
	// VectorsIndexedTotal counts vectors successfully indexed.
	VectorsIndexedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "vectors_indexed_total",
		Help:      "Total number of vectors indexed",
	})

	// VectorVerificationFailures counts post-batch verification failures.
	VectorVerificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "vector_verification_failures_total",
		Help:      "Total number of post-batch payload verification failures",
	})
)

// Agent and report metrics.
var (
	// FindingsTotal counts findings by stage (emitted, merged, dropped).
	FindingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "findings_total",
		Help:      "Total number of findings by processing stage",
	}, []string{"stage"})

	// AgentDuration is a histogram of per-agent analysis duration.
	AgentDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "agent_duration_seconds",
		Help:      "Duration of agent analysis in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~400s
	}, []string{"agent"})

	// LLMRequestsTotal counts chat completion requests by provider and outcome.
	LLMRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_requests_total",
		Help:      "Total number of chat completion requests",
	}, []string{"provider", "outcome"})
)

// Job metrics track analysis jobs end to end.
var (
	// JobsActive is the number of jobs currently executing.
	JobsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "jobs_active",
		Help:      "Number of analysis jobs currently executing",
	})

	// JobsTotal counts finished jobs by outcome (completed, failed).
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_total",
		Help:      "Total number of finished analysis jobs",
	}, []string{"outcome"})

	// JobDuration is a histogram of job duration in seconds.
	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Duration of analysis jobs in seconds",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 13), // 1s to ~2.3h
	})
)

// Bus metrics track the command bus consumer.
var (
	// BusMessagesTotal counts consumed bus messages by outcome
	// (acked, retried, dead_lettered).
	BusMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bus_messages_total",
		Help:      "Total number of bus messages processed",
	}, []string{"outcome"})
)

// Progress metrics track the progress fan-out.
var (
	// ProgressDroppedTotal counts updates dropped due to slow subscribers.
	ProgressDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "progress_dropped_total",
		Help:      "Total number of progress updates dropped for slow subscribers",
	})

	// ProgressSubscribers is the current number of progress subscribers.
	ProgressSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "progress_subscribers",
		Help:      "Current number of progress subscribers",
	})
)

// Watchdog and resilience metrics.
var (
	// WatchdogTrackedOps is the number of operations currently tracked.
	WatchdogTrackedOps = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "watchdog_tracked_ops",
		Help:      "Number of batch operations tracked by the watchdog",
	})

	// WatchdogStuckTotal counts operations marked stuck.
	WatchdogStuckTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "watchdog_stuck_total",
		Help:      "Total number of operations marked stuck",
	}, []string{"reason"})

	// BreakerState is the circuit breaker state per target
	// (0 closed, 1 half-open, 2 open).
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "breaker_state",
		Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
	}, []string{"target"})

	// RetriesTotal counts retry attempts by target.
	RetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retries_total",
		Help:      "Total number of retry attempts",
	}, []string{"target"})
)
