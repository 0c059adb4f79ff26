package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/archlens/archlens/internal/config"
)

// Producer publishes analysis commands and lifecycle events.
type Producer struct {
	rdb    *redis.Client
	stream string
	logger *slog.Logger
}

// ProducerOption configures a Producer.
type ProducerOption func(*Producer)

// WithProducerLogger sets the logger used by the producer.
func WithProducerLogger(logger *slog.Logger) ProducerOption {
	return func(p *Producer) {
		p.logger = logger
	}
}

// NewProducer creates a producer for the configured command stream.
func NewProducer(cfg config.BusConfig, opts ...ProducerOption) *Producer {
	p := &Producer{
		rdb:    newRedisClient(cfg.RedisAddr, cfg.ResolvePassword()),
		stream: cfg.Stream,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// EnqueueAnalysis appends a StartAnalysisCommand to the command stream
// and returns the stream entry id.
func (p *Producer) EnqueueAnalysis(ctx context.Context, cmd StartAnalysisCommand) (string, error) {
	if cmd.CreatedAt.IsZero() {
		cmd.CreatedAt = time.Now().UTC()
	}
	values, err := encodeCommand(cmd)
	if err != nil {
		return "", err
	}

	id, err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to enqueue analysis for project %s; %w", cmd.ProjectID, err)
	}

	p.logger.Info("enqueued analysis",
		"project_id", cmd.ProjectID,
		"correlation_id", cmd.CorrelationID,
		"message_id", id)
	return id, nil
}

// PublishStarted emits an AnalysisStartedEvent.
func (p *Producer) PublishStarted(ctx context.Context, ev AnalysisStartedEvent) error {
	if ev.StartedAt.IsZero() {
		ev.StartedAt = time.Now().UTC()
	}
	return p.publishEvent(ctx, EventAnalysisStarted, ev)
}

// PublishCompleted emits an AnalysisCompletedEvent.
func (p *Producer) PublishCompleted(ctx context.Context, ev AnalysisCompletedEvent) error {
	if ev.CompletedAt.IsZero() {
		ev.CompletedAt = time.Now().UTC()
	}
	return p.publishEvent(ctx, EventAnalysisCompleted, ev)
}

// PublishFailed emits an AnalysisFailedEvent.
func (p *Producer) PublishFailed(ctx context.Context, ev AnalysisFailedEvent) error {
	if ev.FailedAt.IsZero() {
		ev.FailedAt = time.Now().UTC()
	}
	return p.publishEvent(ctx, EventAnalysisFailed, ev)
}

func (p *Producer) publishEvent(ctx context.Context, kind string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s event; %w", kind, err)
	}

	err = p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: EventsStream,
		Values: map[string]any{
			"kind":       kind,
			payloadField: string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish %s event; %w", kind, err)
	}
	return nil
}

// Ping verifies the Redis connection.
func (p *Producer) Ping(ctx context.Context) error {
	if err := p.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unreachable; %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (p *Producer) Close() error {
	return p.rdb.Close()
}
