package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/archlens/archlens/internal/apperr"
	"github.com/archlens/archlens/internal/config"
	"github.com/archlens/archlens/internal/metrics"
	"github.com/archlens/archlens/internal/resilience"
)

// readBlock bounds each XREADGROUP call so the loop notices shutdown.
const readBlock = 5 * time.Second

// reclaimBatch bounds how many stale entries one sweep inspects.
const reclaimBatch = 64

// Handler processes one analysis command. Delivery counts from 1. A
// transient error leaves the message pending so it is redelivered;
// any other error acknowledges it (the handler has already recorded
// the failure).
type Handler func(ctx context.Context, cmd StartAnalysisCommand, delivery int) error

// DeadLetterFunc is called after a message is parked on the dead-letter
// stream, with the decoded command and how many deliveries were spent.
type DeadLetterFunc func(ctx context.Context, cmd StartAnalysisCommand, deliveries int)

// Consumer reads analysis commands from the command stream as part of a
// consumer group.
type Consumer struct {
	rdb           *redis.Client
	stream        string
	group         string
	consumer      string
	limit         int
	claimIdle     time.Duration
	maxDeliveries int
	handler       Handler
	onDeadLetter  DeadLetterFunc
	logger        *slog.Logger
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithConsumerLogger sets the logger used by the consumer.
func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		c.logger = logger
	}
}

// WithDeadLetterFunc sets the callback invoked after dead-lettering.
func WithDeadLetterFunc(fn DeadLetterFunc) ConsumerOption {
	return func(c *Consumer) {
		c.onDeadLetter = fn
	}
}

// NewConsumer creates a consumer. maxRetryAttempts is the number of
// redeliveries allowed after the first attempt; the total delivery
// budget is maxRetryAttempts+1.
func NewConsumer(cfg config.BusConfig, maxRetryAttempts int, handler Handler, opts ...ConsumerOption) *Consumer {
	if maxRetryAttempts < 0 {
		maxRetryAttempts = 0
	}
	limit := cfg.ConcurrentMessageLimit
	if limit < 1 {
		limit = 1
	}
	claimIdle := time.Duration(cfg.ClaimIdleSeconds) * time.Second
	if claimIdle <= 0 {
		claimIdle = 5 * time.Minute
	}

	c := &Consumer{
		rdb:           newRedisClient(cfg.RedisAddr, cfg.ResolvePassword()),
		stream:        cfg.Stream,
		group:         cfg.Group,
		consumer:      consumerName(cfg.Consumer),
		limit:         limit,
		claimIdle:     claimIdle,
		maxDeliveries: maxRetryAttempts + 1,
		handler:       handler,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// consumerName derives a stable per-process consumer name when none is
// configured.
func consumerName(configured string) string {
	if configured != "" {
		return configured
	}
	host, err := os.Hostname()
	if err != nil {
		host = "analyzer"
	}
	return host + "-" + strconv.Itoa(os.Getpid())
}

// Run consumes messages until the context is canceled. It creates the
// consumer group on first use and alternates between reclaiming stale
// deliveries and reading new messages.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.ensureGroup(ctx); err != nil {
		return err
	}
	c.logger.Info("bus consumer started",
		"stream", c.stream,
		"group", c.group,
		"consumer", c.consumer)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := c.reclaimStale(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warn("failed to reclaim stale deliveries", "error", err)
		}

		streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.consumer,
			Streams:  []string{c.stream, ">"},
			Count:    int64(c.limit),
			Block:    readBlock,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read command stream; %w", err)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.limit)
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				g.Go(func() error {
					c.processMessage(gctx, msg, 1)
					return nil
				})
			}
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
}

// Ping verifies the Redis connection.
func (c *Consumer) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unreachable; %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *Consumer) Close() error {
	return c.rdb.Close()
}

func (c *Consumer) ensureGroup(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, c.stream, c.group, "$").Err()
	if err != nil && !isBusyGroup(err) {
		return fmt.Errorf("failed to create consumer group %s; %w", c.group, err)
	}
	return nil
}

// isBusyGroup matches the error Redis returns when the group exists.
func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

// processMessage runs the handler for one delivery and settles the
// message: ack on success or permanent failure, leave pending on
// transient failure so the reclaim path redelivers it.
func (c *Consumer) processMessage(ctx context.Context, msg redis.XMessage, delivery int) {
	cmd, err := decodeCommand(msg.Values)
	if err != nil {
		c.logger.Error("dropping malformed bus message", "message_id", msg.ID, "error", err)
		c.deadLetter(ctx, msg, delivery)
		return
	}

	err = c.handler(ctx, cmd, delivery)
	switch {
	case err == nil:
		c.ack(ctx, msg.ID)
		metrics.BusMessagesTotal.WithLabelValues("acked").Inc()

	case ctx.Err() != nil:
		// Shutdown mid-handling: leave the message pending so another
		// consumer picks it up.
		c.logger.Info("handler interrupted by shutdown", "project_id", cmd.ProjectID)

	case retryable(err):
		metrics.BusMessagesTotal.WithLabelValues("retried").Inc()
		c.logger.Warn("transient job failure, leaving message for redelivery",
			"project_id", cmd.ProjectID,
			"delivery", delivery,
			"error", err)

	default:
		c.ack(ctx, msg.ID)
		metrics.BusMessagesTotal.WithLabelValues("acked").Inc()
		c.logger.Error("permanent job failure",
			"project_id", cmd.ProjectID,
			"delivery", delivery,
			"error", err)
	}
}

// reclaimStale claims pending entries idle past the claim threshold.
// Entries whose delivery budget is spent go to the dead-letter stream;
// the rest are retried on this consumer.
func (c *Consumer) reclaimStale(ctx context.Context) error {
	pending, err := c.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.stream,
		Group:  c.group,
		Start:  "-",
		End:    "+",
		Count:  reclaimBatch,
		Idle:   c.claimIdle,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to read pending entries; %w", err)
	}

	for _, entry := range pending {
		claimed, err := c.rdb.XClaim(ctx, &redis.XClaimArgs{
			Stream:   c.stream,
			Group:    c.group,
			Consumer: c.consumer,
			MinIdle:  c.claimIdle,
			Messages: []string{entry.ID},
		}).Result()
		if errors.Is(err, redis.Nil) || (err == nil && len(claimed) == 0) {
			// Another consumer won the claim, or the entry was acked.
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to claim entry %s; %w", entry.ID, err)
		}

		msg := claimed[0]
		deliveries := int(entry.RetryCount)
		if deliveries >= c.maxDeliveries {
			c.deadLetter(ctx, msg, deliveries)
			continue
		}
		c.processMessage(ctx, msg, deliveries+1)
	}
	return nil
}

// deadLetter parks a message on the dead-letter stream and acks the
// original so it stops recirculating.
func (c *Consumer) deadLetter(ctx context.Context, msg redis.XMessage, deliveries int) {
	values := make(map[string]any, len(msg.Values)+2)
	for k, v := range msg.Values {
		values[k] = v
	}
	values["origin_id"] = msg.ID
	values["deliveries"] = deliveries

	err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: c.stream + DeadLetterSuffix,
		Values: values,
	}).Err()
	if err != nil {
		c.logger.Error("failed to write dead-letter entry", "message_id", msg.ID, "error", err)
		// Leave unacked; the next sweep tries again.
		return
	}

	c.ack(ctx, msg.ID)
	metrics.BusMessagesTotal.WithLabelValues("dead_lettered").Inc()
	c.logger.Error("dead-lettered bus message", "message_id", msg.ID, "deliveries", deliveries)

	if c.onDeadLetter != nil {
		if cmd, err := decodeCommand(msg.Values); err == nil {
			c.onDeadLetter(ctx, cmd, deliveries)
		}
	}
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.rdb.XAck(ctx, c.stream, c.group, id).Err(); err != nil {
		c.logger.Error("failed to ack message", "message_id", id, "error", err)
	}
}

// retryable reports whether a handler error should trigger redelivery
// instead of settling the message.
func retryable(err error) bool {
	if apperr.HasCode(err, apperr.CodeEmbeddingRateLimited) {
		return true
	}
	return resilience.IsTransient(err)
}
