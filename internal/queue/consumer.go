package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/price-notifier/internal/metrics"
	"github.com/redis/go-redis/v9"
)

type ConsumerConfig struct {
	Stream     string
	Group      string
	Consumer   string
	Block      time.Duration
	Count      int64
	RetryDelay time.Duration

	ClaimInterval    time.Duration
	MinIdle          time.Duration
	MaxDeliveries    int64
	DeadLetterStream string
}

// Consumer reads send-requests from a stream as a member of a consumer group.
type Consumer struct {
	redis  RedisClient
	cfg    ConsumerConfig
	now    func() time.Time
	logger *slog.Logger
}

func NewConsumer(client RedisClient, cfg ConsumerConfig, logger *slog.Logger) *Consumer {
	if cfg.Stream == "" {
		cfg.Stream = DefaultStream
	}
	if cfg.Group == "" {
		cfg.Group = DefaultGroup
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "consumer-1"
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.Count <= 0 {
		cfg.Count = 10
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.ClaimInterval <= 0 {
		cfg.ClaimInterval = 30 * time.Second
	}
	if cfg.MinIdle <= 0 {
		cfg.MinIdle = time.Minute
	}
	if cfg.MaxDeliveries <= 0 {
		cfg.MaxDeliveries = 5
	}
	if cfg.DeadLetterStream == "" {
		cfg.DeadLetterStream = cfg.Stream + ":dead"
	}
	return &Consumer{
		redis:  client,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With("component", "consumer", "stream", cfg.Stream, "group", cfg.Group),
	}
}

// Run blocks until ctx is cancelled. Messages are acked after handle
// succeeds; failed ones stay pending and are reclaimed once idle for
// MinIdle. An entry delivered more than MaxDeliveries times is copied to
// the dead-letter stream and acked. Undecodable messages are acked and
// dropped.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	if err := c.redis.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "$").Err(); err != nil && !isBusyGroup(err) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	c.logger.Info("starting consumer", "consumer", c.cfg.Consumer)

	var nextClaim time.Time
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopped")
			return nil
		default:
		}

		if now := c.now(); !now.Before(nextClaim) {
			c.reclaim(ctx, handle)
			nextClaim = now.Add(c.cfg.ClaimInterval)
		}

		streams, err := c.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.cfg.Group,
			Consumer: c.cfg.Consumer,
			Streams:  []string{c.cfg.Stream, ">"},
			Count:    c.cfg.Count,
			Block:    c.cfg.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			c.logger.Error("failed to read from stream", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(c.cfg.RetryDelay):
			}
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				c.process(ctx, msg, handle)
			}
		}
	}
}

// reclaim takes over every entry idle for at least MinIdle, from any
// consumer in the group, and retries or dead-letters it.
func (c *Consumer) reclaim(ctx context.Context, handle Handler) {
	start := "0-0"
	for {
		msgs, next, err := c.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   c.cfg.Stream,
			Group:    c.cfg.Group,
			MinIdle:  c.cfg.MinIdle,
			Start:    start,
			Count:    c.cfg.Count,
			Consumer: c.cfg.Consumer,
		}).Result()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, redis.Nil) {
				c.logger.Error("failed to claim pending messages", "error", err)
			}
			return
		}

		for _, msg := range msgs {
			deliveries, err := c.deliveries(ctx, msg.ID)
			if err != nil {
				c.logger.Error("failed to read delivery count", "message_id", msg.ID, "error", err)
				continue
			}
			if deliveries > c.cfg.MaxDeliveries {
				c.deadLetter(ctx, msg, deliveries)
				continue
			}
			c.logger.Info("retrying pending message", "message_id", msg.ID, "deliveries", deliveries)
			c.process(ctx, msg, handle)
		}

		if next == "" || next == "0-0" {
			return
		}
		start = next
	}
}

func (c *Consumer) deliveries(ctx context.Context, id string) (int64, error) {
	pending, err := c.redis.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.cfg.Stream,
		Group:  c.cfg.Group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, fmt.Errorf("message %s is no longer pending", id)
	}
	return pending[0].RetryCount, nil
}

// deadLetter copies msg to the dead-letter stream and acks the original. If
// the copy fails the original stays pending.
func (c *Consumer) deadLetter(ctx context.Context, msg redis.XMessage, deliveries int64) {
	values := make(map[string]interface{}, len(msg.Values)+2)
	for k, v := range msg.Values {
		values[k] = v
	}
	values["original_id"] = msg.ID
	values["deliveries"] = deliveries

	log := c.logger.With("message_id", msg.ID, "deliveries", deliveries)
	if err := c.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.DeadLetterStream,
		Values: values,
	}).Err(); err != nil {
		log.Error("failed to dead-letter message", "error", err)
		return
	}

	log.Warn("moved message to dead-letter stream", "dead_letter_stream", c.cfg.DeadLetterStream)
	metrics.Emails.WithLabelValues("dead_lettered").Inc()
	c.ack(ctx, msg.ID)
}

func (c *Consumer) process(ctx context.Context, msg redis.XMessage, handle Handler) {
	log := c.logger.With("message_id", msg.ID)

	req, err := decodeMessage(msg)
	if err != nil {
		log.Warn("dropping malformed message", "error", err)
		c.ack(ctx, msg.ID)
		return
	}

	if err := handle(ctx, req); err != nil {
		log.Error("failed to process message", "error", err)
		return
	}

	c.ack(ctx, msg.ID)
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.redis.XAck(ctx, c.cfg.Stream, c.cfg.Group, id).Err(); err != nil {
		c.logger.Error("failed to acknowledge message", "message_id", id, "error", err)
	}
}
