package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/price-notifier/internal/mail"
	"github.com/redis/go-redis/v9"
)

// Publisher appends send-requests to a Redis stream.
type Publisher struct {
	redis  RedisClient
	stream string
	now    func() time.Time
	logger *slog.Logger
}

func NewPublisher(client RedisClient, stream string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &Publisher{
		redis:  client,
		stream: stream,
		now:    time.Now,
		logger: logger.With("component", "publisher"),
	}
}

// Publish validates req and returns the stream entry ID.
func (p *Publisher) Publish(ctx context.Context, req mail.SendRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal send request: %w", err)
	}

	eventID := uuid.New().String()
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":       string(data),
			"event_id":   eventID,
			"event_type": EventSendEmailRequested,
			"timestamp":  p.now().UTC().Format(time.RFC3339),
		},
	}

	id, err := p.redis.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.logger.Info("send request published",
		"stream", p.stream,
		"stream_id", id,
		"event_id", eventID,
		"to", req.To)

	return id, nil
}
