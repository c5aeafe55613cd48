package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/maltedev/price-notifier/internal/mail"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultStream = "stream:email_requests"
	DefaultGroup  = "email-sender-group"

	EventSendEmailRequested = "SEND_EMAIL_REQUESTED"
)

var ErrMalformedMessage = errors.New("malformed stream message")

// RedisClient interface for Redis operations (for testing)
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, args *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
	XAutoClaim(ctx context.Context, args *redis.XAutoClaimArgs) *redis.XAutoClaimCmd
	XPendingExt(ctx context.Context, args *redis.XPendingExtArgs) *redis.XPendingExtCmd
}

// Handler processes one decoded send-request. A non-nil error leaves the
// message pending until it is reclaimed.
type Handler func(ctx context.Context, req mail.SendRequest) error

func decodeMessage(msg redis.XMessage) (mail.SendRequest, error) {
	if t, ok := msg.Values["event_type"].(string); ok && t != EventSendEmailRequested {
		return mail.SendRequest{}, fmt.Errorf("%w: unexpected event type %q", ErrMalformedMessage, t)
	}
	data, ok := msg.Values["data"].(string)
	if !ok || data == "" {
		return mail.SendRequest{}, fmt.Errorf("%w: missing data field", ErrMalformedMessage)
	}
	req, err := mail.DecodeRequest([]byte(data))
	if err != nil {
		return mail.SendRequest{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return req, nil
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
