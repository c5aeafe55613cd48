package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/maltedev/price-notifier/internal/metrics"
)

type Sender interface {
	Send(ctx context.Context, req SendRequest) error
}

// Event is an invocation event carrying a base64-encoded JSON SendRequest.
type Event struct {
	Data string `json:"data"`
}

type Dispatcher struct {
	sender Sender
	logger *slog.Logger
}

func NewDispatcher(sender Sender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sender: sender,
		logger: logger.With("component", "dispatcher"),
	}
}

// Dispatch sends req. Invalid requests are logged and dropped without error
// so that queue transports do not redeliver them.
func (d *Dispatcher) Dispatch(ctx context.Context, req SendRequest) error {
	if err := req.Validate(); err != nil {
		d.logger.Warn("dropping send request", "error", err, "to", req.To)
		metrics.Emails.WithLabelValues("skipped").Inc()
		return nil
	}

	d.logger.Info("received send request", "to", req.To, "subject", req.Subject)

	if err := d.sender.Send(ctx, req); err != nil {
		metrics.Emails.WithLabelValues("failed").Inc()
		return fmt.Errorf("send mail to %s: %w", req.To, err)
	}

	metrics.Emails.WithLabelValues("sent").Inc()
	d.logger.Info("email sent", "to", req.To)
	return nil
}

// DispatchEvent decodes the event payload and dispatches it. An event without
// data is a no-op; undecodable data is an error.
func (d *Dispatcher) DispatchEvent(ctx context.Context, ev Event) error {
	if ev.Data == "" {
		d.logger.Warn("event has no data")
		metrics.Emails.WithLabelValues("skipped").Inc()
		return nil
	}

	raw, err := base64.StdEncoding.DecodeString(ev.Data)
	if err != nil {
		return fmt.Errorf("decode event data: %w", err)
	}
	req, err := DecodeRequest(raw)
	if err != nil {
		return err
	}

	return d.Dispatch(ctx, req)
}
