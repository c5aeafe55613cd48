package mail

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/price-notifier/internal/config"
	gomail "github.com/wneessen/go-mail"
)

const (
	DefaultHost = "smtp-relay.brevo.com"
	DefaultPort = 587
)

// deliverer is the subset of *gomail.Client used by SMTPSender.
type deliverer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
}

// SMTPSender delivers one message per connection through a STARTTLS relay.
type SMTPSender struct {
	cfg       config.SMTPConfig
	newClient func(cfg config.SMTPConfig) (deliverer, error)
	now       func() time.Time
	logger    *slog.Logger
}

func NewSMTPSender(cfg config.SMTPConfig, logger *slog.Logger) *SMTPSender {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	return &SMTPSender{
		cfg:       cfg,
		newClient: newRelayClient,
		now:       time.Now,
		logger:    logger.With("component", "smtp"),
	}
}

func newRelayClient(cfg config.SMTPConfig) (deliverer, error) {
	return gomail.NewClient(cfg.Host,
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSMandatory),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.User),
		gomail.WithPassword(cfg.Pass),
	)
}

// Send requires credentials before it dials anything.
func (s *SMTPSender) Send(ctx context.Context, req SendRequest) error {
	if s.cfg.User == "" || s.cfg.Pass == "" {
		return ErrMissingCredentials
	}

	from := s.cfg.Sender
	if from == "" {
		from = s.cfg.User
	}

	msg, err := buildMessage(from, req, s.now())
	if err != nil {
		return err
	}

	client, err := s.newClient(s.cfg)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send via %s:%d: %w", s.cfg.Host, s.cfg.Port, err)
	}

	s.logger.Debug("message accepted by relay", "to", req.To, "host", s.cfg.Host)
	return nil
}

func buildMessage(from string, req SendRequest, date time.Time) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := msg.To(req.To); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
	}
	msg.Subject(req.Subject)
	msg.SetDateWithValue(date)
	msg.SetMessageID()
	msg.SetBodyString(gomail.TypeTextPlain, req.Body)
	return msg, nil
}
