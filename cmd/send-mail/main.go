package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/maltedev/price-notifier/internal/config"
	"github.com/maltedev/price-notifier/internal/logging"
	"github.com/maltedev/price-notifier/internal/mail"
	"github.com/maltedev/price-notifier/internal/queue"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		to      = flag.String("to", "", "Recipient address")
		subject = flag.String("subject", "", "Message subject (optional)")
		body    = flag.String("body", "", "Message body, or - to read it from stdin")
		stream  = flag.String("stream", "", "Redis stream (defaults to REDIS_STREAM)")
		sendNow = flag.Bool("direct", false, "Send through SMTP directly instead of enqueueing")
	)
	flag.Parse()

	if *to == "" || *body == "" {
		fmt.Println("Please provide a recipient with -to and a body with -body")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(*to, *subject, *body, *stream, *sendNow); err != nil {
		fmt.Fprintf(os.Stderr, "send-mail: %v\n", err)
		os.Exit(1)
	}
}

func run(to, subject, body, stream string, sendNow bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, closeLog, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if body == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read body from stdin: %w", err)
		}
		body = string(data)
	}

	req := mail.SendRequest{To: to, Subject: subject, Body: body}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid send request: %w", err)
	}

	if sendNow {
		if err := mail.NewSMTPSender(cfg.SMTP, logger).Send(ctx, req); err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		fmt.Printf("Email sent to %s\n", req.To)
		return nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	target := cfg.Redis.Stream
	if stream != "" {
		target = stream
	}

	id, err := queue.NewPublisher(redisClient, target, logger).Publish(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to enqueue send request: %w", err)
	}

	fmt.Printf("Enqueued %s on %s\n", id, target)
	return nil
}
