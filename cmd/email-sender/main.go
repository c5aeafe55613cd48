package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maltedev/price-notifier/internal/config"
	"github.com/maltedev/price-notifier/internal/logging"
	"github.com/maltedev/price-notifier/internal/mail"
	"github.com/maltedev/price-notifier/internal/metrics"
	"github.com/maltedev/price-notifier/internal/queue"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	_ "golang.org/x/crypto/x509roots/fallback"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "email-sender: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logging
	logger, closeLog, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closeLog()
	slog.SetDefault(logger)

	if cfg.SMTP.User == "" || cfg.SMTP.Pass == "" {
		logger.Warn("SMTP_USER or SMTP_PASS not set, every send will fail until they are")
	}

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sender := mail.NewSMTPSender(cfg.SMTP, logger)
	dispatcher := mail.NewDispatcher(sender, logger)

	// Stream consumer
	var consume func(context.Context) error
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Redis.Addr, err)
		}
		logger.Info("connected to Redis", "addr", cfg.Redis.Addr)

		consumer := queue.NewConsumer(redisClient, queue.ConsumerConfig{
			Stream:   cfg.Redis.Stream,
			Group:    cfg.Redis.Group,
			Consumer: cfg.Redis.Consumer,
			Block:    cfg.Redis.Block,

			ClaimInterval:    cfg.Redis.ClaimInterval,
			MinIdle:          cfg.Redis.ClaimMinIdle,
			MaxDeliveries:    int64(cfg.Redis.MaxDeliveries),
			DeadLetterStream: cfg.Redis.DeadLetterStream,
		}, logger)
		consume = func(ctx context.Context) error {
			return consumer.Run(ctx, dispatcher.Dispatch)
		}
	}

	// Push endpoint
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.EmailServer.Port),
		Handler:      mail.NewRouter(mail.NewPushHandler(dispatcher, logger), cfg.EmailServer),
		ReadTimeout:  cfg.EmailServer.ReadTimeout,
		WriteTimeout: cfg.EmailServer.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("server starting", "port", cfg.EmailServer.Port, "queue_enabled", cfg.Redis.Enabled)
	if err := serve(ctx, server, cfg.EmailServer.ShutdownTimeout, consume, logger); err != nil {
		return err
	}

	logger.Info("email sender stopped")
	return nil
}

// serve runs the push server and, when consume is set, the stream consumer
// until ctx is cancelled or either of them fails. The first failure stops the
// other one and is returned.
func serve(ctx context.Context, server *http.Server, shutdownTimeout time.Duration, consume func(context.Context) error, logger *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	if consume != nil {
		g.Go(func() error {
			if err := consume(gctx); err != nil {
				logger.Error("consumer stopped with error", "error", err)
				return fmt.Errorf("consumer failed: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}
