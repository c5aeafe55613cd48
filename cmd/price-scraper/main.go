package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maltedev/price-notifier/internal/api"
	"github.com/maltedev/price-notifier/internal/ceneo"
	"github.com/maltedev/price-notifier/internal/config"
	"github.com/maltedev/price-notifier/internal/fetch"
	"github.com/maltedev/price-notifier/internal/logging"
	"github.com/maltedev/price-notifier/internal/metrics"

	_ "golang.org/x/crypto/x509roots/fallback"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "price-scraper: %v\n", err)
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

	metrics.Init()

	// Scraper pipeline
	opts := fetch.DefaultOptions()
	opts.Timeout = cfg.Scraper.Timeout
	opts.UserAgent = cfg.Scraper.UserAgent
	opts.AcceptLanguage = cfg.Scraper.AcceptLanguage
	fetcher := fetch.New(opts, logger)

	locator := ceneo.NewLocator(fetcher, cfg.Scraper.BaseURL, logger)
	extractor := ceneo.NewExtractor(fetcher, logger)

	handlers := api.NewHandlers(locator, extractor, cfg.Scraper.Domain, cfg.Scraper.Currency, logger)

	// Start server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(handlers, cfg.Server),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting",
		"port", cfg.Server.Port,
		"base_url", cfg.Scraper.BaseURL,
		"timeout", cfg.Scraper.Timeout)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	<-done
	logger.Info("server stopped")
	return nil
}
