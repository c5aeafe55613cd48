// Package fetch downloads HTML pages with a browser-like identity and parses
// them into goquery documents. Every failure is absorbed: callers get a nil
// document and the reason is logged.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
)

type Options struct {
	Timeout        time.Duration
	UserAgent      string
	AcceptLanguage string
	ExtraHeaders   map[string]string
	// Transport overrides the client's RoundTripper. Nil uses the default.
	Transport http.RoundTripper
}

func DefaultOptions() *Options {
	return &Options{
		Timeout:        10 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		AcceptLanguage: "pl-PL,pl;q=0.9,en-US;q=0.8,en;q=0.7",
		ExtraHeaders: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		},
	}
}

type Fetcher struct {
	client *http.Client
	opts   *Options
	logger *slog.Logger
}

func New(opts *Options, logger *slog.Logger) *Fetcher {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}

	return &Fetcher{
		client: &http.Client{Timeout: opts.Timeout, Transport: opts.Transport},
		opts:   opts,
		logger: logger.With("component", "fetcher"),
	}
}

// Fetch returns the parsed page at url, or nil when the request fails, the
// server answers with anything but 200, or the body cannot be parsed.
func (f *Fetcher) Fetch(ctx context.Context, url string) *goquery.Document {
	doc, err := f.fetch(ctx, url)
	if err != nil {
		f.logger.Warn("fetch failed", "url", url, "error", err)
		return nil
	}
	return doc
}

func (f *Fetcher) fetch(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	for k, v := range f.opts.ExtraHeaders {
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept-Language", f.opts.AcceptLanguage)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return doc, nil
}
