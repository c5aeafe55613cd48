package ceneo

import (
	"context"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	resultRowSelector  = "div.cat-prod-row"
	offerTableSelector = "table.product-offers"
)

// linkStrategy pulls a product href out of a search result row.
type linkStrategy struct {
	name    string
	extract func(row *goquery.Selection) (string, bool)
}

// anchorHref returns the href of the first element matching selector inside row.
func anchorHref(selector string) func(*goquery.Selection) (string, bool) {
	return func(row *goquery.Selection) (string, bool) {
		a := row.Find(selector).First()
		if a.Length() == 0 {
			return "", false
		}
		href, ok := a.Attr("href")
		href = strings.TrimSpace(href)
		return href, ok && href != ""
	}
}

// Result rows have used several templates over time; strategies are tried in
// this order and the first one that yields an href wins.
var linkStrategies = []linkStrategy{
	{name: "seo_url", extract: anchorHref("a.js_seoUrl, a.js_seo-url")},
	{name: "go_to_product", extract: anchorHref("a.go-to-product")},
	{name: "name_heading", extract: anchorHref("strong.cat-prod-row__name a")},
}

type Locator struct {
	fetcher PageFetcher
	baseURL string
	logger  *slog.Logger
}

func NewLocator(fetcher PageFetcher, baseURL string, logger *slog.Logger) *Locator {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Locator{
		fetcher: fetcher,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With("component", "locator"),
	}
}

// Locate searches for productName and returns the absolute URL of the best
// matching product page.
func (l *Locator) Locate(ctx context.Context, productName string) (string, bool) {
	searchURL := SearchURL(l.baseURL, productName)
	l.logger.Info("searching product", "query", productName, "url", searchURL)

	doc := l.fetcher.Fetch(ctx, searchURL)
	if doc == nil {
		return "", false
	}

	link, ok := l.locateIn(doc, searchURL)
	if !ok {
		l.logger.Info("no product found", "query", productName)
		return "", false
	}
	return link, true
}

func (l *Locator) locateIn(doc *goquery.Document, searchURL string) (string, bool) {
	row := doc.Find(resultRowSelector).First()
	if row.Length() == 0 {
		// A unique match redirects the search straight to the offer page.
		if doc.Find(offerTableSelector).Length() > 0 {
			l.logger.Debug("search landed on product page", "url", searchURL)
			return searchURL, true
		}
		return "", false
	}

	for _, s := range linkStrategies {
		if href, ok := s.extract(row); ok {
			l.logger.Debug("product link found", "strategy", s.name, "href", href)
			return absolute(l.baseURL, href), true
		}
	}

	return "", false
}
