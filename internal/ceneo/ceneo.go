// Package ceneo finds products on ceneo.pl and extracts the cheapest offer
// from a product page.
package ceneo

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultBaseURL = "https://www.ceneo.pl"
	Domain         = "ceneo.pl"
	Currency       = "PLN"

	searchPathPrefix = "/;szukaj-"
)

// PageFetcher is satisfied by *fetch.Fetcher. A nil document means the page
// could not be retrieved.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) *goquery.Document
}

// SearchURL builds the search page address for a free-text product name.
func SearchURL(baseURL, productName string) string {
	return strings.TrimRight(baseURL, "/") + searchPathPrefix + quote(productName)
}

// quote percent-encodes s leaving only unreserved characters and '/' as-is,
// so spaces become %20 rather than '+'.
func quote(s string) string {
	q := url.QueryEscape(s)
	q = strings.ReplaceAll(q, "+", "%20")
	return strings.ReplaceAll(q, "%2F", "/")
}

// absolute prefixes a site-relative href with the base URL.
func absolute(baseURL, href string) string {
	if u, err := url.Parse(href); err == nil && u.IsAbs() {
		return href
	}
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return base + href
}

// IsMarketplaceHost reports whether host is domain or one of its subdomains.
func IsMarketplaceHost(host, domain string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	domain = strings.ToLower(domain)
	return host == domain || strings.HasSuffix(host, "."+domain)
}
