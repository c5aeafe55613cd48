package ceneo

import (
	"context"
	"testing"

	"github.com/maltedev/price-notifier/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocate(t *testing.T) {
	searchURL := SearchURL(DefaultBaseURL, "Konsola")

	tests := []struct {
		name     string
		page     *string
		wantURL  string
		wantFind bool
	}{
		{
			name:     "seo url anchor wins over go-to-product and name heading",
			page:     strPtr(readTestdata(t, "search.html")),
			wantURL:  "https://www.ceneo.pl/123456",
			wantFind: true,
		},
		{
			name: "seo url anchor with hyphenated class",
			page: strPtr(`<div class="cat-prod-row">
				<a class="js_seo-url" href="/123456">Link do produktu</a>
			</div>`),
			wantURL:  "https://www.ceneo.pl/123456",
			wantFind: true,
		},
		{
			name: "go-to-product fallback",
			page: strPtr(`<div class="cat-prod-row">
				<strong class="cat-prod-row__name"><a href="/from-name">Name</a></strong>
				<a class="go-to-product" href="/from-button">Go</a>
			</div>`),
			wantURL:  "https://www.ceneo.pl/from-button",
			wantFind: true,
		},
		{
			name: "name heading fallback",
			page: strPtr(`<div class="cat-prod-row">
				<strong class="cat-prod-row__name"><a href="/from-name">Name</a></strong>
			</div>`),
			wantURL:  "https://www.ceneo.pl/from-name",
			wantFind: true,
		},
		{
			name: "seo anchor without href falls through to next strategy",
			page: strPtr(`<div class="cat-prod-row">
				<a class="js_seoUrl">broken</a>
				<a class="go-to-product" href="/from-button">Go</a>
			</div>`),
			wantURL:  "https://www.ceneo.pl/from-button",
			wantFind: true,
		},
		{
			name: "only the first result row is inspected",
			page: strPtr(`<div class="cat-prod-row"><span>no link here</span></div>
				<div class="cat-prod-row"><a class="js_seoUrl" href="/second">Second</a></div>`),
			wantFind: false,
		},
		{
			name: "search redirected to a single product offer table",
			page: strPtr(`<h1 class="product-top__product-info__name">Konsola</h1>
				<table class="product-offers"><tr><td>offer</td></tr></table>`),
			wantURL:  searchURL,
			wantFind: true,
		},
		{
			name:     "no results",
			page:     strPtr(`<html><body>No results</body></html>`),
			wantFind: false,
		},
		{
			name:     "fetch failure",
			page:     nil,
			wantFind: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages := map[string]string{}
			if tt.page != nil {
				pages[searchURL] = *tt.page
			}
			f := newFakeFetcher(pages)
			l := NewLocator(f, DefaultBaseURL, logging.Discard())

			got, ok := l.Locate(context.Background(), "Konsola")

			assert.Equal(t, tt.wantFind, ok)
			assert.Equal(t, tt.wantURL, got)
			require.Len(t, f.urls, 1)
			assert.Equal(t, searchURL, f.urls[0])
		})
	}
}

func TestLocateUsesConfiguredBaseURL(t *testing.T) {
	base := "http://127.0.0.1:9999"
	f := newFakeFetcher(map[string]string{
		base + "/;szukaj-Konsola%20Testowa": `<div class="cat-prod-row"><a class="js_seoUrl" href="/42">x</a></div>`,
	})
	l := NewLocator(f, base+"/", logging.Discard())

	got, ok := l.Locate(context.Background(), "Konsola Testowa")

	require.True(t, ok)
	assert.Equal(t, base+"/42", got)
}

func strPtr(s string) *string { return &s }
