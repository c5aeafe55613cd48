package ceneo

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/price-notifier/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productURL = "https://www.ceneo.pl/123456"

func offerHTML(value string, penny *string) string {
	var b strings.Builder
	b.WriteString(`<div class="product-offer__container"><span class="price">`)
	fmt.Fprintf(&b, `<span class="value">%s</span>`, value)
	if penny != nil {
		fmt.Fprintf(&b, `<span class="penny">%s</span>`, *penny)
	}
	b.WriteString(`</span></div>`)
	return b.String()
}

func productPage(title string, offers ...string) string {
	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, `<h1 class="product-top__product-info__name">%s</h1>`, title)
	}
	b.WriteString(`<div class="product-offers__list">`)
	for _, o := range offers {
		b.WriteString(o)
	}
	b.WriteString(`</div>`)
	return b.String()
}

func extract(t *testing.T, page string) ProductResult {
	t.Helper()
	e := NewExtractor(newFakeFetcher(map[string]string{productURL: page}), logging.Discard())
	return e.ExtractCheapest(context.Background(), productURL)
}

func TestExtractCheapestFixture(t *testing.T) {
	got := extract(t, readTestdata(t, "product.html"))

	assert.True(t, got.Fetched)
	assert.Equal(t, "Konsola Testowa", got.Title)
	assert.Equal(t, 2499.99, got.Price)
	assert.True(t, got.Found)
}

func TestExtractCheapest(t *testing.T) {
	tests := []struct {
		name      string
		page      string
		wantTitle string
		wantPrice float64
		wantFound bool
	}{
		{
			name:      "value only price",
			page:      productPage("Konsola", offerHTML("3000", nil)),
			wantTitle: "Konsola",
			wantPrice: 3000.00,
			wantFound: true,
		},
		{
			name:      "split value and penny",
			page:      productPage("Konsola", offerHTML("2 499", strPtr(",99"))),
			wantTitle: "Konsola",
			wantPrice: 2499.99,
			wantFound: true,
		},
		{
			name:      "comma decimal in value",
			page:      productPage("Kabel", offerHTML("12,50", nil)),
			wantTitle: "Kabel",
			wantPrice: 12.50,
			wantFound: true,
		},
		{
			name: "minimum regardless of document order",
			page: productPage("Konsola",
				offerHTML("2 999", strPtr(",00")),
				offerHTML("2 199", strPtr(",49")),
				offerHTML("2 500", nil),
			),
			wantTitle: "Konsola",
			wantPrice: 2199.49,
			wantFound: true,
		},
		{
			name: "malformed offer does not change the minimum",
			page: productPage("Konsola",
				offerHTML("2 999", strPtr(",00")),
				offerHTML("n/a", nil),
				offerHTML("2 500", strPtr(",10")),
			),
			wantTitle: "Konsola",
			wantPrice: 2500.10,
			wantFound: true,
		},
		{
			name: "offers without price or value element are skipped",
			page: productPage("Konsola",
				`<div class="product-offer__container"><span class="shop">Sklep</span></div>`,
				`<div class="product-offer__container"><span class="price">zł</span></div>`,
				offerHTML("150", nil),
			),
			wantTitle: "Konsola",
			wantPrice: 150,
			wantFound: true,
		},
		{
			name:      "no offers yields the sentinel",
			page:      productPage("Konsola"),
			wantTitle: "Konsola",
			wantPrice: NoPrice,
		},
		{
			name:      "only malformed offers yields the sentinel",
			page:      productPage("Konsola", offerHTML("brak", nil), offerHTML("brak", strPtr(",99"))),
			wantTitle: "Konsola",
			wantPrice: NoPrice,
		},
		{
			name: "free offer is a real price",
			page: productPage("Ulotka",
				offerHTML("0", strPtr(",00")),
				offerHTML("5", nil),
			),
			wantTitle: "Ulotka",
			wantPrice: 0,
			wantFound: true,
		},
		{
			name:      "missing title uses placeholder",
			page:      productPage("", offerHTML("10", nil)),
			wantTitle: UnknownProduct,
			wantPrice: 10,
			wantFound: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extract(t, tt.page)

			assert.True(t, got.Fetched)
			assert.Equal(t, tt.wantTitle, got.Title)
			assert.InDelta(t, tt.wantPrice, got.Price, 1e-9)
			assert.Equal(t, tt.wantFound, got.Found)
		})
	}
}

func TestExtractCheapestFetchFailure(t *testing.T) {
	e := NewExtractor(newFakeFetcher(nil), logging.Discard())

	got := e.ExtractCheapest(context.Background(), productURL)

	assert.False(t, got.Fetched)
	assert.False(t, got.Found)
	assert.Empty(t, got.Title)
	assert.Equal(t, NoPrice, got.Price)
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		penny   *string
		want    float64
		wantErr bool
	}{
		{"whole number", "3000", nil, 3000, false},
		{"thousands space", "2 499", nil, 2499, false},
		{"no-break space", "2\u00a0499", strPtr(",99"), 2499.99, false},
		{"narrow no-break space", "1\u202f250", nil, 1250, false},
		{"penny with comma", "2 499", strPtr(",99"), 2499.99, false},
		{"penny with dot", "19", strPtr(".90"), 19.90, false},
		{"penny without separator", "19", strPtr("90"), 19.90, false},
		{"penny with whitespace", " 49 ", strPtr(" ,01 "), 49.01, false},
		{"empty penny", "49", strPtr(""), 49, false},
		{"comma decimal without penny", "12,50", nil, 12.50, false},
		{"zero", "0", nil, 0, false},
		{"text", "brak", nil, 0, true},
		{"empty", "", nil, 0, true},
		{"negative", "-5", nil, 0, true},
		{"infinity", "inf", nil, 0, true},
		{"nan", "NaN", nil, 0, true},
		{"hex float", "0x1p4", nil, 0, true},
		{"hex float in penny", "0x1", strPtr("p4"), 0, true},
		{"exponent", "1e3", nil, 0, true},
		{"explicit sign", "+5", nil, 0, true},
		{"underscore digits", "1_000", nil, 0, true},
		{"dangling decimal point", "5,", nil, 0, true},
		{"too large", strings.Repeat("9", 400), nil, 0, true},
		{"comma decimal with penny", "12,50", strPtr(",00"), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePrice(tt.value, tt.penny)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidPrice)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestParseOfferErrors(t *testing.T) {
	offer := func(html string) *goquery.Selection {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		require.NoError(t, err)
		return doc.Find(offerSelector).First()
	}

	_, err := parseOffer(offer(`<div class="product-offer__container"><span class="shop">x</span></div>`))
	assert.ErrorIs(t, err, ErrNoPriceElement)

	_, err = parseOffer(offer(`<div class="product-offer__container"><span class="price">zł</span></div>`))
	assert.ErrorIs(t, err, ErrNoValueElement)

	got, err := parseOffer(offer(offerHTML("2 499", strPtr(",99"))))
	require.NoError(t, err)
	assert.Equal(t, 2499.99, got)
}
