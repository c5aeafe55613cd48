package ceneo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/price-notifier/internal/metrics"
)

const (
	UnknownProduct = "Unknown product"

	// NoPrice is returned when no offer on the page had a usable price.
	NoPrice = 0.0

	titleSelector = "h1.product-top__product-info__name"
	offerSelector = "div.product-offer__container"
	priceSelector = "span.price"
	valueSelector = "span.value"
	pennySelector = "span.penny"
)

var (
	ErrNoPriceElement = errors.New("offer has no price element")
	ErrNoValueElement = errors.New("price has no value element")
	ErrInvalidPrice   = errors.New("invalid price")

	// decimalPrice is what a price looks like once separators are normalised.
	decimalPrice = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
)

// ProductResult is the outcome of a product page scrape. Fetched is false when
// the page could not be retrieved; Title is then empty and Price is NoPrice.
// Found reports whether any offer had a usable price, so a genuine 0.00 offer
// is distinguishable from NoPrice.
type ProductResult struct {
	Title   string
	Price   float64
	Fetched bool
	Found   bool
}

type Extractor struct {
	fetcher PageFetcher
	logger  *slog.Logger
}

func NewExtractor(fetcher PageFetcher, logger *slog.Logger) *Extractor {
	return &Extractor{
		fetcher: fetcher,
		logger:  logger.With("component", "offer_extractor"),
	}
}

// ExtractCheapest scrapes productURL and returns its title with the lowest
// offer price found on the page.
func (e *Extractor) ExtractCheapest(ctx context.Context, productURL string) ProductResult {
	e.logger.Info("scraping product page", "url", productURL)

	doc := e.fetcher.Fetch(ctx, productURL)
	if doc == nil {
		return ProductResult{Price: NoPrice}
	}

	title, price, found := e.cheapestIn(doc.Selection)
	return ProductResult{Title: title, Price: price, Fetched: true, Found: found}
}

func (e *Extractor) cheapestIn(doc *goquery.Selection) (string, float64, bool) {
	title := strings.TrimSpace(doc.Find(titleSelector).First().Text())
	if title == "" {
		title = UnknownProduct
	}

	var (
		best   = math.Inf(1)
		found  bool
		offers = doc.Find(offerSelector)
	)

	offers.Each(func(i int, offer *goquery.Selection) {
		price, err := parseOffer(offer)
		if err != nil {
			metrics.OfferParseFailures.Inc()
			e.logger.Debug("skipping offer", "index", i, "error", err)
			return
		}
		if price < best {
			best = price
		}
		found = true
	})

	e.logger.Info("extracted offers", "title", title, "offers", offers.Length(), "found", found)

	if !found {
		return title, NoPrice, false
	}
	return title, best, true
}

func parseOffer(offer *goquery.Selection) (float64, error) {
	priceTag := offer.Find(priceSelector).First()
	if priceTag.Length() == 0 {
		return 0, ErrNoPriceElement
	}

	value := priceTag.Find(valueSelector).First()
	if value.Length() == 0 {
		return 0, ErrNoValueElement
	}

	var penny *string
	if p := priceTag.Find(pennySelector).First(); p.Length() > 0 {
		text := p.Text()
		penny = &text
	}

	return ParsePrice(value.Text(), penny)
}

// ParsePrice turns the text of a price's whole-part span, and optionally its
// fractional span, into a number. "2 499" with ",99" gives 2499.99; a lone
// "12,50" gives 12.5.
func ParsePrice(value string, penny *string) (float64, error) {
	s := stripSpaces(strings.TrimSpace(value))

	if penny != nil {
		fraction := strings.TrimLeft(strings.TrimSpace(*penny), ",.")
		if fraction != "" {
			s += "." + fraction
		}
	} else {
		s = strings.ReplaceAll(s, ",", ".")
	}

	if !decimalPrice.MatchString(s) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}

	price, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidPrice, s, err)
	}
	return price, nil
}

// stripSpaces removes thousands separators, which show up as plain, no-break
// or thin spaces depending on the shop template.
func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\u2009':
			return -1
		}
		return r
	}, s)
}
