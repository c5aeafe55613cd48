package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/maltedev/price-notifier/internal/ceneo"
	"github.com/maltedev/price-notifier/internal/metrics"
)

const maxBodyBytes = 1 << 20

type ProductLocator interface {
	Locate(ctx context.Context, productName string) (string, bool)
}

type OfferExtractor interface {
	ExtractCheapest(ctx context.Context, productURL string) ceneo.ProductResult
}

type Handlers struct {
	locator   ProductLocator
	extractor OfferExtractor
	domain    string
	currency  string
	logger    *slog.Logger
}

func NewHandlers(locator ProductLocator, extractor OfferExtractor, domain, currency string, logger *slog.Logger) *Handlers {
	if domain == "" {
		domain = ceneo.Domain
	}
	if currency == "" {
		currency = ceneo.Currency
	}
	return &Handlers{
		locator:   locator,
		extractor: extractor,
		domain:    strings.ToLower(domain),
		currency:  currency,
		logger:    logger.With("component", "api"),
	}
}

// FindPriceRequest is the body of POST /find_price.
type FindPriceRequest struct {
	ProductName string `json:"productName"`
}

// DirectURLRequest is the body of POST /scrape_direct_url.
type DirectURLRequest struct {
	URL string `json:"url"`
}

// PriceResponse is returned by both lookup endpoints. FoundProductName is
// null when the product page could not be fetched.
type PriceResponse struct {
	FoundProductName *string `json:"found_product_name"`
	Price            float64 `json:"price"`
	Currency         string  `json:"currency"`
	CeneoURL         string  `json:"ceneo_url"`
}

// FindPrice searches the marketplace by product name and reports the
// cheapest offer of the best match. A zero price is still a 200 here.
func (h *Handlers) FindPrice(w http.ResponseWriter, r *http.Request) {
	var req FindPriceRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.ProductName) == "" {
		h.lookupOutcome("find_price", MissingParam)
		h.respondError(w, http.StatusBadRequest, MissingParam, "Missing parameter 'productName'")
		return
	}
	name := strings.TrimSpace(req.ProductName)

	productURL, ok := h.locator.Locate(r.Context(), name)
	if !ok {
		h.logger.Info("product not found", "product_name", name)
		h.lookupOutcome("find_price", ProductNotFound)
		h.respondError(w, http.StatusNotFound, ProductNotFound, "Could not find item")
		return
	}

	res := h.extractor.ExtractCheapest(r.Context(), productURL)

	metrics.PriceLookups.WithLabelValues("find_price", "found").Inc()
	h.respondJSON(w, http.StatusOK, h.priceResponse(res, productURL))
}

// ScrapeDirectURL reports the cheapest offer for a product page URL. The URL
// must point at the marketplace domain and the page must yield a price.
func (h *Handlers) ScrapeDirectURL(w http.ResponseWriter, r *http.Request) {
	var req DirectURLRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.URL) == "" {
		h.lookupOutcome("scrape_direct_url", MissingParam)
		h.respondError(w, http.StatusBadRequest, MissingParam, "Missing parameter 'url'")
		return
	}

	productURL, ok := normalizeProductURL(req.URL, h.domain)
	if !ok {
		h.logger.Info("rejected url outside marketplace", "url", req.URL)
		h.lookupOutcome("scrape_direct_url", InvalidDomain)
		h.respondError(w, http.StatusBadRequest, InvalidDomain, "Invalid link not from ceneo")
		return
	}

	res := h.extractor.ExtractCheapest(r.Context(), productURL)
	if !res.Found {
		h.logger.Warn("no valid price on page", "url", productURL, "fetched", res.Fetched)
		h.lookupOutcome("scrape_direct_url", PriceParsingError)
		h.respondError(w, http.StatusUnprocessableEntity, PriceParsingError, "Invalid price")
		return
	}

	metrics.PriceLookups.WithLabelValues("scrape_direct_url", "found").Inc()
	h.respondJSON(w, http.StatusOK, h.priceResponse(res, productURL))
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) priceResponse(res ceneo.ProductResult, productURL string) PriceResponse {
	resp := PriceResponse{
		Price:    res.Price,
		Currency: h.currency,
		CeneoURL: productURL,
	}
	if res.Fetched {
		title := res.Title
		resp.FoundProductName = &title
	}
	return resp
}

// normalizeProductURL prefixes schemeless input with https:// and accepts
// only http(s) URLs on domain or its subdomains.
func normalizeProductURL(raw, domain string) (string, bool) {
	raw = strings.TrimSpace(raw)

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		raw = "https://" + raw
		if u, err = url.Parse(raw); err != nil {
			return "", false
		}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if !ceneo.IsMarketplaceHost(u.Hostname(), domain) {
		return "", false
	}

	return raw, true
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(v)
}

func (h *Handlers) lookupOutcome(endpoint string, code ErrorCode) {
	metrics.PriceLookups.WithLabelValues(endpoint, strings.ToLower(code.String())).Inc()
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	h.respondJSON(w, status, ErrorResponse{ErrorCode: code, Message: message})
}
