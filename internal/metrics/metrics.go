package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequests = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_requests_seconds",
			Help:    "Duration, method, path, code.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "code"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests.",
		},
		[]string{"method", "path", "code"},
	)

	httpRequestsInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "In-flight HTTP requests.",
		},
		[]string{"method"},
	)

	// Labels: "endpoint", "outcome"
	PriceLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_lookups_total",
			Help: "Price lookups by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	OfferParseFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "offer_parse_failures_total",
			Help: "Offer blocks skipped because no price could be parsed.",
		},
	)

	// Labels: "result" (sent, skipped, failed, dead_lettered)
	Emails = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_total",
			Help: "Send requests by result.",
		},
		[]string{"result"},
	)
)

// Init registers the collectors on the default registry. Call once per process.
func Init() {
	prometheus.MustRegister(
		httpRequests,
		httpRequestsTotal,
		httpRequestsInFlight,
		PriceLookups,
		OfferParseFailures,
		Emails,
	)
}

func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" { // skip telemetry for the telemetry endpoint
			next.ServeHTTP(w, r)
			return
		}
		method := methodLabel(r.Method)
		inFlight := httpRequestsInFlight.WithLabelValues(method)
		inFlight.Inc()
		defer inFlight.Dec()
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		path := routePattern(r)
		d := time.Since(start).Seconds()
		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.code)).Observe(d)
		httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(rec.code)).Inc()
	})
}

const unmatchedRoute = "unmatched"

// routePattern returns the chi route that served r, or unmatchedRoute so
// arbitrary request paths never become label values.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return unmatchedRoute
}

func methodLabel(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return method
	}
	return "OTHER"
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}
