package mail

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/maltedev/price-notifier/internal/config"
	"github.com/maltedev/price-notifier/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxPushBytes = 1 << 20

// PushEnvelope is the body a push subscription POSTs for each message.
type PushEnvelope struct {
	Message struct {
		Data        string            `json:"data"`
		MessageID   string            `json:"messageId"`
		PublishTime string            `json:"publishTime,omitempty"`
		Attributes  map[string]string `json:"attributes,omitempty"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type EventDispatcher interface {
	DispatchEvent(ctx context.Context, ev Event) error
}

// PushHandler acknowledges a delivery with 204 and asks for a retry with 500.
type PushHandler struct {
	dispatcher EventDispatcher
	logger     *slog.Logger
}

func NewPushHandler(dispatcher EventDispatcher, logger *slog.Logger) *PushHandler {
	return &PushHandler{
		dispatcher: dispatcher,
		logger:     logger.With("component", "push"),
	}
}

func (h *PushHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var env PushEnvelope
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPushBytes)).Decode(&env); err != nil {
		h.logger.Warn("malformed push envelope", "error", err)
		http.Error(w, "malformed push envelope", http.StatusBadRequest)
		return
	}

	log := h.logger.With("message_id", env.Message.MessageID, "subscription", env.Subscription)
	if err := h.dispatcher.DispatchEvent(r.Context(), Event{Data: env.Message.Data}); err != nil {
		log.Error("failed to dispatch pushed message", "error", err)
		http.Error(w, "dispatch failed", http.StatusInternalServerError)
		return
	}

	log.Debug("pushed message handled")
	w.WriteHeader(http.StatusNoContent)
}

// NewRouter serves the push endpoint with health and metrics.
func NewRouter(push http.Handler, cfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if cfg.WriteTimeout > 0 {
		r.Use(middleware.Timeout(cfg.WriteTimeout))
	}
	r.Use(metrics.HTTPMiddleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Method(http.MethodPost, "/pubsub/push", push)

	return r
}
