package billing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

const webhookBodyLimit = 1 << 20 // 1 MiB

// EventSink consumes verified provider events.
type EventSink interface {
	HandleEvent(ctx context.Context, ev *Event) error
}

// Notifier is told about verified events after local state is synced, so it
// can send billing emails. Notification failures are logged, not returned:
// the provider must still get a 2xx or it will retry the whole event.
type Notifier interface {
	NotifyEvent(ctx context.Context, ev *Event)
}

// WebhookHandler receives provider webhooks. The signature is verified
// before a single byte of the payload is trusted; unverifiable requests get
// a 400 and are never processed.
type WebhookHandler struct {
	parser   WebhookParser
	sink     EventSink
	notifier Notifier
	log      *slog.Logger
}

// WebhookOption configures optional WebhookHandler behavior.
type WebhookOption func(*WebhookHandler)

// WithNotifier attaches a post-sync notifier.
func WithNotifier(n Notifier) WebhookOption {
	return func(h *WebhookHandler) { h.notifier = n }
}

// WithWebhookLogger sets the logger.
func WithWebhookLogger(log *slog.Logger) WebhookOption {
	return func(h *WebhookHandler) { h.log = log }
}

// NewWebhookHandler creates a webhook receiver. Parser and sink are
// required; panics on nil.
func NewWebhookHandler(parser WebhookParser, sink EventSink, opts ...WebhookOption) *WebhookHandler {
	if parser == nil {
		panic("billing: webhook parser is required")
	}
	if sink == nil {
		panic("billing: event sink is required")
	}
	h := &WebhookHandler{parser: parser, sink: sink, log: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the webhook endpoint on the router.
func (h *WebhookHandler) Register(r chi.Router) {
	r.Post("/webhooks/billing", h.ServeHTTP)
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, webhookBodyLimit)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read request body"})
		return
	}

	ev, err := h.parser.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if errors.Is(err, ErrInvalidSignature) {
		h.log.WarnContext(r.Context(), "webhook signature rejected", slog.Any("error", err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid signature"})
		return
	}
	if err != nil {
		h.log.ErrorContext(r.Context(), "webhook parse failed", slog.Any("error", err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed event"})
		return
	}
	if ev == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	if err := h.sink.HandleEvent(r.Context(), ev); err != nil {
		h.log.ErrorContext(r.Context(), "webhook sync failed",
			slog.String("event_id", ev.ID), slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "event processing failed"})
		return
	}

	if h.notifier != nil {
		h.notifier.NotifyEvent(r.Context(), ev)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
