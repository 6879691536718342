package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// maxBodyBytes bounds a single delivery.
const maxBodyBytes = 1 << 20

var eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "alchemy_webhook_events_total",
	Help: "Webhook deliveries by event type and outcome",
}, []string{"type", "outcome"})

// EventHandler processes one verified event. A returned error yields HTTP 500
// so that the sender redelivers.
type EventHandler func(ctx context.Context, event Event) error

// Handler is an http.Handler that verifies the signature of each delivery and
// dispatches it by event type.
type Handler struct {
	secret   []byte
	handlers map[string]EventHandler
	fallback EventHandler
	logger   zerolog.Logger
}

// NewHandler creates a Handler for the given signing secret.
func NewHandler(secret string) *Handler {
	return &Handler{
		secret:   []byte(secret),
		handlers: make(map[string]EventHandler),
		logger:   log.With().Str("component", "webhook").Logger(),
	}
}

// On registers fn for events of the given type.
func (h *Handler) On(eventType string, fn EventHandler) *Handler {
	h.handlers[eventType] = fn
	return h
}

// OnOther registers fn for event types without a dedicated handler.
func (h *Handler) OnOther(fn EventHandler) *Handler {
	h.fallback = fn
	return h
}

// WithLogger replaces the handler logger.
func (h *Handler) WithLogger(logger zerolog.Logger) *Handler {
	h.logger = logger
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}
	if len(body) > maxBodyBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "body too large"})
		return
	}

	if !Verify(h.secret, body, r.Header.Get(SignatureHeader)) {
		eventsTotal.WithLabelValues("unknown", "invalid_signature").Inc()
		h.logger.Warn().
			Str("remote_addr", r.RemoteAddr).
			Msg("Invalid webhook signature")
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Invalid signature"})
		return
	}

	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		eventsTotal.WithLabelValues("unknown", "bad_json").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	fn, ok := h.handlers[event.Type]
	if !ok {
		fn = h.fallback
	}
	label := typeLabel(event.Type)

	h.logger.Info().
		Str("type", event.Type).
		Str("webhook_id", event.WebhookID).
		Str("event_id", event.ID).
		Msg("Received webhook")

	if fn != nil {
		if err := fn(r.Context(), event); err != nil {
			eventsTotal.WithLabelValues(label, "handler_error").Inc()
			h.logger.Error().Err(err).Str("type", event.Type).Msg("Webhook handler failed")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "handler failed"})
			return
		}
	}

	eventsTotal.WithLabelValues(label, "ok").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// typeLabel keeps the metric label set bounded.
func typeLabel(eventType string) string {
	switch eventType {
	case TypeMinedTransaction, TypeAddressActivity:
		return eventType
	default:
		return "other"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
