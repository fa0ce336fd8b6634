package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/fundgateapp/fundgate/internal/model"
	"github.com/fundgateapp/fundgate/internal/payments"
	"github.com/fundgateapp/fundgate/internal/store"
	"github.com/fundgateapp/fundgate/internal/websocket"
)

const maxWebhookBytes = 64 << 10

// WebhookHandler receives Stripe events on the dedicated webhook host and
// advances capital calls through their lifecycle.
type WebhookHandler struct {
	payments *payments.Client
	calls    *store.CapitalCallStore
	audit    *store.AuditStore
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewWebhookHandler(
	pay *payments.Client,
	calls *store.CapitalCallStore,
	audit *store.AuditStore,
	hub *websocket.Hub,
	logger *slog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		payments: pay,
		calls:    calls,
		audit:    audit,
		hub:      hub,
		logger:   logger.With("component", "webhooks"),
	}
}

// Stripe handles POST /webhooks/stripe. Unverifiable payloads are rejected;
// events we don't track are acknowledged and dropped.
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	event, err := h.payments.ConstructWebhookEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature rejected", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid signature")
		return
	}

	var status string
	switch event.Type {
	case "payment_intent.succeeded":
		status = model.CallStatusSettled
	case "payment_intent.payment_failed":
		status = model.CallStatusFailed
	case "payment_intent.processing":
		status = model.CallStatusProcessing
	default:
		w.WriteHeader(http.StatusOK)
		return
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		h.logger.Error("decode payment intent", "error", err, "event_type", event.Type)
		writeError(w, http.StatusBadRequest, "Invalid event data")
		return
	}

	call, err := h.calls.GetByPaymentIntent(intent.ID)
	if err != nil {
		h.logger.Error("lookup capital call", "error", err, "intent_id", intent.ID)
		writeError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	if call == nil {
		// An intent we didn't create, or one recorded before the webhook
		// raced ahead. Acknowledge so Stripe stops retrying.
		h.logger.Warn("no capital call for intent", "intent_id", intent.ID)
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.calls.UpdateStatus(call.ID, status); err != nil {
		h.logger.Error("update capital call", "error", err, "call_id", call.ID)
		writeError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}

	if err := h.audit.Insert(&model.AuditLog{
		OrgID:  &call.OrgID,
		Actor:  "stripe",
		Kind:   model.AuditPaymentEvent,
		Detail: string(event.Type) + " " + call.ID,
	}); err != nil {
		h.logger.Warn("audit write failed", "error", err)
	}

	h.hub.Broadcast(websocket.Event{
		Type:   "capital_call." + status,
		OrgID:  call.OrgID,
		Detail: map[string]any{"call_id": call.ID, "status": status},
	})
	w.WriteHeader(http.StatusOK)
}
