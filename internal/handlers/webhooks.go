package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lumenmarket/api/internal/payments"
	"github.com/lumenmarket/api/internal/platform/httpx"
	"github.com/lumenmarket/api/internal/platform/requestctx"
	"github.com/lumenmarket/api/internal/services"
)

const maxWebhookBodySize = 1 << 20

// WebhookHandlers receives signed payment processor notifications. Every
// payload is authenticated before any field is trusted; verified events that
// the reconciliation path does not act on are acknowledged and ignored.
type WebhookHandlers struct {
	verifier  *payments.WebhookVerifier
	reconcile *services.ReconcileService
}

// NewWebhookHandlers constructs the webhook endpoints.
func NewWebhookHandlers(verifier *payments.WebhookVerifier, reconcile *services.ReconcileService) *WebhookHandlers {
	return &WebhookHandlers{
		verifier:  verifier,
		reconcile: reconcile,
	}
}

// Routes wires the /webhooks endpoints onto the provided router.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe", h.handleStripe)
}

func (h *WebhookHandlers) handleStripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := requestctx.Logger(ctx)

	if h.verifier == nil || h.reconcile == nil {
		httpx.WriteError(ctx, w, httpx.NewError("webhook_unavailable", "webhook processing is unavailable", http.StatusServiceUnavailable))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unable to read webhook payload", http.StatusBadRequest))
		return
	}

	event, err := h.verifier.Verify(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		logger.Warn("webhook signature verification failed")
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusBadRequest))
		return
	}

	if string(event.Type) != payments.EventCheckoutCompleted {
		writeJSONResponse(w, http.StatusOK, map[string]any{"received": true, "ignored": true})
		return
	}

	sessionID, err := payments.SessionIDFromEvent(event)
	if err != nil {
		if errors.Is(err, payments.ErrWebhookPayload) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_payload", "webhook payload is malformed", http.StatusBadRequest))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("webhook_error", "failed to process webhook", http.StatusInternalServerError))
		return
	}

	if err := h.reconcile.HandleCheckoutCompleted(ctx, sessionID); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("webhook_error", "failed to process webhook", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"received": true})
}
