package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lumenmarket/api/internal/platform/auth"
	"github.com/lumenmarket/api/internal/platform/httpx"
	"github.com/lumenmarket/api/internal/services"
)

const maxCheckoutBodySize = 256 * 1024

// CheckoutHandlers materialises carts into orders and hands the caller the
// payment redirect.
type CheckoutHandlers struct {
	authn  *auth.Authenticator
	orders *services.OrderService
}

// NewCheckoutHandlers constructs handlers enforcing authentication before
// invoking the order service.
func NewCheckoutHandlers(authn *auth.Authenticator, orders *services.OrderService) *CheckoutHandlers {
	return &CheckoutHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes wires the /checkout endpoints onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/", h.createOrder)
	r.Post("/{orderID}/retry", h.retryCheckout)
}

type checkoutRequest struct {
	Lines           []checkoutLinePayload `json:"lines"`
	ShippingAddress addressPayload        `json:"shipping_address"`
	BillingAddress  addressPayload        `json:"billing_address"`
	CouponCode      string                `json:"coupon_code"`
	Email           string                `json:"email"`
}

type checkoutLinePayload struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

type checkoutResponse struct {
	Order       orderPayload `json:"order"`
	RedirectURL string       `json:"redirect_url,omitempty"`
}

func (h *CheckoutHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	body, err := readLimitedBody(r, maxCheckoutBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return
	}

	var req checkoutRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = identity.Email
	}

	cmd := services.CreateOrderCommand{
		UserID:          identity.UID,
		CustomerEmail:   email,
		ShippingAddress: req.ShippingAddress.toDomain(),
		BillingAddress:  req.BillingAddress.toDomain(),
		CouponCode:      req.CouponCode,
	}
	for _, line := range req.Lines {
		cmd.Lines = append(cmd.Lines, services.OrderLineRequest{
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
		})
	}

	result, err := h.orders.CreateOrder(ctx, cmd)
	if err != nil {
		h.writeCheckoutError(ctx, w, err, result)
		return
	}

	writeJSONResponse(w, http.StatusCreated, checkoutResponse{
		Order:       buildOrderPayload(result.Order),
		RedirectURL: result.RedirectURL,
	})
}

func (h *CheckoutHandlers) retryCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	result, err := h.orders.RetryCheckout(ctx, chi.URLParam(r, "orderID"), identity.UID, identity.Email)
	if err != nil {
		h.writeCheckoutError(ctx, w, err, result)
		return
	}

	writeJSONResponse(w, http.StatusOK, checkoutResponse{
		Order:       buildOrderPayload(result.Order),
		RedirectURL: result.RedirectURL,
	})
}

// writeCheckoutError distinguishes "fix your input" from "try again shortly":
// a payment provider failure reports the persisted order so the client can
// retry against it instead of resubmitting the cart.
func (h *CheckoutHandlers) writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error, result services.CreateOrderResult) {
	var fieldErr *services.FieldValidationError
	switch {
	case errors.As(err, &fieldErr):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "checkout request failed validation", http.StatusBadRequest).
			WithDetails(map[string]any{"fields": fieldErr.Fields}))
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderIdentityRequired):
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
	case errors.Is(err, services.ErrVariantNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("variant_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderNotPayable):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_payable", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrPaymentUnavailable):
		details := map[string]any{"retryable": true}
		if result.Order.ID != "" {
			details["order_id"] = result.Order.ID
		}
		httpx.WriteError(ctx, w, httpx.NewError("payment_unavailable", "payment provider is unavailable; retry checkout for this order", http.StatusServiceUnavailable).
			WithDetails(details))
	case errors.Is(err, services.ErrPricingInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "failed to create order", http.StatusInternalServerError))
	}
}
