package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/lumenmarket/api/internal/domain"
	"github.com/lumenmarket/api/internal/platform/auth"
	"github.com/lumenmarket/api/internal/platform/httpx"
	"github.com/lumenmarket/api/internal/services"
)

// AdminHandlers exposes coupon management and fulfilment status updates,
// gated on an explicit admin role claim.
type AdminHandlers struct {
	authn   *auth.Authenticator
	coupons *services.CouponService
	orders  *services.OrderService
}

// NewAdminHandlers constructs handlers requiring the admin role.
func NewAdminHandlers(authn *auth.Authenticator, coupons *services.CouponService, orders *services.OrderService) *AdminHandlers {
	return &AdminHandlers{
		authn:   authn,
		coupons: coupons,
		orders:  orders,
	}
}

// Routes wires the /admin endpoints onto the provided router.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
	}
	r.Get("/coupons", h.listCoupons)
	r.Put("/coupons/{code}", h.upsertCoupon)
	r.Patch("/orders/{orderID}/status", h.updateOrderStatus)
}

type couponPayload struct {
	Code        string `json:"code"`
	Type        string `json:"type"`
	Value       int64  `json:"value"`
	MinPurchase *int64 `json:"min_purchase,omitempty"`
	MaxDiscount *int64 `json:"max_discount,omitempty"`
	ValidFrom   string `json:"valid_from"`
	ValidUntil  string `json:"valid_until"`
	UsageLimit  *int64 `json:"usage_limit,omitempty"`
	UsedCount   int64  `json:"used_count"`
	Active      bool   `json:"active"`
}

func buildCouponPayload(coupon domain.Coupon) couponPayload {
	return couponPayload{
		Code:        coupon.Code,
		Type:        string(coupon.Type),
		Value:       coupon.Value,
		MinPurchase: coupon.MinPurchase,
		MaxDiscount: coupon.MaxDiscount,
		ValidFrom:   formatTime(coupon.ValidFrom),
		ValidUntil:  formatTime(coupon.ValidUntil),
		UsageLimit:  coupon.UsageLimit,
		UsedCount:   coupon.UsedCount,
		Active:      coupon.Active,
	}
}

func (h *AdminHandlers) listCoupons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	coupons, err := h.coupons.List(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_error", "failed to list coupons", http.StatusInternalServerError))
		return
	}

	payload := make([]couponPayload, 0, len(coupons))
	for _, coupon := range coupons {
		payload = append(payload, buildCouponPayload(coupon))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"coupons": payload})
}

func (h *AdminHandlers) upsertCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return
	}

	var payload couponPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	coupon, err := h.couponFromPayload(chi.URLParam(r, "code"), payload)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	if err := h.coupons.Upsert(ctx, coupon); err != nil {
		h.writeAdminError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"coupon": buildCouponPayload(coupon)})
}

func (h *AdminHandlers) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		return
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	status := domain.OrderStatus(strings.ToUpper(strings.TrimSpace(payload.Status)))
	order, err := h.orders.UpdateStatus(ctx, chi.URLParam(r, "orderID"), status)
	if err != nil {
		h.writeAdminError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"order": buildOrderPayload(order)})
}

func (h *AdminHandlers) couponFromPayload(code string, payload couponPayload) (domain.Coupon, error) {
	coupon := domain.Coupon{
		Code:        strings.ToUpper(strings.TrimSpace(code)),
		Type:        domain.DiscountType(strings.ToUpper(strings.TrimSpace(payload.Type))),
		Value:       payload.Value,
		MinPurchase: payload.MinPurchase,
		MaxDiscount: payload.MaxDiscount,
		UsageLimit:  payload.UsageLimit,
		UsedCount:   payload.UsedCount,
		Active:      payload.Active,
	}

	if payload.ValidFrom != "" {
		from, err := time.Parse(time.RFC3339, payload.ValidFrom)
		if err != nil {
			return domain.Coupon{}, errors.New("valid_from must be an RFC3339 timestamp")
		}
		coupon.ValidFrom = from.UTC()
	}
	if payload.ValidUntil != "" {
		until, err := time.Parse(time.RFC3339, payload.ValidUntil)
		if err != nil {
			return domain.Coupon{}, errors.New("valid_until must be an RFC3339 timestamp")
		}
		coupon.ValidUntil = until.UTC()
	}
	return coupon, nil
}

func (h *AdminHandlers) writeAdminError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCouponInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_coupon", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("admin_error", "admin operation failed", http.StatusInternalServerError))
	}
}
