package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lumenmarket/api/internal/cart"
	domain "github.com/lumenmarket/api/internal/domain"
	"github.com/lumenmarket/api/internal/platform/auth"
	"github.com/lumenmarket/api/internal/platform/httpx"
	"github.com/lumenmarket/api/internal/services"
)

const maxCartBodySize = 64 * 1024

// CartHandlers exposes the cart endpoints. Authentication is optional: an
// authenticated identity owns its cart by UID, anonymous visitors by the
// opaque session token they present.
type CartHandlers struct {
	authn   *auth.Authenticator
	deps    cart.Deps
	pricing *services.PricingEngine
	coupons *services.CouponService
}

// NewCartHandlers constructs the cart endpoints.
func NewCartHandlers(authn *auth.Authenticator, deps cart.Deps, pricing *services.PricingEngine, coupons *services.CouponService) *CartHandlers {
	return &CartHandlers{
		authn:   authn,
		deps:    deps,
		pricing: pricing,
		coupons: coupons,
	}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.OptionalFirebaseAuth())
	}
	r.Get("/", h.getCart)
	r.Put("/", h.replaceCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Patch("/items/{itemKey}", h.updateItem)
	r.Delete("/items/{itemKey}", h.removeItem)
}

type cartResponse struct {
	Owner    string               `json:"owner"`
	Items    []lineItemPayload    `json:"items"`
	Count    int                  `json:"count"`
	Estimate *cartEstimatePayload `json:"estimate,omitempty"`
	Coupon   *cartCouponPayload   `json:"coupon,omitempty"`
}

type cartEstimatePayload struct {
	Subtotal int64 `json:"subtotal"`
	Discount int64 `json:"discount"`
	Shipping int64 `json:"shipping"`
	Tax      int64 `json:"tax"`
	Total    int64 `json:"total"`
}

type cartCouponPayload struct {
	Code     string `json:"code"`
	Applied  bool   `json:"applied"`
	Discount int64  `json:"discount"`
	Reason   string `json:"reason,omitempty"`
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store, ok := h.loadStore(ctx, w, r)
	if !ok {
		return
	}
	h.writeCart(ctx, w, r, store, strings.TrimSpace(r.URL.Query().Get("coupon")))
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store, ok := h.loadStore(ctx, w, r)
	if !ok {
		return
	}

	var payload lineItemPayload
	if !h.decodeBody(ctx, w, r, &payload) {
		return
	}

	if err := store.Add(ctx, payload.toDomain()); err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	h.writeCart(ctx, w, r, store, "")
}

func (h *CartHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store, ok := h.loadStore(ctx, w, r)
	if !ok {
		return
	}

	var payload struct {
		Quantity int `json:"quantity"`
	}
	if !h.decodeBody(ctx, w, r, &payload) {
		return
	}

	store.UpdateQuantity(ctx, chi.URLParam(r, "itemKey"), payload.Quantity)
	h.writeCart(ctx, w, r, store, "")
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store, ok := h.loadStore(ctx, w, r)
	if !ok {
		return
	}

	store.Remove(ctx, chi.URLParam(r, "itemKey"))
	h.writeCart(ctx, w, r, store, "")
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store, ok := h.loadStore(ctx, w, r)
	if !ok {
		return
	}

	store.Clear(ctx)
	h.writeCart(ctx, w, r, store, "")
}

func (h *CartHandlers) replaceCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store, ok := h.loadStore(ctx, w, r)
	if !ok {
		return
	}

	var payload struct {
		Items []lineItemPayload `json:"items"`
	}
	if !h.decodeBody(ctx, w, r, &payload) {
		return
	}

	converted := make([]domain.CartLineItem, 0, len(payload.Items))
	for _, item := range payload.Items {
		converted = append(converted, item.toDomain())
	}
	if err := store.Replace(ctx, converted); err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	h.writeCart(ctx, w, r, store, "")
}

func (h *CartHandlers) loadStore(ctx context.Context, w http.ResponseWriter, r *http.Request) (*cart.Store, bool) {
	owner := resolveOwner(r)
	store, err := cart.LoadStore(ctx, h.deps, owner)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return nil, false
	}
	return store, true
}

func (h *CartHandlers) decodeBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) bool {
	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if err := json.Unmarshal(body, out); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return false
	}
	return true
}

// writeCart renders the cart with a totals estimate; the estimate reuses the
// same calculator the order path uses so the preview can never diverge.
func (h *CartHandlers) writeCart(ctx context.Context, w http.ResponseWriter, r *http.Request, store *cart.Store, couponCode string) {
	items := store.Items()
	response := cartResponse{
		Owner: store.Owner(),
		Items: buildLineItemPayloads(items),
		Count: store.Count(),
	}

	if h.pricing != nil {
		var evalCoupon *domain.Coupon
		if couponCode != "" && h.coupons != nil {
			base, err := h.pricing.Calculate(items, nil)
			if err != nil {
				h.writeCartError(ctx, w, err)
				return
			}
			eval, err := h.coupons.Evaluate(ctx, couponCode, base.Subtotal)
			if err != nil {
				h.writeCartError(ctx, w, err)
				return
			}
			response.Coupon = &cartCouponPayload{
				Code:     strings.ToUpper(strings.TrimSpace(couponCode)),
				Applied:  eval.Applied,
				Discount: eval.Discount,
				Reason:   eval.Reason,
			}
			if eval.Applied {
				evalCoupon = eval.Coupon
			}
		}

		totals, err := h.pricing.Calculate(items, evalCoupon)
		if err != nil {
			h.writeCartError(ctx, w, err)
			return
		}
		response.Estimate = &cartEstimatePayload{
			Subtotal: totals.Subtotal,
			Discount: totals.Discount,
			Shipping: totals.Shipping,
			Tax:      totals.Tax,
			Total:    totals.Total,
		}
	}

	writeJSONResponse(w, http.StatusOK, response)
}

func (h *CartHandlers) writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrOwnerRequired):
		httpx.WriteError(ctx, w, httpx.NewError("session_required", "an authenticated identity or session token is required", http.StatusUnauthorized))
	case errors.Is(err, cart.ErrInvalidItem):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_item", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPricingInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_cart_state", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "cart operation failed", http.StatusInternalServerError))
	}
}
