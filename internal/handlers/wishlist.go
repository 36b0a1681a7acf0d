package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lumenmarket/api/internal/cart"
	"github.com/lumenmarket/api/internal/platform/auth"
	"github.com/lumenmarket/api/internal/platform/httpx"
)

// WishlistHandlers exposes the saved-items endpoints, keyed the same way as
// the cart.
type WishlistHandlers struct {
	authn *auth.Authenticator
	deps  cart.Deps
}

// NewWishlistHandlers constructs the wishlist endpoints.
func NewWishlistHandlers(authn *auth.Authenticator, deps cart.Deps) *WishlistHandlers {
	return &WishlistHandlers{
		authn: authn,
		deps:  deps,
	}
}

// Routes wires the /wishlist endpoints onto the provided router.
func (h *WishlistHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.OptionalFirebaseAuth())
	}
	r.Get("/", h.getWishlist)
	r.Post("/toggle", h.toggleItem)
	r.Delete("/", h.clearWishlist)
}

type wishlistResponse struct {
	Owner string            `json:"owner"`
	Items []lineItemPayload `json:"items"`
}

type wishlistToggleResponse struct {
	Saved bool              `json:"saved"`
	Items []lineItemPayload `json:"items"`
}

func (h *WishlistHandlers) getWishlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, ok := h.loadWishlist(ctx, w, r)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, wishlistResponse{
		Owner: resolveOwner(r),
		Items: buildLineItemPayloads(list.Items()),
	})
}

func (h *WishlistHandlers) toggleItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, ok := h.loadWishlist(ctx, w, r)
	if !ok {
		return
	}

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

	var payload lineItemPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	saved, err := list.Toggle(ctx, payload.toDomain())
	if err != nil {
		h.writeWishlistError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, wishlistToggleResponse{
		Saved: saved,
		Items: buildLineItemPayloads(list.Items()),
	})
}

func (h *WishlistHandlers) clearWishlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, ok := h.loadWishlist(ctx, w, r)
	if !ok {
		return
	}

	list.Clear(ctx)
	writeJSONResponse(w, http.StatusOK, wishlistResponse{
		Owner: resolveOwner(r),
		Items: buildLineItemPayloads(list.Items()),
	})
}

func (h *WishlistHandlers) loadWishlist(ctx context.Context, w http.ResponseWriter, r *http.Request) (*cart.Wishlist, bool) {
	list, err := cart.LoadWishlist(ctx, h.deps, resolveOwner(r))
	if err != nil {
		h.writeWishlistError(ctx, w, err)
		return nil, false
	}
	return list, true
}

func (h *WishlistHandlers) writeWishlistError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrOwnerRequired):
		httpx.WriteError(ctx, w, httpx.NewError("session_required", "an authenticated identity or session token is required", http.StatusUnauthorized))
	case errors.Is(err, cart.ErrInvalidItem):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_item", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("wishlist_error", "wishlist operation failed", http.StatusInternalServerError))
	}
}
