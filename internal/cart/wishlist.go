package cart

import (
	"context"
	"strings"

	domain "github.com/lumenmarket/api/internal/domain"
)

const wishlistNamespace = "wishlist"

// Wishlist is an explicit saved-items container for a single owner, deduped
// by product identifier. It shares the cart's snapshot adapter under a
// separate key namespace.
type Wishlist struct {
	deps  Deps
	owner string
	items []domain.CartLineItem
}

// LoadWishlist materialises the owner's wishlist from its snapshot.
func LoadWishlist(ctx context.Context, deps Deps, owner string) (*Wishlist, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, ErrOwnerRequired
	}
	if err := deps.normalise(); err != nil {
		return nil, err
	}

	snapshot, err := deps.Adapter.Load(ctx, snapshotKey(wishlistNamespace, owner))
	if err != nil {
		deps.Logger(ctx, "wishlist.snapshot_load_failed", map[string]any{
			"owner": owner,
			"error": err.Error(),
		})
		snapshot = Snapshot{}
	}

	items := make([]domain.CartLineItem, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		item.ProductID = strings.TrimSpace(item.ProductID)
		if item.ProductID == "" {
			continue
		}
		if containsProduct(items, item.ProductID) {
			continue
		}
		item.Key = item.ProductID
		item.Quantity = 1
		items = append(items, item)
	}

	return &Wishlist{
		deps:  deps,
		owner: owner,
		items: items,
	}, nil
}

// Items returns a copy of the saved items.
func (w *Wishlist) Items() []domain.CartLineItem {
	items := make([]domain.CartLineItem, len(w.items))
	copy(items, w.items)
	return items
}

// Contains reports whether the product is currently saved.
func (w *Wishlist) Contains(productID string) bool {
	return containsProduct(w.items, strings.TrimSpace(productID))
}

// Toggle saves the product when absent and removes it when present,
// reporting whether the product is saved afterwards.
func (w *Wishlist) Toggle(ctx context.Context, item domain.CartLineItem) (bool, error) {
	item.ProductID = strings.TrimSpace(item.ProductID)
	if item.ProductID == "" || item.UnitPrice < 0 {
		return false, ErrInvalidItem
	}

	for i := range w.items {
		if w.items[i].ProductID == item.ProductID {
			w.items = append(w.items[:i], w.items[i+1:]...)
			w.persist(ctx)
			return false, nil
		}
	}

	item.Key = item.ProductID
	item.Quantity = 1
	w.items = append(w.items, item)
	w.persist(ctx)
	return true, nil
}

// Clear empties the wishlist.
func (w *Wishlist) Clear(ctx context.Context) {
	if len(w.items) == 0 {
		return
	}
	w.items = nil
	w.persist(ctx)
}

func (w *Wishlist) persist(ctx context.Context) {
	snapshot := Snapshot{
		Items:     w.Items(),
		UpdatedAt: w.deps.Clock(),
	}
	if err := w.deps.Adapter.Save(ctx, snapshotKey(wishlistNamespace, w.owner), snapshot); err != nil {
		w.deps.Logger(ctx, "wishlist.snapshot_save_failed", map[string]any{
			"owner": w.owner,
			"error": err.Error(),
		})
	}
}

func containsProduct(items []domain.CartLineItem, productID string) bool {
	for _, item := range items {
		if item.ProductID == productID {
			return true
		}
	}
	return false
}
