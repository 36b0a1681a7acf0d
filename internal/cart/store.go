package cart

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/lumenmarket/api/internal/domain"
)

var (
	// ErrOwnerRequired indicates the store was requested without an owner token.
	ErrOwnerRequired = errors.New("cart: owner token is required")
	// ErrInvalidItem indicates the line item is missing its key or carries a negative price.
	ErrInvalidItem = errors.New("cart: line item is invalid")
)

const cartNamespace = "cart"

// Deps lists the collaborators a Store needs.
type Deps struct {
	Adapter Adapter
	Logger  func(ctx context.Context, event string, fields map[string]any)
	Clock   func() time.Time
}

func (d *Deps) normalise() error {
	if d.Adapter == nil {
		return errors.New("cart: adapter is required")
	}
	if d.Logger == nil {
		d.Logger = func(context.Context, string, map[string]any) {}
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	clock := d.Clock
	d.Clock = func() time.Time { return clock().UTC() }
	return nil
}

// Store is an explicit cart state container for a single owner. Mutations
// update the in-memory state first and then snapshot it through the adapter;
// snapshot failures are logged and never fail the mutation.
type Store struct {
	deps  Deps
	owner string
	items []domain.CartLineItem
}

// LoadStore materialises the owner's cart from its snapshot.
func LoadStore(ctx context.Context, deps Deps, owner string) (*Store, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, ErrOwnerRequired
	}
	if err := deps.normalise(); err != nil {
		return nil, err
	}

	snapshot, err := deps.Adapter.Load(ctx, snapshotKey(cartNamespace, owner))
	if err != nil {
		deps.Logger(ctx, "cart.snapshot_load_failed", map[string]any{
			"owner": owner,
			"error": err.Error(),
		})
		snapshot = Snapshot{}
	}

	return &Store{
		deps:  deps,
		owner: owner,
		items: normaliseItems(snapshot.Items),
	}, nil
}

// Owner returns the owner token the store is bound to.
func (s *Store) Owner() string { return s.owner }

// Items returns a copy of the current line items in insertion order.
func (s *Store) Items() []domain.CartLineItem {
	items := make([]domain.CartLineItem, len(s.items))
	copy(items, s.items)
	return items
}

// Count returns the total quantity across all line items.
func (s *Store) Count() int {
	total := 0
	for _, item := range s.items {
		total += item.Quantity
	}
	return total
}

// Total returns the subtotal over all line items in minor units.
func (s *Store) Total() int64 {
	var total int64
	for _, item := range s.items {
		total += item.UnitPrice * int64(item.Quantity)
	}
	return total
}

// Add inserts the line item, merging quantities when the key already exists.
func (s *Store) Add(ctx context.Context, item domain.CartLineItem) error {
	normalised, err := normaliseItem(item)
	if err != nil {
		return err
	}

	merged := false
	for i := range s.items {
		if s.items[i].Key == normalised.Key {
			s.items[i].Quantity += normalised.Quantity
			merged = true
			break
		}
	}
	if !merged {
		s.items = append(s.items, normalised)
	}

	s.persist(ctx)
	return nil
}

// Remove drops the line item for the key. Removing an absent key is a no-op.
func (s *Store) Remove(ctx context.Context, key string) {
	key = strings.TrimSpace(key)
	for i := range s.items {
		if s.items[i].Key == key {
			s.items = append(s.items[:i], s.items[i+1:]...)
			s.persist(ctx)
			return
		}
	}
}

// UpdateQuantity replaces the quantity for the key. A quantity of zero or
// less removes the item.
func (s *Store) UpdateQuantity(ctx context.Context, key string, quantity int) {
	key = strings.TrimSpace(key)
	if quantity <= 0 {
		s.Remove(ctx, key)
		return
	}
	for i := range s.items {
		if s.items[i].Key == key {
			s.items[i].Quantity = quantity
			s.persist(ctx)
			return
		}
	}
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) {
	if len(s.items) == 0 {
		return
	}
	s.items = nil
	s.persist(ctx)
}

// Replace swaps the entire item set, used by the snapshot sync endpoint.
func (s *Store) Replace(ctx context.Context, items []domain.CartLineItem) error {
	replacement := make([]domain.CartLineItem, 0, len(items))
	for _, item := range items {
		normalised, err := normaliseItem(item)
		if err != nil {
			return err
		}
		merged := false
		for i := range replacement {
			if replacement[i].Key == normalised.Key {
				replacement[i].Quantity += normalised.Quantity
				merged = true
				break
			}
		}
		if !merged {
			replacement = append(replacement, normalised)
		}
	}
	s.items = replacement
	s.persist(ctx)
	return nil
}

func (s *Store) persist(ctx context.Context) {
	snapshot := Snapshot{
		Items:     s.Items(),
		UpdatedAt: s.deps.Clock(),
	}
	if err := s.deps.Adapter.Save(ctx, snapshotKey(cartNamespace, s.owner), snapshot); err != nil {
		s.deps.Logger(ctx, "cart.snapshot_save_failed", map[string]any{
			"owner": s.owner,
			"error": err.Error(),
		})
	}
}

func normaliseItem(item domain.CartLineItem) (domain.CartLineItem, error) {
	item.Key = strings.TrimSpace(item.Key)
	item.ProductID = strings.TrimSpace(item.ProductID)
	item.Name = strings.TrimSpace(item.Name)
	if item.Key == "" || item.UnitPrice < 0 {
		return domain.CartLineItem{}, ErrInvalidItem
	}
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	return item, nil
}

func normaliseItems(items []domain.CartLineItem) []domain.CartLineItem {
	out := make([]domain.CartLineItem, 0, len(items))
	for _, item := range items {
		normalised, err := normaliseItem(item)
		if err != nil {
			continue
		}
		merged := false
		for i := range out {
			if out[i].Key == normalised.Key {
				out[i].Quantity += normalised.Quantity
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, normalised)
		}
	}
	return out
}

func snapshotKey(namespace, owner string) string {
	return namespace + ":" + owner
}
