package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/lumenmarket/api/internal/domain"
)

func testDeps(adapter Adapter) Deps {
	return Deps{
		Adapter: adapter,
		Clock: func() time.Time {
			return time.Date(2026, time.April, 2, 10, 0, 0, 0, time.UTC)
		},
	}
}

func lineItem(key string, price int64, qty int) domain.CartLineItem {
	return domain.CartLineItem{
		Key:       key,
		ProductID: "prod_" + key,
		Name:      "Item " + key,
		UnitPrice: price,
		Quantity:  qty,
	}
}

func TestStoreAddMergesQuantitiesByKey(t *testing.T) {
	ctx := context.Background()
	store, err := LoadStore(ctx, testDeps(NewMemoryAdapter()), "user-1")
	if err != nil {
		t.Fatalf("LoadStore: %v", err)
	}

	if err := store.Add(ctx, lineItem("var_a", 1200, 2)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.Add(ctx, lineItem("var_a", 1200, 3)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.Add(ctx, lineItem("var_b", 500, 1)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	items := store.Items()
	if len(items) != 2 {
		t.Fatalf("expected 2 line items, got %d", len(items))
	}
	if items[0].Key != "var_a" || items[0].Quantity != 5 {
		t.Fatalf("expected var_a quantity 5, got %+v", items[0])
	}
	if store.Count() != 6 {
		t.Fatalf("expected count 6, got %d", store.Count())
	}
	if store.Total() != 1200*5+500 {
		t.Fatalf("expected total %d, got %d", int64(1200*5+500), store.Total())
	}
}

func TestStoreAddRejectsInvalidItems(t *testing.T) {
	ctx := context.Background()
	store, err := LoadStore(ctx, testDeps(NewMemoryAdapter()), "user-1")
	if err != nil {
		t.Fatalf("LoadStore: %v", err)
	}

	if err := store.Add(ctx, domain.CartLineItem{Key: "  ", UnitPrice: 100, Quantity: 1}); !errors.Is(err, ErrInvalidItem) {
		t.Fatalf("expected ErrInvalidItem for blank key, got %v", err)
	}
	if err := store.Add(ctx, domain.CartLineItem{Key: "var_a", UnitPrice: -1, Quantity: 1}); !errors.Is(err, ErrInvalidItem) {
		t.Fatalf("expected ErrInvalidItem for negative price, got %v", err)
	}
	if len(store.Items()) != 0 {
		t.Fatalf("expected empty store, got %d items", len(store.Items()))
	}
}

func TestStoreAddClampsQuantityToOne(t *testing.T) {
	ctx := context.Background()
	store, err := LoadStore(ctx, testDeps(NewMemoryAdapter()), "user-1")
	if err != nil {
		t.Fatalf("LoadStore: %v", err)
	}

	if err := store.Add(ctx, lineItem("var_a", 100, 0)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := store.Items()[0].Quantity; got != 1 {
		t.Fatalf("expected quantity clamped to 1, got %d", got)
	}
}

func TestStoreRemoveAbsentKeyIsNoop(t *testing.T) {
	ctx := context.Background()
	store, err := LoadStore(ctx, testDeps(NewMemoryAdapter()), "user-1")
	if err != nil {
		t.Fatalf("LoadStore: %v", err)
	}
	if err := store.Add(ctx, lineItem("var_a", 100, 1)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	store.Remove(ctx, "var_missing")
	store.Remove(ctx, "var_a")
	store.Remove(ctx, "var_a")

	if len(store.Items()) != 0 {
		t.Fatalf("expected empty store, got %d items", len(store.Items()))
	}
}

func TestStoreUpdateQuantityZeroRemoves(t *testing.T) {
	ctx := context.Background()
	store, err := LoadStore(ctx, testDeps(NewMemoryAdapter()), "user-1")
	if err != nil {
		t.Fatalf("LoadStore: %v", err)
	}
	if err := store.Add(ctx, lineItem("var_a", 100, 3)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	store.UpdateQuantity(ctx, "var_a", 7)
	if got := store.Items()[0].Quantity; got != 7 {
		t.Fatalf("expected quantity 7, got %d", got)
	}

	store.UpdateQuantity(ctx, "var_a", 0)
	if len(store.Items()) != 0 {
		t.Fatalf("expected item removed at quantity 0, got %d items", len(store.Items()))
	}
}

func TestStorePersistsSnapshotAcrossLoads(t *testing.T) {
	ctx := context.Background()
	adapter := NewMemoryAdapter()

	store, err := LoadStore(ctx, testDeps(adapter), "user-1")
	if err != nil {
		t.Fatalf("LoadStore: %v", err)
	}
	if err := store.Add(ctx, lineItem("var_a", 2500, 2)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	reloaded, err := LoadStore(ctx, testDeps(adapter), "user-1")
	if err != nil {
		t.Fatalf("LoadStore: %v", err)
	}
	items := reloaded.Items()
	if len(items) != 1 || items[0].Key != "var_a" || items[0].Quantity != 2 {
		t.Fatalf("expected persisted item, got %+v", items)
	}

	other, err := LoadStore(ctx, testDeps(adapter), "user-2")
	if err != nil {
		t.Fatalf("LoadStore: %v", err)
	}
	if len(other.Items()) != 0 {
		t.Fatalf("expected empty store for different owner, got %d items", len(other.Items()))
	}
}

type failingAdapter struct {
	loadErr error
	saveErr error
}

func (a *failingAdapter) Load(context.Context, string) (Snapshot, error) {
	return Snapshot{}, a.loadErr
}

func (a *failingAdapter) Save(context.Context, string, Snapshot) error {
	return a.saveErr
}

func (a *failingAdapter) Delete(context.Context, string) error { return nil }

func TestStoreMutationSucceedsWhenSnapshotSaveFails(t *testing.T) {
	ctx := context.Background()
	var events []string
	deps := testDeps(&failingAdapter{saveErr: errors.New("redis down")})
	deps.Logger = func(_ context.Context, event string, _ map[string]any) {
		events = append(events, event)
	}

	store, err := LoadStore(ctx, deps, "user-1")
	if err != nil {
		t.Fatalf("LoadStore: %v", err)
	}
	if err := store.Add(ctx, lineItem("var_a", 100, 1)); err != nil {
		t.Fatalf("Add should not fail on snapshot error: %v", err)
	}
	if len(store.Items()) != 1 {
		t.Fatalf("expected mutation applied, got %d items", len(store.Items()))
	}

	found := false
	for _, event := range events {
		if event == "cart.snapshot_save_failed" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected snapshot failure to be logged, got %v", events)
	}
}

func TestStoreLoadSurvivesSnapshotLoadFailure(t *testing.T) {
	ctx := context.Background()
	deps := testDeps(&failingAdapter{loadErr: errors.New("redis down"), saveErr: errors.New("redis down")})

	store, err := LoadStore(ctx, deps, "user-1")
	if err != nil {
		t.Fatalf("LoadStore should degrade to empty cart: %v", err)
	}
	if len(store.Items()) != 0 {
		t.Fatalf("expected empty cart, got %d items", len(store.Items()))
	}
}

func TestStoreReplaceDeduplicatesByKey(t *testing.T) {
	ctx := context.Background()
	store, err := LoadStore(ctx, testDeps(NewMemoryAdapter()), "user-1")
	if err != nil {
		t.Fatalf("LoadStore: %v", err)
	}

	err = store.Replace(ctx, []domain.CartLineItem{
		lineItem("var_a", 100, 1),
		lineItem("var_a", 100, 2),
		lineItem("var_b", 200, 1),
	})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}

	items := store.Items()
	if len(items) != 2 {
		t.Fatalf("expected 2 items after replace, got %d", len(items))
	}
	if items[0].Quantity != 3 {
		t.Fatalf("expected merged quantity 3, got %d", items[0].Quantity)
	}
}
