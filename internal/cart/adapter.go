package cart

import (
	"context"
	"sync"
	"time"

	domain "github.com/lumenmarket/api/internal/domain"
)

// Snapshot is the durable representation of a line-item collection.
type Snapshot struct {
	Items     []domain.CartLineItem `json:"items"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

// Adapter persists snapshots keyed by owner token. Implementations must treat
// a missing snapshot as an empty one rather than an error.
type Adapter interface {
	Load(ctx context.Context, key string) (Snapshot, error)
	Save(ctx context.Context, key string, snapshot Snapshot) error
	Delete(ctx context.Context, key string) error
}

// MemoryAdapter keeps snapshots in process memory. Used in tests and as a
// fallback when no snapshot store is configured.
type MemoryAdapter struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
}

// NewMemoryAdapter constructs an empty in-memory snapshot store.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{snapshots: make(map[string]Snapshot)}
}

// Load returns the stored snapshot, or an empty one when the key is unknown.
func (a *MemoryAdapter) Load(_ context.Context, key string) (Snapshot, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	snapshot, ok := a.snapshots[key]
	if !ok {
		return Snapshot{}, nil
	}
	items := make([]domain.CartLineItem, len(snapshot.Items))
	copy(items, snapshot.Items)
	snapshot.Items = items
	return snapshot, nil
}

// Save stores a copy of the snapshot.
func (a *MemoryAdapter) Save(_ context.Context, key string, snapshot Snapshot) error {
	items := make([]domain.CartLineItem, len(snapshot.Items))
	copy(items, snapshot.Items)
	snapshot.Items = items

	a.mu.Lock()
	a.snapshots[key] = snapshot
	a.mu.Unlock()
	return nil
}

// Delete removes the snapshot for the key.
func (a *MemoryAdapter) Delete(_ context.Context, key string) error {
	a.mu.Lock()
	delete(a.snapshots, key)
	a.mu.Unlock()
	return nil
}
