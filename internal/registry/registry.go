// Package registry holds the in-memory set of fetched work items for one
// extraction run, keyed by composite identity.
package registry

import (
	"errors"
	"fmt"
	"iter"

	"github.com/uschtwill/hiersnap/internal/types"
)

// ErrNotFound is returned by Get for an unregistered identity.
var ErrNotFound = errors.New("item not found")

// Registry stores WorkItems by identity. Registration is last-write-wins
// so an idempotent re-fetch simply overwrites the prior record.
//
// Registry is not safe for concurrent mutation; parallel fetchers must
// merge their batches through a single writer (see resolver.Bulk).
type Registry struct {
	items map[types.ItemID]*types.WorkItem
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{items: make(map[types.ItemID]*types.WorkItem)}
}

// Register inserts or overwrites an item by identity.
func (r *Registry) Register(item *types.WorkItem) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("register %s: %w", item.ID, err)
	}
	r.items[item.ID] = item
	return nil
}

// Get returns the item for the identity, or ErrNotFound.
func (r *Registry) Get(id types.ItemID) (*types.WorkItem, error) {
	item, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return item, nil
}

// Has reports whether the identity is registered.
func (r *Registry) Has(id types.ItemID) bool {
	_, ok := r.items[id]
	return ok
}

// Len returns the number of registered items.
func (r *Registry) Len() int {
	return len(r.items)
}

// All returns a restartable sequence over all registered items.
// Iteration order is unspecified.
func (r *Registry) All() iter.Seq[*types.WorkItem] {
	return func(yield func(*types.WorkItem) bool) {
		for _, item := range r.items {
			if !yield(item) {
				return
			}
		}
	}
}
