package store

import (
	"encoding/json"

	"github.com/cadenza-app/cadenza/internal/models"
	"github.com/cadenza-app/cadenza/internal/storage"
)

// NewLogbookStore creates the store for practice logbook entries.
func NewLogbookStore(local storage.LocalStore) *Store {
	return New(models.EntityLogbookEntry, local, func(raw json.RawMessage) (models.Entity, error) {
		var e models.LogbookEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, err
		}
		e.Normalize()
		return &e, nil
	})
}

// NewRepertoireStore creates the store for repertoire items.
func NewRepertoireStore(local storage.LocalStore) *Store {
	return New(models.EntityRepertoireItem, local, func(raw json.RawMessage) (models.Entity, error) {
		var r models.RepertoireItem
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		r.Normalize()
		return &r, nil
	})
}

// NewGoalStore creates the store for goals.
func NewGoalStore(local storage.LocalStore) *Store {
	return New(models.EntityGoal, local, func(raw json.RawMessage) (models.Entity, error) {
		var g models.Goal
		if err := json.Unmarshal(raw, &g); err != nil {
			return nil, err
		}
		g.Normalize()
		return &g, nil
	})
}

// Registry maps entity types to their stores. It is the dependency
// boundary the reconciler and the real-time merge layer consume; stores
// are injected at construction, never looked up lazily.
type Registry struct {
	stores map[models.EntityType]*Store
}

// NewRegistry builds a registry from the given stores.
func NewRegistry(stores ...*Store) *Registry {
	r := &Registry{stores: make(map[models.EntityType]*Store, len(stores))}
	for _, s := range stores {
		r.stores[s.EntityType()] = s
	}
	return r
}

// Lookup returns the store for an entity type.
func (r *Registry) Lookup(entityType models.EntityType) (*Store, bool) {
	s, ok := r.stores[entityType]
	return s, ok
}

// HydrateAll loads every store's on-disk state into memory.
func (r *Registry) HydrateAll() {
	for _, s := range r.stores {
		s.Hydrate()
	}
}
