// Package store provides the per-type entity stores the sync engine and
// the real-time merge layer write into. Each store keeps an in-memory
// map of entities backed by the persistent local store, and applies
// last-write-wins timestamp comparison to every remote write so that
// arrival order never matters.
package store

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cadenza-app/cadenza/internal/logging"
	"github.com/cadenza-app/cadenza/internal/models"
	"github.com/cadenza-app/cadenza/internal/storage"
)

// Decoder turns a raw JSON payload into a concrete entity.
type Decoder func(json.RawMessage) (models.Entity, error)

// Store holds all entities of one type.
type Store struct {
	entityType models.EntityType
	storageKey string
	local      storage.LocalStore
	decode     Decoder

	mu       sync.RWMutex
	items    map[string]models.Entity
	hydrated bool
}

// New creates a store for one entity type. The storage key is derived
// from the entity type and never changes across versions.
func New(entityType models.EntityType, local storage.LocalStore, decode Decoder) *Store {
	return &Store{
		entityType: entityType,
		storageKey: "entities/" + string(entityType),
		local:      local,
		decode:     decode,
		items:      make(map[string]models.Entity),
	}
}

// EntityType returns the type of entity this store holds.
func (s *Store) EntityType() models.EntityType {
	return s.entityType
}

// Hydrate loads the on-disk state into memory. Malformed stored state is
// treated as empty, logged, and never fatal.
func (s *Store) Hydrate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hydrateLocked()
}

// hydrateLocked populates the in-memory map from disk if it has not
// been loaded yet. Remote-event writers call this before touching state
// so an early push event cannot blindly overwrite disk-resident state
// memory has not caught up with.
func (s *Store) hydrateLocked() {
	if s.hydrated {
		return
	}
	s.hydrated = true

	var raw map[string]json.RawMessage
	if !storage.LoadJSON(s.local, s.storageKey, &raw) {
		return
	}

	for id, payload := range raw {
		entity, err := s.decode(payload)
		if err != nil {
			logging.Warn("Skipping undecodable stored entity",
				map[string]interface{}{
					"entity_type": s.entityType,
					"entity_id":   id,
					"error":       err.Error(),
				})
			continue
		}
		s.items[entity.EntityID()] = entity
	}
}

// Get returns the entity with the given id.
func (s *Store) Get(id string) (models.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[id]
	return e, ok
}

// All returns every entity in the store.
func (s *Store) All() []models.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Entity, 0, len(s.items))
	for _, e := range s.items {
		out = append(out, e)
	}
	return out
}

// Len returns the number of entities held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Put writes a local mutation unconditionally and persists. Local writes
// are authoritative for this device; LWW applies only to remote state.
func (s *Store) Put(e models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hydrateLocked()
	s.items[e.EntityID()] = e
	return s.persistLocked()
}

// Delete removes a local entity and persists. Deleting an absent id is a
// no-op.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hydrateLocked()
	if _, ok := s.items[id]; !ok {
		return nil
	}
	delete(s.items, id)
	return s.persistLocked()
}

// UpsertLWW applies a remote add or update. The incoming entity wins
// only if its UpdatedAt is strictly greater than the existing one's
// (absent existing loses to anything). Returns whether state changed.
// The updated map is persisted immediately: remote events represent
// already-committed state and must survive a crash.
func (s *Store) UpsertLWW(e models.Entity) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hydrateLocked()

	existing := s.items[e.EntityID()]
	if !models.Newer(e, existing) {
		return false, nil
	}
	s.items[e.EntityID()] = e
	return true, s.persistLocked()
}

// RemoveLWW applies a remote removal carrying the remote UpdatedAt.
// The entity is deleted only if the removal is strictly newer than the
// local copy. Removing an absent id is a no-op.
func (s *Store) RemoveLWW(id string, updatedAt int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hydrateLocked()

	existing, ok := s.items[id]
	if !ok {
		return false, nil
	}
	if updatedAt <= existing.UpdatedAtMillis() {
		return false, nil
	}
	delete(s.items, id)
	return true, s.persistLocked()
}

// MergeAll applies the LWW rule per entity across a whole set and
// returns how many entities actually changed. State is persisted once at
// the end if anything changed.
func (s *Store) MergeAll(entities []models.Entity) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hydrateLocked()

	changed := 0
	for _, e := range entities {
		if models.Newer(e, s.items[e.EntityID()]) {
			s.items[e.EntityID()] = e
			changed++
		}
	}
	if changed == 0 {
		return 0, nil
	}
	return changed, s.persistLocked()
}

// persistLocked writes the full entity map to the local store.
func (s *Store) persistLocked() error {
	raw := make(map[string]json.RawMessage, len(s.items))
	for id, e := range s.items {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal entity %s/%s: %w", s.entityType, id, err)
		}
		raw[id] = data
	}
	return storage.StoreJSON(s.local, s.storageKey, raw)
}

// Decode runs the store's decoder on a raw payload.
func (s *Store) Decode(payload json.RawMessage) (models.Entity, error) {
	return s.decode(payload)
}
