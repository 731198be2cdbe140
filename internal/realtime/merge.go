// Package realtime consumes entity events pushed out-of-band by other
// devices and merges them into local state. Ordering against the delta
// protocol client is guaranteed only by the per-entity last-write-wins
// comparison, which makes event application commutative and idempotent
// regardless of arrival order.
package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/cadenza-app/cadenza/internal/logging"
	"github.com/cadenza-app/cadenza/internal/models"
	"github.com/cadenza-app/cadenza/internal/store"
)

// EventType tags an inbound push message.
type EventType string

const (
	EventEntityAdded       EventType = "ENTITY_ADDED"
	EventEntityUpdated     EventType = "ENTITY_UPDATED"
	EventEntityRemoved     EventType = "ENTITY_REMOVED"
	EventEntityDissociated EventType = "ENTITY_DISSOCIATED"
	EventBulkSync          EventType = "BULK_SYNC"
)

// Envelope is the wire form of one push event. Single-entity events
// carry Entity; BULK_SYNC carries Entities. Removals carry only the
// entity id plus its UpdatedAt.
type Envelope struct {
	Type       EventType         `json:"type"`
	EntityType models.EntityType `json:"entityType"`
	EntityID   string            `json:"entityId,omitempty"`
	Entity     json.RawMessage   `json:"entity,omitempty"`
	Entities   []json.RawMessage `json:"entities,omitempty"`
	UpdatedAt  int64             `json:"updatedAt,omitempty"`
	Timestamp  int64             `json:"timestamp"`
}

// Merger applies push events to the entity stores.
type Merger struct {
	stores *store.Registry
}

// NewMerger creates a Merger over the given stores.
func NewMerger(stores *store.Registry) *Merger {
	return &Merger{stores: stores}
}

// HandleEvent merges one event. The stores hydrate from disk before the
// first write, so an event arriving right after process start cannot
// clobber disk-resident state; the updated map is persisted immediately
// because these events represent already-committed remote state.
func (m *Merger) HandleEvent(env *Envelope) error {
	s, ok := m.stores.Lookup(env.EntityType)
	if !ok {
		return fmt.Errorf("no store for entity type %q", env.EntityType)
	}

	switch env.Type {
	case EventEntityAdded, EventEntityUpdated:
		entity, err := s.Decode(env.Entity)
		if err != nil {
			return fmt.Errorf("undecodable entity payload: %w", err)
		}
		applied, err := s.UpsertLWW(entity)
		if err != nil {
			return err
		}
		logging.Debug("Applied entity event",
			map[string]interface{}{
				"type":        env.Type,
				"entity_type": env.EntityType,
				"entity_id":   entity.EntityID(),
				"applied":     applied,
			})
		return nil

	case EventEntityRemoved, EventEntityDissociated:
		applied, err := s.RemoveLWW(env.EntityID, env.UpdatedAt)
		if err != nil {
			return err
		}
		logging.Debug("Applied removal event",
			map[string]interface{}{
				"type":        env.Type,
				"entity_type": env.EntityType,
				"entity_id":   env.EntityID,
				"applied":     applied,
			})
		return nil

	case EventBulkSync:
		entities := make([]models.Entity, 0, len(env.Entities))
		for _, raw := range env.Entities {
			entity, err := s.Decode(raw)
			if err != nil {
				logging.Warn("Skipping undecodable bulk entity",
					map[string]interface{}{
						"entity_type": env.EntityType,
						"error":       err.Error(),
					})
				continue
			}
			entities = append(entities, entity)
		}
		changed, err := s.MergeAll(entities)
		if err != nil {
			return err
		}
		logging.Info("Bulk sync merged",
			map[string]interface{}{
				"entity_type": env.EntityType,
				"received":    len(env.Entities),
				"changed":     changed,
			})
		return nil

	default:
		return fmt.Errorf("unknown event type %q", env.Type)
	}
}
