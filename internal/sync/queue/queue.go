// Package queue provides the durable on-device log of pending local
// mutations awaiting transmission, along with the per-device sync
// checkpoint. A change lives in the queue from enqueue until the server
// accepts it or its retry count reaches the ceiling; ceiling-hit changes
// are excluded from transmission but retained for diagnostics.
package queue

import (
	"encoding/json"
	gosync "sync"

	apperrors "github.com/cadenza-app/cadenza/internal/errors"
	"github.com/cadenza-app/cadenza/internal/logging"
	"github.com/cadenza-app/cadenza/internal/models"
	"github.com/cadenza-app/cadenza/internal/storage"
	"github.com/cadenza-app/cadenza/internal/uuid"
)

const (
	changesKey  = "sync/changes"
	metadataKey = "sync/metadata"
)

// ChangeQueue manages pending changes and the sync checkpoint, persisting
// both synchronously through the local store.
type ChangeQueue struct {
	mu       gosync.RWMutex
	local    storage.LocalStore
	changes  []models.ChangeRecord // insertion order preserved
	metadata models.SyncMetadata
	lastTS   int64 // enqueue timestamps are monotonic per device
}

// New loads the queue and checkpoint from the local store. Absent or
// malformed stored state starts empty; a missing device id is generated
// once and persisted.
func New(local storage.LocalStore) *ChangeQueue {
	q := &ChangeQueue{local: local}

	storage.LoadJSON(local, changesKey, &q.changes)
	for _, c := range q.changes {
		if c.Timestamp > q.lastTS {
			q.lastTS = c.Timestamp
		}
	}

	storage.LoadJSON(local, metadataKey, &q.metadata)
	if q.metadata.DeviceID == "" {
		q.metadata.DeviceID = uuid.NewDeviceID()
		if err := storage.StoreJSON(local, metadataKey, &q.metadata); err != nil {
			logging.Error("Failed to persist generated device id", err)
		}
		logging.Info("Generated device id",
			map[string]interface{}{"device_id": q.metadata.DeviceID})
	}

	return q
}

// Enqueue appends a new pending change and persists it synchronously.
// The change id is generated here and never reused. A persistence
// failure rolls the append back and is surfaced to the caller.
func (q *ChangeQueue) Enqueue(t models.ChangeType, entityType models.EntityType, entityID string, data json.RawMessage) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ts := models.NowMillis()
	if ts <= q.lastTS {
		ts = q.lastTS + 1
	}

	record := models.ChangeRecord{
		ChangeID:   uuid.New(),
		Type:       t,
		EntityType: entityType,
		EntityID:   entityID,
		Data:       data,
		Timestamp:  ts,
		RetryCount: 0,
	}

	q.changes = append(q.changes, record)
	if err := q.persistChangesLocked(); err != nil {
		q.changes = q.changes[:len(q.changes)-1]
		return "", apperrors.Wrap(apperrors.ErrQueuePersist, "failed to persist enqueued change", err)
	}
	q.lastTS = ts

	logging.Debug("Enqueued change",
		map[string]interface{}{
			"change_id":   record.ChangeID,
			"type":        record.Type,
			"entity_type": record.EntityType,
			"entity_id":   record.EntityID,
		})

	return record.ChangeID, nil
}

// ListPending returns all not-yet-resolved changes in insertion order.
func (q *ChangeQueue) ListPending() []models.ChangeRecord {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]models.ChangeRecord, len(q.changes))
	copy(out, q.changes)
	return out
}

// ListViable returns the changes eligible for transmission, in insertion
// order. Changes at or above the retry ceiling are filtered out.
func (q *ChangeQueue) ListViable() []models.ChangeRecord {
	q.mu.RLock()
	defer q.mu.RUnlock()
	var out []models.ChangeRecord
	for _, c := range q.changes {
		if c.Viable() {
			out = append(out, c)
		}
	}
	return out
}

// RemoveMany deletes the given changes after server acceptance.
// Removing an absent id is a no-op.
func (q *ChangeQueue) RemoveMany(ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	kept := q.changes[:0]
	removed := 0
	for _, c := range q.changes {
		if drop[c.ChangeID] {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	if removed == 0 {
		return nil
	}
	q.changes = kept

	if err := q.persistChangesLocked(); err != nil {
		return apperrors.Wrap(apperrors.ErrQueuePersist, "failed to persist queue after removal", err)
	}

	logging.Debug("Removed accepted changes",
		map[string]interface{}{"count": removed})
	return nil
}

// IncrementRetry bumps the retry count of a conflicted change. When the
// ceiling is reached the change stays queued for diagnostics but is no
// longer transmitted.
func (q *ChangeQueue) IncrementRetry(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.changes {
		if q.changes[i].ChangeID != id {
			continue
		}
		q.changes[i].RetryCount++
		if err := q.persistChangesLocked(); err != nil {
			q.changes[i].RetryCount--
			return apperrors.Wrap(apperrors.ErrQueuePersist, "failed to persist retry count", err)
		}
		if !q.changes[i].Viable() {
			logging.Warn("Change reached retry ceiling, excluded from transmission",
				map[string]interface{}{
					"change_id":   id,
					"retry_count": q.changes[i].RetryCount,
				})
		}
		return nil
	}

	return apperrors.New(apperrors.ErrQueueNotFound, "change not found: "+id)
}

// Checkpoint returns the current sync metadata. On first use it holds
// zero-valued defaults plus the generated device id.
func (q *ChangeQueue) Checkpoint() models.SyncMetadata {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.metadata
}

// SetCheckpoint persists new sync metadata. The server version is
// monotonic: an attempt to lower it is logged and ignored.
func (q *ChangeQueue) SetCheckpoint(meta models.SyncMetadata) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if meta.LastKnownServerVersion < q.metadata.LastKnownServerVersion {
		logging.Warn("Refusing checkpoint regression",
			map[string]interface{}{
				"current":  q.metadata.LastKnownServerVersion,
				"proposed": meta.LastKnownServerVersion,
			})
		return nil
	}
	if meta.DeviceID == "" {
		meta.DeviceID = q.metadata.DeviceID
	}

	prev := q.metadata
	q.metadata = meta
	if err := storage.StoreJSON(q.local, metadataKey, &q.metadata); err != nil {
		q.metadata = prev
		return apperrors.Wrap(apperrors.ErrQueuePersist, "failed to persist checkpoint", err)
	}
	return nil
}

// Stats summarizes queue state for diagnostics.
type Stats struct {
	Total   int `json:"total"`
	Viable  int `json:"viable"`
	Skipped int `json:"skipped"` // at or above the retry ceiling
}

// GetStats returns queue statistics.
func (q *ChangeQueue) GetStats() Stats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	s := Stats{Total: len(q.changes)}
	for _, c := range q.changes {
		if c.Viable() {
			s.Viable++
		} else {
			s.Skipped++
		}
	}
	return s
}

func (q *ChangeQueue) persistChangesLocked() error {
	return storage.StoreJSON(q.local, changesKey, q.changes)
}
