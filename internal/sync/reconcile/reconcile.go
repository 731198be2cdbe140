// Package reconcile partitions pushed changes into accepted and
// conflicted sets after an exchange, prunes the change queue, bumps
// retry counters, applies server-sent changes to the entity stores, and
// persists the new checkpoint.
package reconcile

import (
	"fmt"

	"github.com/cadenza-app/cadenza/internal/logging"
	"github.com/cadenza-app/cadenza/internal/models"
	"github.com/cadenza-app/cadenza/internal/store"
	"github.com/cadenza-app/cadenza/internal/sync/queue"
)

// Reconciler reconciles exchange outcomes against local state.
type Reconciler struct {
	queue  *queue.ChangeQueue
	stores *store.Registry
}

// New creates a Reconciler over the given queue and entity stores.
func New(q *queue.ChangeQueue, stores *store.Registry) *Reconciler {
	return &Reconciler{queue: q, stores: stores}
}

// Partition splits the pushed changes into those the server accepted and
// those it reported as conflicted.
func (r *Reconciler) Partition(pushed []models.ChangeRecord, conflicts []models.ConflictReport) (accepted, conflicted []models.ChangeRecord) {
	conflictIDs := make(map[string]bool, len(conflicts))
	for _, c := range conflicts {
		conflictIDs[c.ChangeID] = true
	}
	for _, c := range pushed {
		if conflictIDs[c.ChangeID] {
			conflicted = append(conflicted, c)
		} else {
			accepted = append(accepted, c)
		}
	}
	return accepted, conflicted
}

// Commit finalizes a successful exchange: conflicted changes get their
// retry count bumped so they resurface next cycle, accepted changes are
// purged, server-sent changes are merged into the entity stores, and the
// checkpoint advances. Per-change apply failures are logged, never
// escalated; a queue persistence failure is returned.
func (r *Reconciler) Commit(accepted, conflicted, newChanges []models.ChangeRecord, latestVersion int64, now int64) error {
	for _, c := range conflicted {
		if err := r.queue.IncrementRetry(c.ChangeID); err != nil {
			logging.Error("Failed to bump retry count", err,
				map[string]interface{}{"change_id": c.ChangeID})
		}
	}

	ids := make([]string, len(accepted))
	for i, c := range accepted {
		ids[i] = c.ChangeID
	}
	if err := r.queue.RemoveMany(ids); err != nil {
		return err
	}

	for _, c := range newChanges {
		if err := r.ApplyRemote(c); err != nil {
			logging.Error("Failed to apply remote change", err,
				map[string]interface{}{
					"change_id":   c.ChangeID,
					"entity_type": c.EntityType,
					"entity_id":   c.EntityID,
				})
		}
	}

	meta := r.queue.Checkpoint()
	meta.LastKnownServerVersion = latestVersion
	meta.LastSyncTime = now
	return r.queue.SetCheckpoint(meta)
}

// ApplyRemote merges one server-sent change into its entity store under
// the LWW rule. Deletes carry only the change timestamp, so that is what
// the removal is compared against.
func (r *Reconciler) ApplyRemote(c models.ChangeRecord) error {
	s, ok := r.stores.Lookup(c.EntityType)
	if !ok {
		return fmt.Errorf("no store for entity type %q", c.EntityType)
	}

	switch c.Type {
	case models.ChangeDeleted:
		_, err := s.RemoveLWW(c.EntityID, c.Timestamp)
		return err
	case models.ChangeCreated, models.ChangeUpdated:
		entity, err := s.Decode(c.Data)
		if err != nil {
			return fmt.Errorf("undecodable payload for %s/%s: %w", c.EntityType, c.EntityID, err)
		}
		_, err = s.UpsertLWW(entity)
		return err
	default:
		return fmt.Errorf("unknown change type %q", c.Type)
	}
}
