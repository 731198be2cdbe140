package realtime

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadenza-app/cadenza/internal/models"
	"github.com/cadenza-app/cadenza/internal/storage"
	"github.com/cadenza-app/cadenza/internal/store"
)

func newMerger(t *testing.T) (*Merger, *store.Store, storage.LocalStore) {
	t.Helper()
	local := storage.NewMemoryStore()
	logbook := store.NewLogbookStore(local)
	stores := store.NewRegistry(logbook, store.NewGoalStore(local))
	stores.HydrateAll()
	return NewMerger(stores), logbook, local
}

func entryPayload(id string, updatedAt int64) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"id":%q,"piece":"Clair de Lune","minutes":20,"createdAt":%d,"updatedAt":%d}`,
		id, updatedAt, updatedAt))
}

func TestHandleEntityAdded(t *testing.T) {
	m, logbook, _ := newMerger(t)

	err := m.HandleEvent(&Envelope{
		Type:       EventEntityAdded,
		EntityType: models.EntityLogbookEntry,
		Entity:     entryPayload("e1", 100),
	})
	require.NoError(t, err)

	got, ok := logbook.Get("e1")
	require.True(t, ok)
	assert.Equal(t, int64(100), got.UpdatedAtMillis())
}

func TestHandleEntityUpdatedRespectsLWW(t *testing.T) {
	m, logbook, _ := newMerger(t)

	require.NoError(t, m.HandleEvent(&Envelope{
		Type:       EventEntityAdded,
		EntityType: models.EntityLogbookEntry,
		Entity:     entryPayload("e1", 200),
	}))

	// A stale update arriving late is discarded.
	require.NoError(t, m.HandleEvent(&Envelope{
		Type:       EventEntityUpdated,
		EntityType: models.EntityLogbookEntry,
		Entity:     entryPayload("e1", 100),
	}))

	got, _ := logbook.Get("e1")
	assert.Equal(t, int64(200), got.UpdatedAtMillis())
}

func TestHandleEventsCommuteAndReplay(t *testing.T) {
	older := &Envelope{Type: EventEntityAdded, EntityType: models.EntityLogbookEntry, Entity: entryPayload("e1", 100)}
	newer := &Envelope{Type: EventEntityUpdated, EntityType: models.EntityLogbookEntry, Entity: entryPayload("e1", 300)}

	a, logbookA, _ := newMerger(t)
	require.NoError(t, a.HandleEvent(older))
	require.NoError(t, a.HandleEvent(newer))
	require.NoError(t, a.HandleEvent(newer)) // replay

	b, logbookB, _ := newMerger(t)
	require.NoError(t, b.HandleEvent(newer))
	require.NoError(t, b.HandleEvent(older))

	gotA, _ := logbookA.Get("e1")
	gotB, _ := logbookB.Get("e1")
	assert.Equal(t, gotA.UpdatedAtMillis(), gotB.UpdatedAtMillis())
	assert.Equal(t, int64(300), gotA.UpdatedAtMillis())
}

func TestHandleEntityRemoved(t *testing.T) {
	m, logbook, _ := newMerger(t)
	require.NoError(t, m.HandleEvent(&Envelope{
		Type:       EventEntityAdded,
		EntityType: models.EntityLogbookEntry,
		Entity:     entryPayload("e1", 100),
	}))

	// Stale removal loses.
	require.NoError(t, m.HandleEvent(&Envelope{
		Type:       EventEntityRemoved,
		EntityType: models.EntityLogbookEntry,
		EntityID:   "e1",
		UpdatedAt:  50,
	}))
	_, ok := logbook.Get("e1")
	assert.True(t, ok)

	require.NoError(t, m.HandleEvent(&Envelope{
		Type:       EventEntityDissociated,
		EntityType: models.EntityLogbookEntry,
		EntityID:   "e1",
		UpdatedAt:  150,
	}))
	_, ok = logbook.Get("e1")
	assert.False(t, ok)
}

func TestHandleBulkSync(t *testing.T) {
	m, logbook, _ := newMerger(t)
	require.NoError(t, m.HandleEvent(&Envelope{
		Type:       EventEntityAdded,
		EntityType: models.EntityLogbookEntry,
		Entity:     entryPayload("e1", 500),
	}))

	err := m.HandleEvent(&Envelope{
		Type:       EventBulkSync,
		EntityType: models.EntityLogbookEntry,
		Entities: []json.RawMessage{
			entryPayload("e1", 100), // stale, ignored
			entryPayload("e2", 200),
			json.RawMessage(`"not an object"`), // skipped, not fatal
			entryPayload("e3", 300),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, logbook.Len())
	got, _ := logbook.Get("e1")
	assert.Equal(t, int64(500), got.UpdatedAtMillis())
}

func TestHandleEventHydratesBeforeWrite(t *testing.T) {
	local := storage.NewMemoryStore()
	seed := store.NewLogbookStore(local)
	require.NoError(t, seed.Put(&models.LogbookEntry{ID: "e1", Piece: "Prelude", CreatedAt: 500, UpdatedAt: 500}))

	// Fresh process, no explicit hydrate: the event must still be judged
	// against the disk-resident copy.
	m := NewMerger(store.NewRegistry(store.NewLogbookStore(local)))
	require.NoError(t, m.HandleEvent(&Envelope{
		Type:       EventEntityUpdated,
		EntityType: models.EntityLogbookEntry,
		Entity:     entryPayload("e1", 100),
	}))

	check := store.NewLogbookStore(local)
	check.Hydrate()
	got, ok := check.Get("e1")
	require.True(t, ok)
	assert.Equal(t, int64(500), got.UpdatedAtMillis())
}

func TestHandleEventUnknownType(t *testing.T) {
	m, _, _ := newMerger(t)
	assert.Error(t, m.HandleEvent(&Envelope{Type: "BOGUS", EntityType: models.EntityLogbookEntry}))
	assert.Error(t, m.HandleEvent(&Envelope{Type: EventEntityAdded, EntityType: "no_such_type"}))
}

func TestHandleEventUndecodablePayload(t *testing.T) {
	m, logbook, _ := newMerger(t)
	err := m.HandleEvent(&Envelope{
		Type:       EventEntityAdded,
		EntityType: models.EntityLogbookEntry,
		Entity:     json.RawMessage(`{broken`),
	})
	assert.Error(t, err)
	assert.Equal(t, 0, logbook.Len())
}
