package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadenza-app/cadenza/internal/models"
	"github.com/cadenza-app/cadenza/internal/storage"
)

func entry(id string, updatedAt int64) *models.LogbookEntry {
	return &models.LogbookEntry{
		ID: id, Piece: "Waldstein", Minutes: 45,
		Tags: []string{}, PracticedOn: "2026-08-01",
		CreatedAt: updatedAt, UpdatedAt: updatedAt,
	}
}

func TestUpsertLWWStrictlyNewerWins(t *testing.T) {
	s := NewLogbookStore(storage.NewMemoryStore())

	changed, err := s.UpsertLWW(entry("e1", 100))
	require.NoError(t, err)
	assert.True(t, changed)

	// Older loses.
	changed, err = s.UpsertLWW(entry("e1", 50))
	require.NoError(t, err)
	assert.False(t, changed)
	got, _ := s.Get("e1")
	assert.Equal(t, int64(100), got.UpdatedAtMillis())

	// Equal timestamps keep the existing copy.
	changed, err = s.UpsertLWW(entry("e1", 100))
	require.NoError(t, err)
	assert.False(t, changed)

	// Strictly newer wins.
	changed, err = s.UpsertLWW(entry("e1", 150))
	require.NoError(t, err)
	assert.True(t, changed)
	got, _ = s.Get("e1")
	assert.Equal(t, int64(150), got.UpdatedAtMillis())
}

func TestUpsertLWWIdempotent(t *testing.T) {
	s := NewLogbookStore(storage.NewMemoryStore())

	e := entry("e1", 100)
	_, err := s.UpsertLWW(e)
	require.NoError(t, err)
	changed, err := s.UpsertLWW(e)
	require.NoError(t, err)
	assert.False(t, changed, "reapplying the same write must not change state")
	assert.Equal(t, 1, s.Len())
}

func TestUpsertLWWCommutes(t *testing.T) {
	older := entry("e1", 100)
	newer := entry("e1", 200)

	a := NewLogbookStore(storage.NewMemoryStore())
	_, _ = a.UpsertLWW(older)
	_, _ = a.UpsertLWW(newer)

	b := NewLogbookStore(storage.NewMemoryStore())
	_, _ = b.UpsertLWW(newer)
	_, _ = b.UpsertLWW(older)

	gotA, _ := a.Get("e1")
	gotB, _ := b.Get("e1")
	assert.Equal(t, gotA, gotB, "apply order must not affect the outcome")
	assert.Equal(t, int64(200), gotA.UpdatedAtMillis())
}

func TestRemoveLWW(t *testing.T) {
	s := NewLogbookStore(storage.NewMemoryStore())
	require.NoError(t, s.Put(entry("e1", 100)))

	// A stale removal is ignored.
	removed, err := s.RemoveLWW("e1", 100)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, 1, s.Len())

	removed, err = s.RemoveLWW("e1", 150)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, 0, s.Len())

	// Removing an absent id is a no-op.
	removed, err = s.RemoveLWW("e1", 200)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestPutIsUnconditional(t *testing.T) {
	s := NewLogbookStore(storage.NewMemoryStore())
	require.NoError(t, s.Put(entry("e1", 200)))

	// Local writes are authoritative even when older.
	require.NoError(t, s.Put(entry("e1", 100)))
	got, _ := s.Get("e1")
	assert.Equal(t, int64(100), got.UpdatedAtMillis())
}

func TestMergeAllCountsChanges(t *testing.T) {
	s := NewLogbookStore(storage.NewMemoryStore())
	require.NoError(t, s.Put(entry("e1", 100)))
	require.NoError(t, s.Put(entry("e2", 100)))

	changed, err := s.MergeAll([]models.Entity{
		entry("e1", 50),  // stale, ignored
		entry("e2", 200), // newer, applied
		entry("e3", 10),  // new, applied
	})
	require.NoError(t, err)
	assert.Equal(t, 2, changed)
	assert.Equal(t, 3, s.Len())

	got, _ := s.Get("e1")
	assert.Equal(t, int64(100), got.UpdatedAtMillis())
}

func TestPersistSurvivesReload(t *testing.T) {
	local := storage.NewMemoryStore()
	s := NewLogbookStore(local)
	require.NoError(t, s.Put(entry("e1", 100)))

	reloaded := NewLogbookStore(local)
	reloaded.Hydrate()
	got, ok := reloaded.Get("e1")
	require.True(t, ok)
	assert.Equal(t, "e1", got.EntityID())
	assert.Equal(t, int64(100), got.UpdatedAtMillis())
}

func TestHydrateOnEmptyBeforeRemoteWrite(t *testing.T) {
	local := storage.NewMemoryStore()
	seed := NewLogbookStore(local)
	require.NoError(t, seed.Put(entry("e1", 500)))

	// A fresh store that was never explicitly hydrated must still load
	// disk state before judging a remote write, so the stale incoming
	// copy loses to what is on disk.
	s := NewLogbookStore(local)
	changed, err := s.UpsertLWW(entry("e1", 100))
	require.NoError(t, err)
	assert.False(t, changed)
	got, _ := s.Get("e1")
	assert.Equal(t, int64(500), got.UpdatedAtMillis())
}

func TestHydrateMalformedStateStartsEmpty(t *testing.T) {
	local := storage.NewMemoryStore()
	require.NoError(t, local.Set("entities/logbook_entry", "{corrupt"))

	s := NewLogbookStore(local)
	s.Hydrate()
	assert.Equal(t, 0, s.Len())

	// The store stays writable after recovering from corruption.
	require.NoError(t, s.Put(entry("e1", 100)))
	assert.Equal(t, 1, s.Len())
}

func TestHydrateSkipsUndecodableEntity(t *testing.T) {
	local := storage.NewMemoryStore()
	require.NoError(t, local.Set("entities/logbook_entry",
		`{"good":{"id":"good","piece":"Ballade","createdAt":10,"updatedAt":10},"bad":"not an object"}`))

	s := NewLogbookStore(local)
	s.Hydrate()
	assert.Equal(t, 1, s.Len())
	_, ok := s.Get("good")
	assert.True(t, ok)
}

func TestDeleteAbsentIsNoop(t *testing.T) {
	s := NewLogbookStore(storage.NewMemoryStore())
	assert.NoError(t, s.Delete("missing"))
}

func TestRegistryLookup(t *testing.T) {
	local := storage.NewMemoryStore()
	r := NewRegistry(NewLogbookStore(local), NewRepertoireStore(local), NewGoalStore(local))

	s, ok := r.Lookup(models.EntityGoal)
	require.True(t, ok)
	assert.Equal(t, models.EntityGoal, s.EntityType())

	_, ok = r.Lookup("unknown")
	assert.False(t, ok)
}
