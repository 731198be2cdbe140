package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends enumerates every LocalStore implementation against the same
// contract.
func backends(t *testing.T) map[string]LocalStore {
	t.Helper()

	sqlite, err := OpenSQLite(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	boltStore, err := OpenBolt(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { boltStore.Close() })

	return map[string]LocalStore{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
		"bolt":   boltStore,
	}
}

func TestLocalStoreContract(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok := s.Get("missing")
			assert.False(t, ok)

			require.NoError(t, s.Set("k", "v1"))
			got, ok := s.Get("k")
			require.True(t, ok)
			assert.Equal(t, "v1", got)

			// Overwrite.
			require.NoError(t, s.Set("k", "v2"))
			got, _ = s.Get("k")
			assert.Equal(t, "v2", got)

			// Empty value round-trips distinct from absent.
			require.NoError(t, s.Set("empty", ""))
			got, ok = s.Get("empty")
			assert.True(t, ok)
			assert.Equal(t, "", got)

			require.NoError(t, s.Remove("k"))
			_, ok = s.Get("k")
			assert.False(t, ok)

			// Removing an absent key is a no-op.
			assert.NoError(t, s.Remove("never-set"))
		})
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := OpenSQLite(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set("k", "persisted"))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(dir)
	require.NoError(t, err)
	defer s.Close()
	got, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "persisted", got)
}

func TestBoltSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := OpenBolt(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set("k", "persisted"))
	require.NoError(t, s.Close())

	s, err = OpenBolt(dir)
	require.NoError(t, err)
	defer s.Close()
	got, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "persisted", got)
}

func TestLoadJSON(t *testing.T) {
	s := NewMemoryStore()

	var out []string
	assert.False(t, LoadJSON(s, "absent", &out))

	require.NoError(t, s.Set("bad", "{not json"))
	assert.False(t, LoadJSON(s, "bad", &out))
	assert.Nil(t, out, "malformed value must leave the target untouched")

	require.NoError(t, StoreJSON(s, "good", []string{"a", "b"}))
	require.True(t, LoadJSON(s, "good", &out))
	assert.Equal(t, []string{"a", "b"}, out)
}
