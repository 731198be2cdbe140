// Package storage provides the persistent local key-value store the sync
// engine writes through, with interchangeable backends.
package storage

import (
	"encoding/json"

	"github.com/cadenza-app/cadenza/internal/logging"
)

// LocalStore is the synchronous key->string access contract. Keys are
// opaque strings, values are serialized JSON. Absent keys are reported
// via the ok flag and treated as empty state by callers.
type LocalStore interface {
	// Get returns the value for key, or ok=false if the key is absent.
	Get(key string) (value string, ok bool)

	// Set stores value under key. A persistence failure is surfaced to
	// the caller, never swallowed.
	Set(key, value string) error

	// Remove deletes key. Removing an absent key is a no-op.
	Remove(key string) error

	// Close releases backend resources.
	Close() error
}

// LoadJSON reads key from s and unmarshals it into v. An absent key or a
// malformed value is treated as empty state: v is left untouched, the
// malformed case is logged, and false is returned. It never fails hard.
func LoadJSON(s LocalStore, key string, v interface{}) bool {
	raw, ok := s.Get(key)
	if !ok || raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		logging.Warn("Discarding malformed stored value",
			map[string]interface{}{"key": key, "error": err.Error()})
		return false
	}
	return true
}

// StoreJSON marshals v and writes it under key.
func StoreJSON(s LocalStore, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(key, string(data))
}
