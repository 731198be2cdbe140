package models

import "time"

// Entity is implemented by every synchronized domain object. Entities
// carry an UpdatedAt millisecond timestamp used for last-write-wins
// comparison: the representation with the strictly greater UpdatedAt
// wins, ties keep the existing value.
type Entity interface {
	EntityID() string
	UpdatedAtMillis() int64
}

// NowMillis returns the current wall clock in Unix milliseconds, the
// timestamp unit used throughout the sync protocol.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// Newer reports whether incoming should replace existing under LWW.
// A nil existing entity loses to any incoming entity.
func Newer(incoming, existing Entity) bool {
	if incoming == nil {
		return false
	}
	if existing == nil {
		return true
	}
	return incoming.UpdatedAtMillis() > existing.UpdatedAtMillis()
}
