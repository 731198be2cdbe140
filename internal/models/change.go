// Package models provides data model definitions for Cadenza.
package models

import (
	"encoding/json"
	"time"
)

// ChangeType classifies a pending local mutation.
type ChangeType string

const (
	ChangeCreated ChangeType = "CREATED"
	ChangeUpdated ChangeType = "UPDATED"
	ChangeDeleted ChangeType = "DELETED"
)

// EntityType discriminates the domain entity a change applies to.
type EntityType string

const (
	EntityLogbookEntry   EntityType = "logbook_entry"
	EntityRepertoireItem EntityType = "repertoire_item"
	EntityGoal           EntityType = "goal"
)

// MaxRetries is the retry ceiling for a queued change. A change at or
// above the ceiling is excluded from transmission but kept for
// diagnostics.
const MaxRetries = 5

// ChangeRecord is a single pending local mutation awaiting transmission.
type ChangeRecord struct {
	ChangeID   string          `json:"changeId"`
	Type       ChangeType      `json:"type"`
	EntityType EntityType      `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Data       json.RawMessage `json:"data"`
	Timestamp  int64           `json:"timestamp"` // Unix milliseconds at enqueue
	RetryCount int             `json:"retryCount"`
}

// Viable reports whether the change is still eligible for transmission.
func (c *ChangeRecord) Viable() bool {
	return c.RetryCount < MaxRetries
}

// Time returns the enqueue timestamp as time.Time.
func (c *ChangeRecord) Time() time.Time {
	return time.UnixMilli(c.Timestamp)
}

// SyncMetadata is the singleton per-device sync checkpoint.
type SyncMetadata struct {
	LastKnownServerVersion int64  `json:"lastKnownServerVersion"`
	LastSyncTime           int64  `json:"lastSyncTime"` // Unix milliseconds
	DeviceID               string `json:"deviceId"`
}

// ConflictReport is a per-change rejection returned by the server.
type ConflictReport struct {
	ChangeID string `json:"changeId"`
	Reason   string `json:"reason"`
}
