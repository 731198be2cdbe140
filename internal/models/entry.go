package models

import "time"

// LogbookEntry is a single recorded practice session.
type LogbookEntry struct {
	ID        string   `json:"id"`
	Piece     string   `json:"piece"`
	Minutes   int      `json:"minutes"`
	Tempo     int      `json:"tempo,omitempty"` // metronome marking, 0 = unset
	Notes     string   `json:"notes,omitempty"`
	Tags      []string `json:"tags"`
	PracticedOn string `json:"practicedOn"` // YYYY-MM-DD
	CreatedAt int64    `json:"createdAt"`
	UpdatedAt int64    `json:"updatedAt"`
}

// EntityID implements Entity.
func (e *LogbookEntry) EntityID() string {
	return e.ID
}

// UpdatedAtMillis implements Entity.
func (e *LogbookEntry) UpdatedAtMillis() int64 {
	return e.UpdatedAt
}

// Touch updates the UpdatedAt timestamp.
func (e *LogbookEntry) Touch() {
	e.UpdatedAt = NowMillis()
}

// Normalize applies storage-boundary defaults to fields the wire or the
// local store may legitimately omit: absent tag lists become empty
// slices, zero timestamps default to now, an absent PracticedOn defaults
// to the creation date.
func (e *LogbookEntry) Normalize() {
	if e.Tags == nil {
		e.Tags = []string{}
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = NowMillis()
	}
	if e.UpdatedAt == 0 {
		e.UpdatedAt = e.CreatedAt
	}
	if e.PracticedOn == "" {
		e.PracticedOn = time.UnixMilli(e.CreatedAt).Format("2006-01-02")
	}
}
