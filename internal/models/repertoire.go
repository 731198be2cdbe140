package models

// RepertoireStatus tracks how far along a piece is.
type RepertoireStatus string

const (
	RepertoireLearning   RepertoireStatus = "learning"
	RepertoirePolishing  RepertoireStatus = "polishing"
	RepertoirePerformance RepertoireStatus = "performance_ready"
	RepertoireRetired    RepertoireStatus = "retired"
)

// RepertoireItem is a piece in the user's repertoire.
type RepertoireItem struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Composer  string           `json:"composer,omitempty"`
	Status    RepertoireStatus `json:"status"`
	Tags      []string         `json:"tags"`
	CreatedAt int64            `json:"createdAt"`
	UpdatedAt int64            `json:"updatedAt"`
}

// EntityID implements Entity.
func (r *RepertoireItem) EntityID() string {
	return r.ID
}

// UpdatedAtMillis implements Entity.
func (r *RepertoireItem) UpdatedAtMillis() int64 {
	return r.UpdatedAt
}

// Touch updates the UpdatedAt timestamp.
func (r *RepertoireItem) Touch() {
	r.UpdatedAt = NowMillis()
}

// Normalize applies storage-boundary defaults: absent tag lists become
// empty slices, an absent status defaults to learning, zero timestamps
// default to now.
func (r *RepertoireItem) Normalize() {
	if r.Tags == nil {
		r.Tags = []string{}
	}
	if r.Status == "" {
		r.Status = RepertoireLearning
	}
	if r.CreatedAt == 0 {
		r.CreatedAt = NowMillis()
	}
	if r.UpdatedAt == 0 {
		r.UpdatedAt = r.CreatedAt
	}
}
