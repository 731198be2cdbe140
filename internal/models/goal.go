package models

// Goal is a practice goal with a progress percentage.
type Goal struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	TargetDate string `json:"targetDate,omitempty"` // YYYY-MM-DD
	Progress   int    `json:"progress"`             // 0-100
	Completed  bool   `json:"completed"`
	CreatedAt  int64  `json:"createdAt"`
	UpdatedAt  int64  `json:"updatedAt"`
}

// EntityID implements Entity.
func (g *Goal) EntityID() string {
	return g.ID
}

// UpdatedAtMillis implements Entity.
func (g *Goal) UpdatedAtMillis() int64 {
	return g.UpdatedAt
}

// Touch updates the UpdatedAt timestamp.
func (g *Goal) Touch() {
	g.UpdatedAt = NowMillis()
}

// Normalize applies storage-boundary defaults and clamps progress into
// the 0-100 range.
func (g *Goal) Normalize() {
	if g.Progress < 0 {
		g.Progress = 0
	}
	if g.Progress > 100 {
		g.Progress = 100
	}
	if g.Progress == 100 {
		g.Completed = true
	}
	if g.CreatedAt == 0 {
		g.CreatedAt = NowMillis()
	}
	if g.UpdatedAt == 0 {
		g.UpdatedAt = g.CreatedAt
	}
}
