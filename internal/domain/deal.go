// Package domain provides domain models for the deal pipeline.
//
// Repository methods return domain types, never raw database rows.
package domain

import "time"

// SalesStatus tracks the terminal-outcome axis of a deal, kept consistent
// with terminal stages by auto-correction on transition.
type SalesStatus string

const (
	SalesStatusOpen SalesStatus = "open"
	SalesStatusWon  SalesStatus = "won"
	SalesStatusLost SalesStatus = "lost"
)

// Deal represents a record moving through the pipeline.
type Deal struct {
	ID                string      `json:"id"`
	Name              string      `json:"name"`
	Stage             Stage       `json:"stage"`
	StageEnteredAt    time.Time   `json:"stage_entered_at"`
	Amount            float64     `json:"amount"`
	Probability       int         `json:"probability"`
	ExpectedCloseDate *time.Time  `json:"expected_close_date,omitempty"`
	AccountID         *string     `json:"account_id,omitempty"`
	AssignedTo        string      `json:"assigned_to"`
	SalesStatus       SalesStatus `json:"sales_status"`
	Version           int64       `json:"version"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
	DeletedAt         *time.Time  `json:"-"`
}

// HasAccount reports whether the deal carries an account reference.
func (d *Deal) HasAccount() bool {
	return d.AccountID != nil && *d.AccountID != ""
}

// DaysInStage returns whole days elapsed since the deal entered its
// current stage.
func (d *Deal) DaysInStage(now time.Time) int {
	if d.StageEnteredAt.IsZero() {
		return 0
	}
	days := int(now.Sub(d.StageEnteredAt).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// DealList represents a paginated list of deals.
type DealList struct {
	Items      []*Deal `json:"items"`
	TotalCount int     `json:"total_count"`
}

// StageHistoryEntry is one append-only row per committed transition.
// FromStage is nil for a deal's first entry.
type StageHistoryEntry struct {
	ID         string    `json:"id"`
	DealID     string    `json:"deal_id"`
	FromStage  *Stage    `json:"from_stage,omitempty"`
	ToStage    Stage     `json:"to_stage"`
	Actor      string    `json:"actor"`
	Note       string    `json:"note,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// StageMetric records the whole days a deal spent in the stage it just
// exited. Derived data; rebuildable from history.
type StageMetric struct {
	ID           int64     `json:"id"`
	DealID       string    `json:"deal_id"`
	Stage        Stage     `json:"stage"`
	DurationDays int       `json:"duration_days"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// StageVelocity aggregates metric rows for one stage.
type StageVelocity struct {
	Stage       Stage   `json:"stage"`
	Transitions int     `json:"transitions"`
	AvgDays     float64 `json:"avg_days"`
	MinDays     int     `json:"min_days"`
	MaxDays     int     `json:"max_days"`
}

// Notification is an in-app inbox row.
type Notification struct {
	ID           string    `json:"id"`
	Recipient    string    `json:"recipient"`
	Type         string    `json:"type"`
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	ResourceType string    `json:"resource_type,omitempty"`
	ResourceID   string    `json:"resource_id,omitempty"`
	Read         bool      `json:"read"`
	CreatedAt    time.Time `json:"created_at"`
}
