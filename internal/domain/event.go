package domain

import (
	"encoding/json"
	"time"
)

// TransitionEvent describes one committed stage change. It is the payload
// handed to the post-commit effects pipeline (metrics, notifications) and
// is durable: the coordinator enqueues it in the same transaction that
// commits the stage change.
type TransitionEvent struct {
	DealID         string    `json:"deal_id"`
	DealName       string    `json:"deal_name"`
	FromStage      Stage     `json:"from_stage"`
	ToStage        Stage     `json:"to_stage"`
	Actor          string    `json:"actor"`
	AssignedTo     string    `json:"assigned_to"`
	Note           string    `json:"note,omitempty"`
	EnteredFromAt  time.Time `json:"entered_from_at"` // when the deal entered FromStage
	OccurredAt     time.Time `json:"occurred_at"`
	OverrideUsed   bool      `json:"override_used,omitempty"`
	OverrideActor  string    `json:"override_actor,omitempty"`
	CapacityAtMove int       `json:"capacity_at_move,omitempty"`
	CapacityLimit  int       `json:"capacity_limit,omitempty"`
}

// ToJSON converts the event to JSON bytes.
func (e TransitionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
