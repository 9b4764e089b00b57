package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDeal_HasAccount(t *testing.T) {
	acct := "acct-1"
	empty := ""

	tests := []struct {
		name string
		deal Deal
		want bool
	}{
		{"nil account", Deal{}, false},
		{"empty account", Deal{AccountID: &empty}, false},
		{"set account", Deal{AccountID: &acct}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.deal.HasAccount())
		})
	}
}

func TestDeal_DaysInStage(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		enteredAt time.Time
		want      int
	}{
		{"zero time", time.Time{}, 0},
		{"same day", now.Add(-6 * time.Hour), 0},
		{"partial days truncate", now.Add(-36 * time.Hour), 1},
		{"exact days", now.AddDate(0, 0, -14), 14},
		{"future entry clamps to zero", now.Add(12 * time.Hour), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Deal{StageEnteredAt: tt.enteredAt}
			require.Equal(t, tt.want, d.DaysInStage(now))
		})
	}
}

func TestStageClass_Terminal(t *testing.T) {
	require.False(t, StageClassOpen.Terminal())
	require.True(t, StageClassWon.Terminal())
	require.True(t, StageClassLost.Terminal())
}

func TestTransitionEvent_ToJSON(t *testing.T) {
	ts := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	event := TransitionEvent{
		DealID:        "deal-1",
		DealName:      "Acme Holdings",
		FromStage:     StageScreening,
		ToStage:       StageDueDiligence,
		Actor:         "user-1",
		AssignedTo:    "user-2",
		Note:          "cleared screening",
		EnteredFromAt: ts.AddDate(0, 0, -7),
		OccurredAt:    ts,
	}

	data, err := event.ToJSON()
	require.NoError(t, err)

	var decoded TransitionEvent
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, event.DealID, decoded.DealID)
	require.Equal(t, event.FromStage, decoded.FromStage)
	require.Equal(t, event.ToStage, decoded.ToStage)
	require.Equal(t, event.OccurredAt.UTC(), decoded.OccurredAt.UTC())
}
