package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dealpipe.io/dealpipe/internal/domain"
	"dealpipe.io/dealpipe/internal/notification"
	"dealpipe.io/dealpipe/internal/pipeline"
	"dealpipe.io/dealpipe/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

var sweepNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type sweepLister struct {
	deals []*domain.Deal
}

func (l sweepLister) ListActive(context.Context) ([]*domain.Deal, error) {
	return l.deals, nil
}

type sweepChecker struct {
	existing map[string]bool // keyed by resource id
}

func (c sweepChecker) ExistsSince(_ context.Context, _, _, resourceID string, _ time.Time) (bool, error) {
	return c.existing[resourceID], nil
}

type sweepSender struct {
	sent []notification.Params
}

func (s *sweepSender) Send(_ context.Context, p notification.Params) error {
	s.sent = append(s.sent, p)
	return nil
}

func (s *sweepSender) SendToMany(ctx context.Context, recipients []string, p notification.Params) error {
	for _, r := range recipients {
		pp := p
		pp.RecipientID = r
		if err := s.Send(ctx, pp); err != nil {
			return err
		}
	}
	return nil
}

func newSweepWorker(t *testing.T, deals []*domain.Deal, existing map[string]bool, sender notification.Sender) *StaleSweepWorker {
	t.Helper()
	reg, err := pipeline.NewRegistry("")
	require.NoError(t, err)

	w := NewStaleSweepWorker(reg, sweepLister{deals: deals}, sweepChecker{existing: existing}, sender)
	w.now = func() time.Time { return sweepNow }
	return w
}

func TestStaleSweepArgsKind(t *testing.T) {
	t.Parallel()

	require.Equal(t, "stale_sweep", StaleSweepArgs{}.Kind())
}

func TestStaleSweepWorker_AlertsCriticalDeals(t *testing.T) {
	// Screening: warning 14, critical 30
	deals := []*domain.Deal{
		{ID: "fresh", Name: "Fresh", Stage: domain.StageScreening, AssignedTo: "u1",
			StageEnteredAt: sweepNow.AddDate(0, 0, -5)},
		{ID: "warned", Name: "Warned", Stage: domain.StageScreening, AssignedTo: "u1",
			StageEnteredAt: sweepNow.AddDate(0, 0, -20)},
		{ID: "crit", Name: "Critical", Stage: domain.StageScreening, AssignedTo: "u2",
			StageEnteredAt: sweepNow.AddDate(0, 0, -40)},
	}

	sender := &sweepSender{}
	w := newSweepWorker(t, deals, nil, sender)

	require.NoError(t, w.Work(context.Background(), nil))
	require.Len(t, sender.sent, 1)
	require.Equal(t, "u2", sender.sent[0].RecipientID)
	require.Equal(t, notification.TypeStaleDeal, sender.sent[0].Type)
	require.Equal(t, "crit", sender.sent[0].ResourceID)
	require.Contains(t, sender.sent[0].Message, "40 days")
}

func TestStaleSweepWorker_SkipsAlreadyAlerted(t *testing.T) {
	deals := []*domain.Deal{
		{ID: "crit", Name: "Critical", Stage: domain.StageScreening, AssignedTo: "u2",
			StageEnteredAt: sweepNow.AddDate(0, 0, -40)},
	}

	sender := &sweepSender{}
	w := newSweepWorker(t, deals, map[string]bool{"crit": true}, sender)

	require.NoError(t, w.Work(context.Background(), nil))
	require.Empty(t, sender.sent)
}

func TestStaleSweepWorker_SkipsUnassignedAndUnknownStage(t *testing.T) {
	deals := []*domain.Deal{
		{ID: "unassigned", Name: "Nobody", Stage: domain.StageScreening,
			StageEnteredAt: sweepNow.AddDate(0, 0, -40)},
		{ID: "ghost", Name: "Ghost", Stage: "decommissioned", AssignedTo: "u1",
			StageEnteredAt: sweepNow.AddDate(0, 0, -400)},
	}

	sender := &sweepSender{}
	w := newSweepWorker(t, deals, nil, sender)

	require.NoError(t, w.Work(context.Background(), nil))
	require.Empty(t, sender.sent)
}

func TestStaleSweepWorker_TerminalWonNeverStale(t *testing.T) {
	deals := []*domain.Deal{
		{ID: "won", Name: "Won", Stage: domain.StageClosedOwnedStable, AssignedTo: "u1",
			StageEnteredAt: sweepNow.AddDate(-3, 0, 0)},
	}

	sender := &sweepSender{}
	w := newSweepWorker(t, deals, nil, sender)

	require.NoError(t, w.Work(context.Background(), nil))
	require.Empty(t, sender.sent)
}
