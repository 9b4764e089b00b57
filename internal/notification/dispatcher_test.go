package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dealpipe.io/dealpipe/internal/domain"
	"dealpipe.io/dealpipe/internal/pipeline"
	"dealpipe.io/dealpipe/internal/pkg/logger"
	"dealpipe.io/dealpipe/internal/pkg/worker"
)

func init() {
	_ = logger.Init("error", "json")
}

type fakeSender struct {
	sent []Params
	err  error
}

func (f *fakeSender) Send(_ context.Context, p Params) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, p)
	return nil
}

func (f *fakeSender) SendToMany(ctx context.Context, recipients []string, p Params) error {
	for _, r := range recipients {
		pp := p
		pp.RecipientID = r
		if err := f.Send(ctx, pp); err != nil {
			return err
		}
	}
	return nil
}

// fakeDeliverer is called from notify pool workers, so it locks.
type fakeDeliverer struct {
	mu        sync.Mutex
	delivered []string
	err       error
}

func (f *fakeDeliverer) Deliver(_ context.Context, recipient, _, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, recipient)
	return nil
}

func (f *fakeDeliverer) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.delivered...)
}

func notifyPool(t *testing.T) *worker.Pool {
	t.Helper()
	pools, err := worker.NewPools(context.Background(), worker.DefaultPoolConfig())
	require.NoError(t, err)
	t.Cleanup(pools.Shutdown)
	return pools.Notify
}

// snapshotWithRules pairs the default stage set with custom notification
// rules.
func snapshotWithRules(t *testing.T, rules []pipeline.NotificationRule) *pipeline.Snapshot {
	t.Helper()
	reg, err := pipeline.NewRegistry("")
	require.NoError(t, err)
	return reg.Snapshot().WithRules(rules)
}

func testEvent() *domain.TransitionEvent {
	return &domain.TransitionEvent{
		DealID:     "deal-1",
		DealName:   "Acme Holdings",
		FromStage:  domain.StageClosing,
		ToStage:    domain.StageClosedOwned90Day,
		Actor:      "user-1",
		AssignedTo: "user-2",
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRuleMatches(t *testing.T) {
	closing := domain.StageClosing
	tests := []struct {
		name string
		rule pipeline.NotificationRule
		from domain.Stage
		to   domain.Stage
		want bool
	}{
		{
			name: "exact pair",
			rule: pipeline.NotificationRule{FromStage: &closing, ToStage: domain.StageClosedOwned90Day},
			from: domain.StageClosing, to: domain.StageClosedOwned90Day,
			want: true,
		},
		{
			name: "pair with wrong from",
			rule: pipeline.NotificationRule{FromStage: &closing, ToStage: domain.StageClosedOwned90Day},
			from: domain.StageFinancing, to: domain.StageClosedOwned90Day,
			want: false,
		},
		{
			name: "target-only matches any from",
			rule: pipeline.NotificationRule{ToStage: domain.StageUnavailable},
			from: domain.StageSourcing, to: domain.StageUnavailable,
			want: true,
		},
		{
			name: "target-only wrong target",
			rule: pipeline.NotificationRule{ToStage: domain.StageUnavailable},
			from: domain.StageSourcing, to: domain.StageScreening,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ruleMatches(tt.rule, tt.from, tt.to))
		})
	}
}

func TestDispatcher_OnTransition(t *testing.T) {
	snap := snapshotWithRules(t, []pipeline.NotificationRule{
		{ToStage: domain.StageClosedOwned90Day, NotifyAssignee: true, Recipients: []string{"partner-desk"}},
	})

	sender := &fakeSender{}
	deliverer := &fakeDeliverer{}
	d := NewDispatcher(sender, deliverer, notifyPool(t))

	d.OnTransition(context.Background(), snap, testEvent())

	require.Len(t, sender.sent, 2)
	recipients := []string{sender.sent[0].RecipientID, sender.sent[1].RecipientID}
	require.ElementsMatch(t, []string{"partner-desk", "user-2"}, recipients)
	require.Equal(t, TypeStageTransition, sender.sent[0].Type)
	require.Contains(t, sender.sent[0].Title, "Closed/Owned (90 Day)")
	require.Contains(t, sender.sent[0].Message, "Acme Holdings")
	require.ElementsMatch(t, []string{"partner-desk", "user-2"}, deliverer.recipients())
}

func TestDispatcher_NoMatchingRule(t *testing.T) {
	snap := snapshotWithRules(t, []pipeline.NotificationRule{
		{ToStage: domain.StageUnavailable},
	})

	sender := &fakeSender{}
	deliverer := &fakeDeliverer{}
	NewDispatcher(sender, deliverer, notifyPool(t)).OnTransition(context.Background(), snap, testEvent())

	require.Empty(t, sender.sent)
	require.Empty(t, deliverer.recipients())
}

func TestDispatcher_FailuresDoNotPropagate(t *testing.T) {
	snap := snapshotWithRules(t, []pipeline.NotificationRule{
		{ToStage: domain.StageClosedOwned90Day, NotifyAssignee: true},
	})

	sender := &fakeSender{err: errors.New("inbox down")}
	deliverer := &fakeDeliverer{err: errors.New("smtp down")}

	// Must not panic or surface errors.
	NewDispatcher(sender, deliverer, notifyPool(t)).OnTransition(context.Background(), snap, testEvent())
}

func TestDispatcher_DeliveryFansOutThroughPool(t *testing.T) {
	snap := snapshotWithRules(t, []pipeline.NotificationRule{
		{ToStage: domain.StageClosedOwned90Day, Recipients: []string{"r1", "r2", "r3", "r4", "r5"}},
	})

	sender := &fakeSender{}
	deliverer := &fakeDeliverer{}
	event := testEvent()
	event.AssignedTo = ""

	NewDispatcher(sender, deliverer, notifyPool(t)).OnTransition(context.Background(), snap, event)

	// OnTransition blocks until every pooled delivery finished.
	require.ElementsMatch(t, []string{"r1", "r2", "r3", "r4", "r5"}, deliverer.recipients())
}

func TestDispatcher_DedupesRecipients(t *testing.T) {
	snap := snapshotWithRules(t, []pipeline.NotificationRule{
		{ToStage: domain.StageClosedOwned90Day, NotifyAssignee: true, Recipients: []string{"user-2", "user-2"}},
	})

	sender := &fakeSender{}
	deliverer := &fakeDeliverer{}
	NewDispatcher(sender, deliverer, notifyPool(t)).OnTransition(context.Background(), snap, testEvent())

	require.Len(t, sender.sent, 1)
	require.Equal(t, "user-2", sender.sent[0].RecipientID)
}
