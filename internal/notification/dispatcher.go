package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"dealpipe.io/dealpipe/internal/domain"
	"dealpipe.io/dealpipe/internal/pipeline"
	"dealpipe.io/dealpipe/internal/pkg/logger"
	"dealpipe.io/dealpipe/internal/pkg/worker"
)

// Dispatcher routes committed transition events to the inbox and the
// external delivery collaborator according to the configured
// notification rules. External deliveries fan out through the notify
// worker pool; one slow recipient does not serialize the rest. All
// failures stop at this boundary.
type Dispatcher struct {
	sender    Sender
	deliverer Deliverer
	pool      *worker.Pool
}

// NewDispatcher creates a transition notification dispatcher.
func NewDispatcher(sender Sender, deliverer Deliverer, pool *worker.Pool) *Dispatcher {
	return &Dispatcher{sender: sender, deliverer: deliverer, pool: pool}
}

// OnTransition fires the alerts a committed transition warrants. Never
// returns an error: a missed notification must not fail the transition's
// effects pipeline.
func (d *Dispatcher) OnTransition(ctx context.Context, snap *pipeline.Snapshot, event *domain.TransitionEvent) {
	for _, rule := range snap.Rules() {
		if !ruleMatches(rule, event.FromStage, event.ToStage) {
			continue
		}
		d.fire(ctx, snap, rule, event)
	}
}

// ruleMatches checks a rule against a transition pair. A nil FromStage
// matches any move into the target.
func ruleMatches(rule pipeline.NotificationRule, from, to domain.Stage) bool {
	if rule.ToStage != to {
		return false
	}
	return rule.FromStage == nil || *rule.FromStage == from
}

func (d *Dispatcher) fire(ctx context.Context, snap *pipeline.Snapshot, rule pipeline.NotificationRule, event *domain.TransitionEvent) {
	title, message := composeMessage(snap, event)

	recipients := append([]string(nil), rule.Recipients...)
	if rule.NotifyAssignee && event.AssignedTo != "" {
		recipients = append(recipients, event.AssignedTo)
	}
	recipients = dedupe(recipients)
	if len(recipients) == 0 {
		return
	}

	if err := d.sender.SendToMany(ctx, recipients, Params{
		Type:         TypeStageTransition,
		Title:        title,
		Message:      message,
		ResourceType: "deal",
		ResourceID:   event.DealID,
	}); err != nil {
		logger.Warn("transition inbox notification failed",
			zap.String("deal_id", event.DealID),
			zap.Error(err),
		)
	}

	var wg sync.WaitGroup
	for _, recipient := range recipients {
		wg.Add(1)
		err := d.pool.Submit(ctx, func(ctx context.Context) {
			defer wg.Done()
			if err := d.deliverer.Deliver(ctx, recipient, title, message); err != nil {
				logger.Warn("external transition delivery failed",
					zap.String("deal_id", event.DealID),
					zap.String("recipient", recipient),
					zap.Error(err),
				)
			}
		})
		if err != nil {
			wg.Done()
			logger.Warn("external transition delivery not scheduled",
				zap.String("deal_id", event.DealID),
				zap.String("recipient", recipient),
				zap.Error(err),
			)
		}
	}
	wg.Wait()
}

func composeMessage(snap *pipeline.Snapshot, event *domain.TransitionEvent) (title, message string) {
	fromName := stageName(snap, event.FromStage)
	toName := stageName(snap, event.ToStage)

	title = fmt.Sprintf("Deal %s moved to %s", event.DealName, toName)
	message = fmt.Sprintf("%s moved %q from %s to %s at %s",
		event.Actor, event.DealName, fromName, toName,
		event.OccurredAt.UTC().Format(time.RFC3339))
	if event.Note != "" {
		message += fmt.Sprintf(" (note: %s)", event.Note)
	}
	return title, message
}

func stageName(snap *pipeline.Snapshot, id domain.Stage) string {
	if cfg, err := snap.Get(id); err == nil {
		return cfg.DisplayName
	}
	return string(id)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
