// Package jobs defines River Queue job types for async processing.
//
// Transition side effects ride a durable queue: the coordinator enqueues
// in the same transaction that commits the stage change, so a crash
// between commit and effect execution loses nothing.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"dealpipe.io/dealpipe/internal/domain"
	"dealpipe.io/dealpipe/internal/pipeline"
	"dealpipe.io/dealpipe/internal/pkg/logger"
)

// QueueEffects is the queue for post-commit transition effects.
const QueueEffects = "pipeline_effects"

// TransitionEffectsArgs carries the committed transition event. The
// event is self-contained so the worker needs no read-back of the deal.
type TransitionEffectsArgs struct {
	Event domain.TransitionEvent `json:"event"`
}

// Kind returns the job kind identifier for transition effects.
func (TransitionEffectsArgs) Kind() string { return "transition_effects" }

// InsertOpts returns default insert options for transition effect jobs.
func (TransitionEffectsArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       QueueEffects,
		MaxAttempts: 5,
		UniqueOpts: river.UniqueOpts{
			ByArgs:  true,
			ByQueue: true,
		},
	}
}

// MetricRecorder records the stage-duration metric for a committed move.
type MetricRecorder interface {
	OnTransition(ctx context.Context, dealID string, exitedStage domain.Stage, enteredAt, exitedAt time.Time) error
}

// EventDispatcher fans a committed transition out to its notification
// targets.
type EventDispatcher interface {
	OnTransition(ctx context.Context, snap *pipeline.Snapshot, event *domain.TransitionEvent)
}

// TransitionEffectsWorker runs the post-commit effects of one committed
// transition: the stage-duration metric and the notification dispatch.
//
// Delivery is at-least-once. Metric writes are idempotent by natural
// key; notification failures are swallowed by the dispatcher, so a retry
// re-runs only what genuinely failed.
type TransitionEffectsWorker struct {
	river.WorkerDefaults[TransitionEffectsArgs]
	registry   *pipeline.Registry
	calculator MetricRecorder
	dispatcher EventDispatcher
}

// NewTransitionEffectsWorker creates the effects worker.
func NewTransitionEffectsWorker(registry *pipeline.Registry, calculator MetricRecorder, dispatcher EventDispatcher) *TransitionEffectsWorker {
	return &TransitionEffectsWorker{registry: registry, calculator: calculator, dispatcher: dispatcher}
}

// Work executes the effects for one committed transition.
func (w *TransitionEffectsWorker) Work(ctx context.Context, job *river.Job[TransitionEffectsArgs]) error {
	event := job.Args.Event

	logger.Info("Processing transition effects",
		zap.String("deal_id", event.DealID),
		zap.String("from_stage", string(event.FromStage)),
		zap.String("to_stage", string(event.ToStage)),
		zap.Int("attempt", job.Attempt),
	)

	if err := w.calculator.OnTransition(ctx, event.DealID, event.FromStage, event.EnteredFromAt, event.OccurredAt); err != nil {
		return fmt.Errorf("record stage metric for deal %s: %w", event.DealID, err)
	}

	// Best-effort from here: the dispatcher logs its own failures.
	w.dispatcher.OnTransition(ctx, w.registry.Snapshot(), &event)

	return nil
}
