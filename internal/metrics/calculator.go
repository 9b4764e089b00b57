// Package metrics derives stage-duration and staleness data from
// committed transitions. Derived rows are not authoritative; they can be
// rebuilt from stage history.
package metrics

import (
	"context"
	"fmt"
	"time"

	"dealpipe.io/dealpipe/internal/domain"
	"dealpipe.io/dealpipe/internal/pipeline"
	"dealpipe.io/dealpipe/internal/repository"
)

// Calculator records stage durations and classifies staleness.
type Calculator struct {
	metrics *repository.MetricRepo
}

// NewCalculator creates a metrics calculator.
func NewCalculator(metrics *repository.MetricRepo) *Calculator {
	return &Calculator{metrics: metrics}
}

// OnTransition stores the whole days the deal spent in the stage it just
// exited. Idempotent under retry: the repo suppresses duplicate keys.
func (c *Calculator) OnTransition(ctx context.Context, dealID string, exitedStage domain.Stage, enteredAt, exitedAt time.Time) error {
	if exitedAt.Before(enteredAt) {
		return fmt.Errorf("stage exit %s precedes entry %s for deal %s",
			exitedAt.Format(time.RFC3339), enteredAt.Format(time.RFC3339), dealID)
	}
	return c.metrics.Record(ctx, &domain.StageMetric{
		DealID:       dealID,
		Stage:        exitedStage,
		DurationDays: DurationDays(enteredAt, exitedAt),
		RecordedAt:   exitedAt,
	})
}

// Velocity returns per-stage duration statistics.
func (c *Calculator) Velocity(ctx context.Context) ([]*domain.StageVelocity, error) {
	return c.metrics.Velocity(ctx)
}

// DurationDays returns whole days between entry and exit, truncated.
func DurationDays(enteredAt, exitedAt time.Time) int {
	days := int(exitedAt.Sub(enteredAt).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// ClassifyStaleness grades days-in-stage against the stage's thresholds.
// A nil threshold means the stage never reaches that grade.
func ClassifyStaleness(cfg *pipeline.StageConfig, daysInStage int) domain.Staleness {
	if cfg.CriticalDays != nil && daysInStage >= *cfg.CriticalDays {
		return domain.StalenessCritical
	}
	if cfg.WarningDays != nil && daysInStage >= *cfg.WarningDays {
		return domain.StalenessWarning
	}
	return domain.StalenessNormal
}
