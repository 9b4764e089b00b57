package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"dealpipe.io/dealpipe/internal/domain"
	"dealpipe.io/dealpipe/internal/metrics"
	"dealpipe.io/dealpipe/internal/notification"
	"dealpipe.io/dealpipe/internal/pipeline"
	"dealpipe.io/dealpipe/internal/pkg/logger"
)

// StaleSweepArgs is a periodic maintenance job that classifies active
// deals against their stage's staleness thresholds and alerts assignees
// of newly critical deals.
type StaleSweepArgs struct{}

// Kind returns the job kind identifier for the periodic stale sweep.
func (StaleSweepArgs) Kind() string { return "stale_sweep" }

// InsertOpts ensures at most one sweep is enqueued per hour.
func (StaleSweepArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 1,
		UniqueOpts: river.UniqueOpts{
			ByPeriod: time.Hour,
			ByQueue:  true,
			ByArgs:   true,
		},
	}
}

// StaleDealLister supplies the deals the sweep inspects.
type StaleDealLister interface {
	ListActive(ctx context.Context) ([]*domain.Deal, error)
}

// StaleAlertChecker reports whether an alert was already raised for a
// deal since it entered its current stage.
type StaleAlertChecker interface {
	ExistsSince(ctx context.Context, recipient, ntype, resourceID string, since time.Time) (bool, error)
}

// StaleSweepWorker scans the pipeline for critical deals.
type StaleSweepWorker struct {
	river.WorkerDefaults[StaleSweepArgs]
	registry *pipeline.Registry
	deals    StaleDealLister
	checker  StaleAlertChecker
	sender   notification.Sender
	now      func() time.Time
}

// NewStaleSweepWorker creates a stale sweep worker.
func NewStaleSweepWorker(registry *pipeline.Registry, deals StaleDealLister, checker StaleAlertChecker, sender notification.Sender) *StaleSweepWorker {
	return &StaleSweepWorker{
		registry: registry,
		deals:    deals,
		checker:  checker,
		sender:   sender,
		now:      time.Now,
	}
}

// Work classifies every active deal and alerts assignees of deals that
// crossed their stage's critical threshold. One alert per deal per stage
// stay: re-runs skip deals already alerted since stage entry.
func (w *StaleSweepWorker) Work(ctx context.Context, _ *river.Job[StaleSweepArgs]) error {
	snap := w.registry.Snapshot()
	deals, err := w.deals.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list deals for stale sweep: %w", err)
	}

	now := w.now().UTC()
	var alerted, critical int
	for _, deal := range deals {
		cfg, err := snap.Get(deal.Stage)
		if err != nil {
			logger.Warn("stale sweep skipping deal in unknown stage",
				zap.String("deal_id", deal.ID),
				zap.String("stage", string(deal.Stage)),
			)
			continue
		}

		days := deal.DaysInStage(now)
		if metrics.ClassifyStaleness(cfg, days) != domain.StalenessCritical {
			continue
		}
		critical++

		if deal.AssignedTo == "" {
			continue
		}
		already, err := w.checker.ExistsSince(ctx, deal.AssignedTo, notification.TypeStaleDeal, deal.ID, deal.StageEnteredAt)
		if err != nil {
			return fmt.Errorf("check prior stale alert for deal %s: %w", deal.ID, err)
		}
		if already {
			continue
		}

		err = w.sender.Send(ctx, notification.Params{
			RecipientID:  deal.AssignedTo,
			Type:         notification.TypeStaleDeal,
			Title:        fmt.Sprintf("Deal %s is stale in %s", deal.Name, cfg.DisplayName),
			Message:      fmt.Sprintf("%q has been in %s for %d days (critical threshold %d)", deal.Name, cfg.DisplayName, days, *cfg.CriticalDays),
			ResourceType: "deal",
			ResourceID:   deal.ID,
		})
		if err != nil {
			logger.Warn("stale alert delivery failed",
				zap.String("deal_id", deal.ID),
				zap.String("recipient", deal.AssignedTo),
				zap.Error(err),
			)
			continue
		}
		alerted++
	}

	logger.Info("stale sweep completed",
		zap.Int("deals_scanned", len(deals)),
		zap.Int("critical", critical),
		zap.Int("alerted", alerted),
	)
	return nil
}
