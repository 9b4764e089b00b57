package pipeline

import (
	"context"

	"dealpipe.io/dealpipe/internal/domain"
)

// StageCounter counts active deals occupying a stage, excluding the deal
// being moved. Implementations run inside the coordinator's transaction
// so the count is serialized against concurrent movers.
type StageCounter interface {
	CountActive(ctx context.Context, stage domain.Stage, excludingDealID string) (int, error)
}

// CapacityCheck is the outcome of a WIP limit check.
type CapacityCheck struct {
	Allowed bool
	// Skipped is true when no limit applies (nil limit, terminal target,
	// or same-stage no-op).
	Skipped bool
	Current int
	Limit   int
}

// Enforcer applies per-stage WIP limits.
type Enforcer struct {
	counter StageCounter
}

// NewEnforcer creates a WIP limit enforcer backed by the given counter.
func NewEnforcer(counter StageCounter) *Enforcer {
	return &Enforcer{counter: counter}
}

// CheckCapacity checks whether a deal may enter toStage. The deal being
// moved is excluded from the occupancy count so re-entry never
// self-blocks.
func (e *Enforcer) CheckCapacity(ctx context.Context, snap *Snapshot, dealID string, from, to domain.Stage) (CapacityCheck, error) {
	if from == to {
		return CapacityCheck{Allowed: true, Skipped: true}, nil
	}

	toCfg, err := snap.Get(to)
	if err != nil {
		return CapacityCheck{}, err
	}
	if toCfg.Terminal() || toCfg.WIPLimit == nil {
		return CapacityCheck{Allowed: true, Skipped: true}, nil
	}

	limit := *toCfg.WIPLimit
	current, err := e.counter.CountActive(ctx, to, dealID)
	if err != nil {
		return CapacityCheck{}, err
	}

	return CapacityCheck{
		Allowed: current < limit,
		Current: current,
		Limit:   limit,
	}, nil
}
