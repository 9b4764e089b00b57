// Package usecase provides application use cases.
//
// The transition coordinator is the concurrency-critical core: the deal
// row lock, the capacity check, the stage write, the history insert, and
// the effects enqueue all commit in one pgx transaction.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"dealpipe.io/dealpipe/internal/domain"
	"dealpipe.io/dealpipe/internal/governance/audit"
	"dealpipe.io/dealpipe/internal/jobs"
	"dealpipe.io/dealpipe/internal/pipeline"
	apperrors "dealpipe.io/dealpipe/internal/pkg/errors"
	"dealpipe.io/dealpipe/internal/pkg/logger"
	"dealpipe.io/dealpipe/internal/repository"
)

// DefaultTransitionTimeout bounds one coordinator call. A store that
// hangs past it surfaces as STORE_UNAVAILABLE, never an ambiguous state.
const DefaultTransitionTimeout = 10 * time.Second

// TransitionRequest carries one stage move. The actor is explicit; the
// coordinator never reads ambient session state.
type TransitionRequest struct {
	DealID      string
	TargetStage domain.Stage
	Actor       string
	Note        string
	// CanOverrideWIP downgrades a capacity denial to a logged warning.
	CanOverrideWIP bool
}

// TransitionResult is the committed outcome.
type TransitionResult struct {
	Deal         *domain.Deal
	Warnings     []string
	NoOp         bool
	OverrideUsed bool
}

// TransitionCoordinator orchestrates single transitions.
type TransitionCoordinator struct {
	pool        *pgxpool.Pool
	riverClient *river.Client[pgx.Tx]
	registry    *pipeline.Registry
	validator   *pipeline.Validator
	deals       *repository.DealRepo
	history     *repository.HistoryRepo
	auditor     *audit.Logger
	timeout     time.Duration
	now         func() time.Time
}

// NewTransitionCoordinator creates the coordinator. A non-positive
// timeout falls back to the default.
func NewTransitionCoordinator(
	pool *pgxpool.Pool,
	riverClient *river.Client[pgx.Tx],
	registry *pipeline.Registry,
	validator *pipeline.Validator,
	deals *repository.DealRepo,
	history *repository.HistoryRepo,
	auditor *audit.Logger,
	timeout time.Duration,
) *TransitionCoordinator {
	if timeout <= 0 {
		timeout = DefaultTransitionTimeout
	}
	return &TransitionCoordinator{
		pool:        pool,
		riverClient: riverClient,
		registry:    registry,
		validator:   validator,
		deals:       deals,
		history:     history,
		auditor:     auditor,
		timeout:     timeout,
		now:         time.Now,
	}
}

// RequestTransition moves a deal to the target stage. Concurrent
// modification surfaces as CONFLICT after one transparent retry;
// everything up to commit is all-or-nothing.
func (c *TransitionCoordinator) RequestTransition(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var result *TransitionResult

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	attempt := func() error {
		r, err := c.attempt(ctx, req)
		if err != nil {
			if isRetryableConflict(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = r
		return nil
	}

	// One transparent retry on concurrent-modification conflicts; the
	// second conflict surfaces to the caller.
	err := backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(bo, 1), ctx))
	if err != nil {
		return nil, c.classifyError(err, req)
	}
	return result, nil
}

// attempt runs the full transition algorithm in one transaction.
func (c *TransitionCoordinator) attempt(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	snap := c.registry.Snapshot()

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Step 1: row lock serializes concurrent transitions per deal.
	deal, err := c.deals.GetForUpdateTx(ctx, tx, req.DealID)
	if err != nil {
		return nil, err
	}
	fromStage := deal.Stage

	// Step 2: same-stage no-op. No history, no effects, nothing written.
	if fromStage == req.TargetStage {
		return &TransitionResult{Deal: deal, NoOp: true}, nil
	}

	// Step 3: validate against the captured snapshot.
	verdict := c.validator.Validate(snap, deal, fromStage, req.TargetStage)
	if !verdict.OK {
		return nil, apperrors.ErrValidationFailed(verdict.Errors)
	}

	// Step 4: capacity. The advisory stage lock inside the counter
	// linearizes the count-and-increment per target stage.
	enforcer := pipeline.NewEnforcer(repository.TxCounter{Repo: c.deals, Tx: tx})
	check, err := enforcer.CheckCapacity(ctx, snap, deal.ID, fromStage, req.TargetStage)
	if err != nil {
		return nil, err
	}
	overrideUsed := false
	if !check.Allowed {
		if !req.CanOverrideWIP {
			toCfg, cfgErr := snap.Get(req.TargetStage)
			name := string(req.TargetStage)
			if cfgErr == nil {
				name = toCfg.DisplayName
			}
			return nil, apperrors.ErrCapacityExceededf(name, check.Current, check.Limit)
		}
		overrideUsed = true
		logger.Warn("WIP limit overridden",
			zap.String("deal_id", deal.ID),
			zap.String("stage", string(req.TargetStage)),
			zap.String("actor", req.Actor),
			zap.Int("current", check.Current),
			zap.Int("limit", check.Limit),
		)
	}

	// Step 5: apply corrections and the stage write.
	now := c.now().UTC()
	expectedVersion := deal.Version
	enteredFromAt := deal.StageEnteredAt

	if verdict.Corrections.Probability != nil {
		deal.Probability = *verdict.Corrections.Probability
	}
	if verdict.Corrections.SalesStatus != nil {
		deal.SalesStatus = *verdict.Corrections.SalesStatus
	}
	deal.Stage = req.TargetStage
	deal.StageEnteredAt = now
	deal.UpdatedAt = now

	if err := c.deals.UpdateStageTx(ctx, tx, deal, expectedVersion); err != nil {
		return nil, err
	}

	// Step 6: history rides the same transaction so committed stage
	// changes and their history entries can never diverge.
	historyID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate history id: %w", err)
	}
	if err := c.history.RecordTx(ctx, tx, &domain.StageHistoryEntry{
		ID:         historyID.String(),
		DealID:     deal.ID,
		FromStage:  &fromStage,
		ToStage:    req.TargetStage,
		Actor:      req.Actor,
		Note:       req.Note,
		OccurredAt: now,
	}); err != nil {
		return nil, err
	}

	// Step 7: durable effects enqueue, same transaction (outbox).
	event := domain.TransitionEvent{
		DealID:        deal.ID,
		DealName:      deal.Name,
		FromStage:     fromStage,
		ToStage:       req.TargetStage,
		Actor:         req.Actor,
		AssignedTo:    deal.AssignedTo,
		Note:          req.Note,
		EnteredFromAt: enteredFromAt,
		OccurredAt:    now,
		OverrideUsed:  overrideUsed,
	}
	if overrideUsed {
		event.OverrideActor = req.Actor
		event.CapacityAtMove = check.Current
		event.CapacityLimit = check.Limit
	}
	if _, err := c.riverClient.InsertTx(ctx, tx, jobs.TransitionEffectsArgs{Event: event}, nil); err != nil {
		return nil, fmt.Errorf("enqueue transition effects for deal %s: %w", deal.ID, err)
	}

	// Step 8: commit.
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transition tx: %w", err)
	}

	// Post-commit, best-effort: the override audit row must not undo
	// the committed move.
	if overrideUsed && c.auditor != nil {
		if err := c.auditor.LogWIPOverride(ctx, deal.ID, string(req.TargetStage), req.Actor, check.Current, check.Limit); err != nil {
			logger.Warn("WIP override audit write failed",
				zap.String("deal_id", deal.ID),
				zap.Error(err),
			)
		}
	}

	return &TransitionResult{
		Deal:         deal,
		Warnings:     verdict.Warnings,
		OverrideUsed: overrideUsed,
	}, nil
}

// isRetryableConflict identifies concurrent-modification failures worth
// one transparent retry.
func isRetryableConflict(err error) bool {
	if appErr, ok := apperrors.IsAppError(err); ok {
		return appErr.Code == apperrors.CodeConflict
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03": // serialization, deadlock, lock timeout
			return true
		}
	}
	return false
}

// classifyError maps low-level failures onto the engine's error
// taxonomy. AppErrors pass through untouched.
func (c *TransitionCoordinator) classifyError(err error, req TransitionRequest) error {
	if _, ok := apperrors.IsAppError(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		logger.Error("transition timed out",
			zap.String("deal_id", req.DealID),
			zap.Duration("timeout", c.timeout),
		)
		return apperrors.ErrStoreUnavailable(err)
	}
	return apperrors.ErrStoreUnavailable(err)
}
