// Package repository provides PostgreSQL persistence for the deal
// pipeline. Repositories are hand-written on pgx and share one pool with
// the job queue so core writes and job enqueue can run in a single
// transaction.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dealpipe.io/dealpipe/internal/domain"
	apperrors "dealpipe.io/dealpipe/internal/pkg/errors"
)

const dealColumns = `id, name, stage, stage_entered_at, amount, probability,
	expected_close_date, account_id, assigned_to, sales_status, version,
	created_at, updated_at`

// DealRepo persists deals.
type DealRepo struct {
	pool *pgxpool.Pool
}

// NewDealRepo creates a deal repository backed by the shared pool.
func NewDealRepo(pool *pgxpool.Pool) *DealRepo {
	return &DealRepo{pool: pool}
}

func scanDeal(row pgx.Row) (*domain.Deal, error) {
	var d domain.Deal
	err := row.Scan(
		&d.ID, &d.Name, &d.Stage, &d.StageEnteredAt, &d.Amount, &d.Probability,
		&d.ExpectedCloseDate, &d.AccountID, &d.AssignedTo, &d.SalesStatus,
		&d.Version, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetByID returns an active deal, or DEAL_NOT_FOUND. Soft-deleted deals
// are invisible.
func (r *DealRepo) GetByID(ctx context.Context, id string) (*domain.Deal, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+dealColumns+` FROM deals WHERE id = $1 AND deleted_at IS NULL`, id)
	deal, err := scanDeal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrDealNotFoundf(id)
		}
		return nil, fmt.Errorf("get deal %s: %w", id, err)
	}
	return deal, nil
}

// GetForUpdateTx loads a deal with a row lock inside the caller's
// transaction. The lock serializes concurrent transitions per deal.
func (r *DealRepo) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (*domain.Deal, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+dealColumns+` FROM deals WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id)
	deal, err := scanDeal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrDealNotFoundf(id)
		}
		return nil, fmt.Errorf("lock deal %s: %w", id, err)
	}
	return deal, nil
}

// UpdateStageTx writes the post-transition deal state. The update is
// conditioned on the version observed under the row lock; zero affected
// rows means a concurrent writer got there first.
func (r *DealRepo) UpdateStageTx(ctx context.Context, tx pgx.Tx, d *domain.Deal, expectedVersion int64) error {
	tag, err := tx.Exec(ctx,
		`UPDATE deals
		 SET stage = $1, stage_entered_at = $2, probability = $3,
		     sales_status = $4, version = version + 1, updated_at = now()
		 WHERE id = $5 AND version = $6 AND deleted_at IS NULL`,
		d.Stage, d.StageEnteredAt, d.Probability, d.SalesStatus, d.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update deal %s stage: %w", d.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrTransitionConflict(fmt.Errorf("deal %s version %d superseded", d.ID, expectedVersion))
	}
	d.Version = expectedVersion + 1
	return nil
}

// LockStageTx takes a transaction-scoped advisory lock on the stage so
// the occupancy count-and-increment is linearized per target stage.
func (r *DealRepo) LockStageTx(ctx context.Context, tx pgx.Tx, stage domain.Stage) error {
	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtext('pipeline_stage:' || $1::text))`, string(stage)); err != nil {
		return fmt.Errorf("lock stage %s: %w", stage, err)
	}
	return nil
}

// CountActiveTx counts active deals in a stage excluding the deal being
// moved. Must run inside the transaction that performs the write.
func (r *DealRepo) CountActiveTx(ctx context.Context, tx pgx.Tx, stage domain.Stage, excludingDealID string) (int, error) {
	var count int
	err := tx.QueryRow(ctx,
		`SELECT count(*) FROM deals
		 WHERE stage = $1 AND deleted_at IS NULL AND id <> $2`,
		stage, excludingDealID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count stage %s: %w", stage, err)
	}
	return count, nil
}

// ListByStage returns a page of active deals in a stage, oldest entry
// first.
func (r *DealRepo) ListByStage(ctx context.Context, stage domain.Stage, limit, offset int) (*domain.DealList, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM deals WHERE stage = $1 AND deleted_at IS NULL`, stage).Scan(&total); err != nil {
		return nil, fmt.Errorf("count deals in %s: %w", stage, err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+dealColumns+` FROM deals
		 WHERE stage = $1 AND deleted_at IS NULL
		 ORDER BY stage_entered_at ASC, id ASC
		 LIMIT $2 OFFSET $3`, stage, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list deals in %s: %w", stage, err)
	}
	defer rows.Close()

	list := &domain.DealList{TotalCount: total}
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deal: %w", err)
		}
		list.Items = append(list.Items, deal)
	}
	return list, rows.Err()
}

// ListActive returns all active deals ordered by stage entry time. Feeds
// the board snapshot and the stale sweep.
func (r *DealRepo) ListActive(ctx context.Context) ([]*domain.Deal, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+dealColumns+` FROM deals
		 WHERE deleted_at IS NULL
		 ORDER BY stage_entered_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list active deals: %w", err)
	}
	defer rows.Close()

	var deals []*domain.Deal
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deal: %w", err)
		}
		deals = append(deals, deal)
	}
	return deals, rows.Err()
}

// CountByStage returns live occupancy per stage.
func (r *DealRepo) CountByStage(ctx context.Context) (map[domain.Stage]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT stage, count(*) FROM deals WHERE deleted_at IS NULL GROUP BY stage`)
	if err != nil {
		return nil, fmt.Errorf("count by stage: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Stage]int)
	for rows.Next() {
		var stage domain.Stage
		var count int
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, fmt.Errorf("scan stage count: %w", err)
		}
		counts[stage] = count
	}
	return counts, rows.Err()
}

// Create inserts a deal. Used by intake tooling and tests; transitions
// never create deals.
func (r *DealRepo) Create(ctx context.Context, d *domain.Deal) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO deals (id, name, stage, stage_entered_at, amount, probability,
		                    expected_close_date, account_id, assigned_to, sales_status, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		d.ID, d.Name, d.Stage, d.StageEnteredAt, d.Amount, d.Probability,
		d.ExpectedCloseDate, d.AccountID, d.AssignedTo, d.SalesStatus, d.Version)
	if err != nil {
		return fmt.Errorf("create deal %s: %w", d.ID, err)
	}
	return nil
}

// TxCounter adapts a transaction-bound count to the enforcer's counter
// contract.
type TxCounter struct {
	Repo *DealRepo
	Tx   pgx.Tx
}

// CountActive locks the stage then counts its active occupants.
func (c TxCounter) CountActive(ctx context.Context, stage domain.Stage, excludingDealID string) (int, error) {
	if err := c.Repo.LockStageTx(ctx, c.Tx, stage); err != nil {
		return 0, err
	}
	return c.Repo.CountActiveTx(ctx, c.Tx, stage, excludingDealID)
}
