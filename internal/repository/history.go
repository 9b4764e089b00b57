package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dealpipe.io/dealpipe/internal/domain"
)

// HistoryRepo persists stage history. Append-only: rows are never
// updated or deleted.
type HistoryRepo struct {
	pool *pgxpool.Pool
}

// NewHistoryRepo creates a history repository.
func NewHistoryRepo(pool *pgxpool.Pool) *HistoryRepo {
	return &HistoryRepo{pool: pool}
}

// RecordTx appends a history entry inside the caller's transaction.
// Idempotent under at-least-once delivery: the natural key
// (deal_id, to_stage, occurred_at) suppresses duplicates.
func (r *HistoryRepo) RecordTx(ctx context.Context, tx pgx.Tx, e *domain.StageHistoryEntry) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO stage_history (id, deal_id, from_stage, to_stage, actor, note, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (deal_id, to_stage, occurred_at) DO NOTHING`,
		e.ID, e.DealID, e.FromStage, e.ToStage, e.Actor, e.Note, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("record history for deal %s: %w", e.DealID, err)
	}
	return nil
}

// ListByDeal returns a deal's history in occurrence order.
func (r *HistoryRepo) ListByDeal(ctx context.Context, dealID string) ([]*domain.StageHistoryEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, deal_id, from_stage, to_stage, actor, note, occurred_at
		 FROM stage_history
		 WHERE deal_id = $1
		 ORDER BY occurred_at ASC, id ASC`, dealID)
	if err != nil {
		return nil, fmt.Errorf("list history for deal %s: %w", dealID, err)
	}
	defer rows.Close()

	var entries []*domain.StageHistoryEntry
	for rows.Next() {
		var e domain.StageHistoryEntry
		if err := rows.Scan(&e.ID, &e.DealID, &e.FromStage, &e.ToStage, &e.Actor, &e.Note, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
