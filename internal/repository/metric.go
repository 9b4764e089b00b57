package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"dealpipe.io/dealpipe/internal/domain"
)

// MetricRepo persists derived stage-duration metrics. Rows are
// rebuildable from history; inserts are idempotent so the at-least-once
// effects worker can retry safely.
type MetricRepo struct {
	pool *pgxpool.Pool
}

// NewMetricRepo creates a metric repository.
func NewMetricRepo(pool *pgxpool.Pool) *MetricRepo {
	return &MetricRepo{pool: pool}
}

// Record inserts one stage metric, keyed by (deal_id, stage, recorded_at).
func (r *MetricRepo) Record(ctx context.Context, m *domain.StageMetric) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO stage_metrics (deal_id, stage, duration_days, recorded_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (deal_id, stage, recorded_at) DO NOTHING`,
		m.DealID, m.Stage, m.DurationDays, m.RecordedAt)
	if err != nil {
		return fmt.Errorf("record metric for deal %s: %w", m.DealID, err)
	}
	return nil
}

// Velocity aggregates duration statistics per stage.
func (r *MetricRepo) Velocity(ctx context.Context) ([]*domain.StageVelocity, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT stage, count(*), avg(duration_days), min(duration_days), max(duration_days)
		 FROM stage_metrics
		 GROUP BY stage`)
	if err != nil {
		return nil, fmt.Errorf("aggregate velocity: %w", err)
	}
	defer rows.Close()

	var stats []*domain.StageVelocity
	for rows.Next() {
		var v domain.StageVelocity
		if err := rows.Scan(&v.Stage, &v.Transitions, &v.AvgDays, &v.MinDays, &v.MaxDays); err != nil {
			return nil, fmt.Errorf("scan velocity row: %w", err)
		}
		stats = append(stats, &v)
	}
	return stats, rows.Err()
}
