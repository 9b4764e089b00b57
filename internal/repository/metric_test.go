package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealpipe.io/dealpipe/internal/domain"
	"dealpipe.io/dealpipe/internal/testutil"

	. "dealpipe.io/dealpipe/internal/repository"
)

func TestMetricRepoRecord_IdempotentOnNaturalKey(t *testing.T) {
	pool := testutil.OpenPGXPool(t, "metric_repo")
	repo := NewMetricRepo(pool)
	ctx := context.Background()

	recordedAt := time.Now().UTC().Truncate(time.Microsecond)
	m := &domain.StageMetric{
		DealID:       "deal-1",
		Stage:        domain.StageScreening,
		DurationDays: 12,
		RecordedAt:   recordedAt,
	}
	require.NoError(t, repo.Record(ctx, m))
	require.NoError(t, repo.Record(ctx, m))

	var count int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT count(*) FROM stage_metrics WHERE deal_id = 'deal-1'`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestMetricRepoVelocity(t *testing.T) {
	pool := testutil.OpenPGXPool(t, "metric_repo")
	repo := NewMetricRepo(pool)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Microsecond)
	samples := []*domain.StageMetric{
		{DealID: "deal-1", Stage: domain.StageScreening, DurationDays: 10, RecordedAt: base},
		{DealID: "deal-2", Stage: domain.StageScreening, DurationDays: 20, RecordedAt: base.Add(time.Minute)},
		{DealID: "deal-3", Stage: domain.StageClosing, DurationDays: 5, RecordedAt: base.Add(2 * time.Minute)},
	}
	for _, m := range samples {
		require.NoError(t, repo.Record(ctx, m))
	}

	stats, err := repo.Velocity(ctx)
	require.NoError(t, err)

	byStage := make(map[domain.Stage]*domain.StageVelocity)
	for _, s := range stats {
		byStage[s.Stage] = s
	}

	screening := byStage[domain.StageScreening]
	require.NotNil(t, screening)
	assert.Equal(t, 2, screening.Transitions)
	assert.InDelta(t, 15.0, screening.AvgDays, 0.001)
	assert.Equal(t, 10, screening.MinDays)
	assert.Equal(t, 20, screening.MaxDays)

	closing := byStage[domain.StageClosing]
	require.NotNil(t, closing)
	assert.Equal(t, 1, closing.Transitions)
}
