package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealpipe.io/dealpipe/internal/domain"
	apperrors "dealpipe.io/dealpipe/internal/pkg/errors"
	"dealpipe.io/dealpipe/internal/testutil"

	. "dealpipe.io/dealpipe/internal/repository"
)

func seedDeal(t *testing.T, repo *DealRepo, stage domain.Stage, mutate ...func(*domain.Deal)) *domain.Deal {
	t.Helper()
	d := &domain.Deal{
		ID:             "deal-" + uuid.NewString(),
		Name:           "Acquisition target",
		Stage:          stage,
		StageEnteredAt: time.Now().UTC().Truncate(time.Microsecond),
		Amount:         1_500_000,
		Probability:    30,
		AssignedTo:     "analyst-1",
		SalesStatus:    domain.SalesStatusOpen,
		Version:        1,
	}
	for _, m := range mutate {
		m(d)
	}
	require.NoError(t, repo.Create(context.Background(), d))
	return d
}

func TestDealRepoRoundTrip(t *testing.T) {
	pool := testutil.OpenPGXPool(t, "deal_repo")
	repo := NewDealRepo(pool)
	ctx := context.Background()

	created := seedDeal(t, repo, domain.StageSourcing)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, domain.StageSourcing, got.Stage)
	assert.Equal(t, int64(1), got.Version)
}

func TestDealRepoGetByID_NotFound(t *testing.T) {
	pool := testutil.OpenPGXPool(t, "deal_repo")
	repo := NewDealRepo(pool)

	_, err := repo.GetByID(context.Background(), "deal-missing")
	require.Error(t, err)
	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeDealNotFound, appErr.Code)
}

func TestDealRepoGetByID_SoftDeletedInvisible(t *testing.T) {
	pool := testutil.OpenPGXPool(t, "deal_repo")
	repo := NewDealRepo(pool)
	ctx := context.Background()

	d := seedDeal(t, repo, domain.StageScreening)
	_, err := pool.Exec(ctx, `UPDATE deals SET deleted_at = now() WHERE id = $1`, d.ID)
	require.NoError(t, err)

	_, err = repo.GetByID(ctx, d.ID)
	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeDealNotFound, appErr.Code)
}

func TestDealRepoUpdateStageTx_VersionConflict(t *testing.T) {
	pool := testutil.OpenPGXPool(t, "deal_repo")
	repo := NewDealRepo(pool)
	ctx := context.Background()

	d := seedDeal(t, repo, domain.StageSourcing)

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	d.Stage = domain.StageScreening
	d.StageEnteredAt = time.Now().UTC()

	err = repo.UpdateStageTx(ctx, tx, d, 99)
	require.Error(t, err)
	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeConflict, appErr.Code)
}

func TestDealRepoUpdateStageTx_BumpsVersion(t *testing.T) {
	pool := testutil.OpenPGXPool(t, "deal_repo")
	repo := NewDealRepo(pool)
	ctx := context.Background()

	d := seedDeal(t, repo, domain.StageSourcing)

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	d.Stage = domain.StageScreening
	d.StageEnteredAt = time.Now().UTC()
	require.NoError(t, repo.UpdateStageTx(ctx, tx, d, 1))
	require.NoError(t, tx.Commit(ctx))

	assert.Equal(t, int64(2), d.Version)

	got, err := repo.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageScreening, got.Stage)
	assert.Equal(t, int64(2), got.Version)
}

func TestDealRepoCountActiveTx_ExcludesMovingDeal(t *testing.T) {
	pool := testutil.OpenPGXPool(t, "deal_repo")
	repo := NewDealRepo(pool)
	ctx := context.Background()

	occupant := seedDeal(t, repo, domain.StageDueDiligence)
	_ = occupant
	mover := seedDeal(t, repo, domain.StageDueDiligence)

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	count, err := repo.CountActiveTx(ctx, tx, domain.StageDueDiligence, mover.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDealRepoTxCounter(t *testing.T) {
	pool := testutil.OpenPGXPool(t, "deal_repo")
	repo := NewDealRepo(pool)
	ctx := context.Background()

	seedDeal(t, repo, domain.StageClosing)

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	counter := TxCounter{Repo: repo, Tx: tx}
	count, err := counter.CountActive(ctx, domain.StageClosing, "deal-other")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDealRepoListByStage(t *testing.T) {
	pool := testutil.OpenPGXPool(t, "deal_repo")
	repo := NewDealRepo(pool)
	ctx := context.Background()

	base := time.Now().UTC().Add(-48 * time.Hour).Truncate(time.Microsecond)
	older := seedDeal(t, repo, domain.StageAnalysisOutreach, func(d *domain.Deal) {
		d.StageEnteredAt = base
	})
	newer := seedDeal(t, repo, domain.StageAnalysisOutreach, func(d *domain.Deal) {
		d.StageEnteredAt = base.Add(24 * time.Hour)
	})
	seedDeal(t, repo, domain.StageSourcing)

	list, err := repo.ListByStage(ctx, domain.StageAnalysisOutreach, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, list.TotalCount)
	require.Len(t, list.Items, 2)
	assert.Equal(t, older.ID, list.Items[0].ID)
	assert.Equal(t, newer.ID, list.Items[1].ID)
}

func TestDealRepoCountByStage(t *testing.T) {
	pool := testutil.OpenPGXPool(t, "deal_repo")
	repo := NewDealRepo(pool)
	ctx := context.Background()

	seedDeal(t, repo, domain.StageSourcing)
	seedDeal(t, repo, domain.StageSourcing)
	seedDeal(t, repo, domain.StageValuationStructuring)

	counts, err := repo.CountByStage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[domain.StageSourcing])
	assert.Equal(t, 1, counts[domain.StageValuationStructuring])
}
