package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealpipe.io/dealpipe/internal/domain"
	"dealpipe.io/dealpipe/internal/testutil"

	. "dealpipe.io/dealpipe/internal/repository"
)

func TestHistoryRepoRecordAndList(t *testing.T) {
	pool := testutil.OpenPGXPool(t, "history_repo")
	deals := NewDealRepo(pool)
	repo := NewHistoryRepo(pool)
	ctx := context.Background()

	d := seedDeal(t, deals, domain.StageSourcing)

	base := time.Now().UTC().Truncate(time.Microsecond)
	from := domain.StageSourcing

	entries := []*domain.StageHistoryEntry{
		{
			ID: uuid.NewString(), DealID: d.ID, FromStage: nil,
			ToStage: domain.StageSourcing, Actor: "intake", OccurredAt: base.Add(-time.Hour),
		},
		{
			ID: uuid.NewString(), DealID: d.ID, FromStage: &from,
			ToStage: domain.StageScreening, Actor: "analyst-1", Note: "passed screen",
			OccurredAt: base,
		},
	}
	for _, e := range entries {
		tx, err := pool.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, repo.RecordTx(ctx, tx, e))
		require.NoError(t, tx.Commit(ctx))
	}

	got, err := repo.ListByDeal(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got[0].FromStage)
	assert.Equal(t, domain.StageSourcing, got[0].ToStage)
	require.NotNil(t, got[1].FromStage)
	assert.Equal(t, domain.StageSourcing, *got[1].FromStage)
	assert.Equal(t, "passed screen", got[1].Note)
}

func TestHistoryRepoRecordTx_IdempotentOnNaturalKey(t *testing.T) {
	pool := testutil.OpenPGXPool(t, "history_repo")
	deals := NewDealRepo(pool)
	repo := NewHistoryRepo(pool)
	ctx := context.Background()

	d := seedDeal(t, deals, domain.StageSourcing)
	occurredAt := time.Now().UTC().Truncate(time.Microsecond)

	for i := 0; i < 2; i++ {
		tx, err := pool.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, repo.RecordTx(ctx, tx, &domain.StageHistoryEntry{
			ID:         uuid.NewString(),
			DealID:     d.ID,
			ToStage:    domain.StageScreening,
			Actor:      "analyst-1",
			OccurredAt: occurredAt,
		}))
		require.NoError(t, tx.Commit(ctx))
	}

	got, err := repo.ListByDeal(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
}
