package usecase

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	apperrors "dealpipe.io/dealpipe/internal/pkg/errors"
	"dealpipe.io/dealpipe/internal/pkg/logger"
)

func TestNewTransitionCoordinatorDefaultTimeout(t *testing.T) {
	c := NewTransitionCoordinator(nil, nil, nil, nil, nil, nil, nil, 0)
	require.Equal(t, DefaultTransitionTimeout, c.timeout)

	c = NewTransitionCoordinator(nil, nil, nil, nil, nil, nil, nil, 3*time.Second)
	require.Equal(t, 3*time.Second, c.timeout)
}

func TestIsRetryableConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "version conflict",
			err:  apperrors.ErrTransitionConflict(errors.New("superseded")),
			want: true,
		},
		{
			name: "serialization failure",
			err:  &pgconn.PgError{Code: "40001"},
			want: true,
		},
		{
			name: "deadlock detected",
			err:  &pgconn.PgError{Code: "40P01"},
			want: true,
		},
		{
			name: "lock not available",
			err:  &pgconn.PgError{Code: "55P03"},
			want: true,
		},
		{
			name: "unique violation is not retryable",
			err:  &pgconn.PgError{Code: "23505"},
			want: false,
		},
		{
			name: "capacity denial is not retryable",
			err:  apperrors.ErrCapacityExceededf("Due Diligence", 8, 8),
			want: false,
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, isRetryableConflict(tt.err))
		})
	}
}

func TestClassifyError(t *testing.T) {
	_ = logger.Init("error", "json")
	c := NewTransitionCoordinator(nil, nil, nil, nil, nil, nil, nil, time.Second)
	req := TransitionRequest{DealID: "deal-1"}

	t.Run("app errors pass through", func(t *testing.T) {
		in := apperrors.ErrCapacityExceededf("Closing", 5, 5)
		out := c.classifyError(in, req)
		require.Same(t, in, out)
	})

	t.Run("deadline becomes store unavailable", func(t *testing.T) {
		out := c.classifyError(context.DeadlineExceeded, req)
		appErr, ok := apperrors.IsAppError(out)
		require.True(t, ok)
		require.Equal(t, apperrors.CodeStoreUnavailable, appErr.Code)
		require.Equal(t, http.StatusServiceUnavailable, appErr.HTTPStatus)
	})

	t.Run("driver error becomes store unavailable", func(t *testing.T) {
		out := c.classifyError(&pgconn.PgError{Code: "08006"}, req)
		appErr, ok := apperrors.IsAppError(out)
		require.True(t, ok)
		require.Equal(t, apperrors.CodeStoreUnavailable, appErr.Code)
	})
}
