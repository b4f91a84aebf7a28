package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"facebrasil.com.br/gamification/internal/common"
)

func TestIsRetryable(t *testing.T) {
	require.True(t, IsRetryable(&pgconn.PgError{Code: "40001"}))
	require.True(t, IsRetryable(fmt.Errorf("wrap: %w", &pgconn.PgError{Code: "40P01"})))
	require.False(t, IsRetryable(&pgconn.PgError{Code: "23505"}))
	require.False(t, IsRetryable(common.ErrInsufficientPoints))
	require.False(t, IsRetryable(nil))
}

func TestClassify(t *testing.T) {
	require.NoError(t, Classify(nil))

	err := Classify(&pgconn.PgError{Code: "40001"})
	require.ErrorIs(t, err, common.ErrStorageConflict)

	err = Classify(fmt.Errorf("op: %w", context.DeadlineExceeded))
	require.ErrorIs(t, err, common.ErrStorageUnavailable)

	// доменные ошибки проходят без изменений
	err = Classify(common.ErrOfferNotFound)
	require.Same(t, common.ErrOfferNotFound, err)

	plain := errors.New("syntax")
	require.Equal(t, plain, Classify(plain))
}
