package app

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"facebrasil.com.br/gamification/internal/common"
	"facebrasil.com.br/gamification/internal/config"
	"facebrasil.com.br/gamification/internal/db/postgres"
	"facebrasil.com.br/gamification/internal/features/activity"
	"facebrasil.com.br/gamification/internal/features/ledger"
	"facebrasil.com.br/gamification/internal/features/rewards"
)

var testLevels = ledger.NewLevels([]int64{0, 100, 500, 1500, 5000, 15000})

// testDB подключается к TEST_DATABASE_URL и применяет миграции.
// Без переменной тесты пропускаются.
func testDB(t *testing.T) (*pgxpool.Pool, *postgres.Runner) {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL не задан")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.RunMigrations(ctx, pool, migrations))
	return pool, postgres.NewRunner(pool, 3, 10*time.Millisecond, 10*time.Second)
}

func newUser() string {
	return "it-" + uuid.NewString()
}

// parallel запускает fn n раз одновременно и возвращает ошибки по порядку.
func parallel(n int, fn func(i int) error) []error {
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = fn(i)
		}(i)
	}
	close(start)
	wg.Wait()
	return errs
}

func TestPgConcurrentDuplicateActivityCreditsOnce(t *testing.T) {
	pool, runner := testDB(t)
	ctx := context.Background()
	svc := activity.NewService(activity.NewPgStore(runner, testLevels), nil, nil, config.CreditOptimistic, time.UTC)
	user := newUser()

	var mu sync.Mutex
	accepted := 0
	errs := parallel(20, func(int) error {
		out, err := svc.Record(ctx, activity.Request{UserID: user, TargetID: "article-1", Kind: "read_complete"})
		if err != nil {
			return err
		}
		if out.Accepted {
			mu.Lock()
			accepted++
			mu.Unlock()
		}
		return nil
	})
	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, 1, accepted)

	l, found, err := ledger.NewRepository(pool).Get(ctx, user)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, int64(10), l.TotalPoints)
	require.Equal(t, int64(1), l.ArticlesRead)

	var events int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM activity_events WHERE user_id = $1`, user).Scan(&events))
	require.Equal(t, 1, events)
}

func TestPgActivityIdempotencyKey(t *testing.T) {
	pool, runner := testDB(t)
	ctx := context.Background()
	svc := activity.NewService(activity.NewPgStore(runner, testLevels), nil, nil, config.CreditOptimistic, time.UTC)
	user := newUser()

	first, err := svc.Record(ctx, activity.Request{UserID: user, TargetID: "a", Kind: "share", IdempotencyKey: "req-1"})
	require.NoError(t, err)
	require.True(t, first.Accepted)

	again, err := svc.Record(ctx, activity.Request{UserID: user, TargetID: "a", Kind: "share", IdempotencyKey: "req-1"})
	require.NoError(t, err)
	require.True(t, again.Replayed)
	require.Equal(t, *first.EventID, *again.EventID)

	_, err = svc.Record(ctx, activity.Request{UserID: user, TargetID: "b", Kind: "share", IdempotencyKey: "req-1"})
	require.ErrorIs(t, err, common.ErrIdempotencyConflict)

	l, _, err := ledger.NewRepository(pool).Get(ctx, user)
	require.NoError(t, err)
	require.Equal(t, int64(15), l.TotalPoints)
	require.Equal(t, int64(1), l.SharesMade)
}

func TestPgDeferredCreditOnValidation(t *testing.T) {
	pool, runner := testDB(t)
	ctx := context.Background()
	svc := activity.NewService(activity.NewPgStore(runner, testLevels), nil, nil, config.CreditOnValidation, time.UTC)
	user := newUser()

	out, err := svc.Record(ctx, activity.Request{UserID: user, TargetID: "a", Kind: "comment"})
	require.NoError(t, err)
	require.True(t, out.PendingValidation)
	require.Zero(t, out.PointsAwarded)

	// параллельное одобрение начисляет очки один раз
	var mu sync.Mutex
	credited := int64(0)
	errs := parallel(5, func(int) error {
		res, err := svc.Validate(ctx, *out.EventID)
		if err != nil {
			return err
		}
		mu.Lock()
		credited += res.PointsCredited
		mu.Unlock()
		return nil
	})
	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int64(20), credited)

	l, _, err := ledger.NewRepository(pool).Get(ctx, user)
	require.NoError(t, err)
	require.Equal(t, int64(20), l.TotalPoints)
	require.Equal(t, int64(1), l.CommentsMade)
}

func TestPgConcurrentRedeemLastFacets(t *testing.T) {
	pool, runner := testDB(t)
	ctx := context.Background()
	svc := rewards.NewService(rewards.NewPgStore(runner, testLevels), nil)
	ledgers := ledger.NewRepository(pool)
	user := newUser()

	_, err := ledgers.CreditFacets(ctx, user, decimal.NewFromInt(30), testLevels.Name(1))
	require.NoError(t, err)
	offer, err := svc.CreateOffer(ctx, rewards.NewOffer{
		PartnerID: "partner-it", Title: "Assinatura digital", FacetCost: decimal.NewFromInt(30), OfferType: "subscription",
	})
	require.NoError(t, err)

	errs := parallel(5, func(int) error {
		_, err := svc.Redeem(ctx, user, offer.ID, "")
		return err
	})
	ok, insufficient := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case common.CodeOf(err) == common.ErrInsufficientFacets.Code:
			insufficient++
		default:
			require.NoError(t, err)
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 4, insufficient)

	l, _, err := ledgers.Get(ctx, user)
	require.NoError(t, err)
	require.True(t, l.FacetsBalance.IsZero())

	var rows int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM redemptions WHERE user_id = $1`, user).Scan(&rows))
	require.Equal(t, 1, rows)
}

func TestPgRedeemIdempotencyKey(t *testing.T) {
	pool, runner := testDB(t)
	ctx := context.Background()
	svc := rewards.NewService(rewards.NewPgStore(runner, testLevels), nil)
	ledgers := ledger.NewRepository(pool)
	user := newUser()

	_, err := ledgers.CreditFacets(ctx, user, decimal.NewFromInt(100), testLevels.Name(1))
	require.NoError(t, err)
	first, err := svc.CreateOffer(ctx, rewards.NewOffer{PartnerID: "p", Title: "Desconto", FacetCost: decimal.NewFromInt(40), OfferType: "discount"})
	require.NoError(t, err)
	second, err := svc.CreateOffer(ctx, rewards.NewOffer{PartnerID: "p", Title: "Ingresso", FacetCost: decimal.NewFromInt(10), OfferType: "ticket"})
	require.NoError(t, err)

	// параллельные повторы с одним ключом списывают один раз
	ids := make([]uuid.UUID, 5)
	errs := parallel(len(ids), func(i int) error {
		res, err := svc.Redeem(ctx, user, first.ID, "r-1")
		if err != nil {
			return err
		}
		ids[i] = res.RedemptionID
		return nil
	})
	for i, err := range errs {
		require.NoError(t, err)
		require.Equal(t, ids[0], ids[i])
	}

	_, err = svc.Redeem(ctx, user, second.ID, "r-1")
	require.ErrorIs(t, err, common.ErrIdempotencyConflict)

	l, _, err := ledgers.Get(ctx, user)
	require.NoError(t, err)
	require.True(t, l.FacetsBalance.Equal(decimal.NewFromInt(60)))
}

func TestPgConvertKeepsLevel(t *testing.T) {
	pool, runner := testDB(t)
	ctx := context.Background()
	svc := rewards.NewService(rewards.NewPgStore(runner, testLevels), nil)
	ledgers := ledger.NewRepository(pool)
	user := newUser()

	l, err := ledgers.CreditPoints(ctx, user, ledger.Credit{Points: 1500}, testLevels.Name(1))
	require.NoError(t, err)
	raised, err := ledgers.RaiseToLevelFor(ctx, l, testLevels)
	require.NoError(t, err)
	require.True(t, raised)
	require.Equal(t, 4, l.Level)

	res, err := svc.Convert(ctx, user, 1000)
	require.NoError(t, err)
	require.Equal(t, int64(500), res.NewPointsBalance)
	require.True(t, res.NewFacetsBalance.Equal(decimal.NewFromInt(1)))

	_, err = svc.Convert(ctx, user, 1000)
	require.ErrorIs(t, err, common.ErrInsufficientPoints)

	// уровень не понижается ни списанием, ни явным запросом ниже текущего
	raised, err = ledgers.RaiseLevel(ctx, user, 2, testLevels.Name(2))
	require.NoError(t, err)
	require.False(t, raised)

	after, _, err := ledgers.Get(ctx, user)
	require.NoError(t, err)
	require.Equal(t, int64(500), after.TotalPoints)
	require.Equal(t, 4, after.Level)
	require.True(t, after.FacetsBalance.Equal(decimal.NewFromInt(1)))

	var entries int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM activity_events WHERE user_id = $1 AND kind = $2 AND points_awarded = -1000`,
		user, string(activity.KindConversion)).Scan(&entries))
	require.Equal(t, 1, entries)
}
