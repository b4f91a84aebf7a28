package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	"facebrasil.com.br/gamification/internal/common"
	"facebrasil.com.br/gamification/internal/features/ledger"
)

type fakeResetter struct {
	periods []ledger.Period
	err     error
}

func (f *fakeResetter) ResetPeriod(_ context.Context, p ledger.Period) (int64, error) {
	f.periods = append(f.periods, p)
	return 3, f.err
}

type fakeCleaner struct{ calls int }

func (f *fakeCleaner) CleanupExpired(context.Context) (int64, error) {
	f.calls++
	return 1, nil
}

func TestScheduleSpecs(t *testing.T) {
	loc := common.LoadPortalLocation("America/Sao_Paulo")
	// среда, 15 мая 2024, 10:00 по Сан-Паулу
	from := time.Date(2024, 5, 15, 10, 0, 0, 0, loc)

	weekly, err := cron.ParseStandard(WeeklyResetSpec)
	require.NoError(t, err)
	next := weekly.Next(from)
	require.Equal(t, time.Monday, next.Weekday())
	require.Equal(t, time.Date(2024, 5, 20, 0, 0, 0, 0, loc), next)

	monthly, err := cron.ParseStandard(MonthlyResetSpec)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, loc), monthly.Next(from))

	_, err = cron.ParseStandard(CleanupSpec)
	require.NoError(t, err)
}

func TestJobsCallServices(t *testing.T) {
	resetter := &fakeResetter{}
	cleaner := &fakeCleaner{}
	s := NewScheduler(resetter, cleaner, time.UTC)
	ctx := context.Background()

	s.resetPeriod(ctx, ledger.PeriodWeekly)
	s.resetPeriod(ctx, ledger.PeriodMonthly)
	s.cleanupSessions(ctx)

	require.Equal(t, []ledger.Period{ledger.PeriodWeekly, ledger.PeriodMonthly}, resetter.periods)
	require.Equal(t, 1, cleaner.calls)

	// ошибка задачи только логируется
	resetter.err = errors.New("db down")
	s.resetPeriod(ctx, ledger.PeriodWeekly)

	// без очистителя задача ничего не делает
	NewScheduler(resetter, nil, time.UTC).cleanupSessions(ctx)
}

func TestRunStopsOnCancel(t *testing.T) {
	s := NewScheduler(&fakeResetter{}, &fakeCleaner{}, time.UTC)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("планировщик не остановился")
	}
}
