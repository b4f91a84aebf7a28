// Package ledger — service.go содержит чтение баланса, прогресса и рейтинга.
package ledger

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"facebrasil.com.br/gamification/internal/common"
	"facebrasil.com.br/gamification/internal/db/postgres"
)

// leaderboardTimeout — предельное время общего запроса рейтинга к БД.
const leaderboardTimeout = 10 * time.Second

// Store — операции хранилища, нужные сервису.
type Store interface {
	Get(ctx context.Context, userID string) (*Ledger, bool, error)
	Leaderboard(ctx context.Context, period Period, limit int) ([]LeaderboardEntry, error)
	ResetPeriod(ctx context.Context, period Period) (int64, error)
}

// Cache — кэш рейтинга. Ошибки кэша не должны ломать чтение.
type Cache interface {
	GetLeaderboard(ctx context.Context, period Period, limit int) ([]LeaderboardEntry, bool)
	SetLeaderboard(ctx context.Context, period Period, limit int, entries []LeaderboardEntry)
	Invalidate(ctx context.Context)
}

// noopCache используется, когда Redis не настроен.
type noopCache struct{}

func (noopCache) GetLeaderboard(context.Context, Period, int) ([]LeaderboardEntry, bool) {
	return nil, false
}

func (noopCache) SetLeaderboard(context.Context, Period, int, []LeaderboardEntry) {}

func (noopCache) Invalidate(context.Context) {}

// Service отдаёт баланс, уровень и рейтинг.
type Service struct {
	store  Store
	levels *Levels
	cache  Cache
	group  singleflight.Group // Один запрос к БД на ключ рейтинга при промахе кэша
}

// NewService создаёт сервис журнала. cache может быть nil.
func NewService(store Store, levels *Levels, cache Cache) *Service {
	if cache == nil {
		cache = noopCache{}
	}
	return &Service{store: store, levels: levels, cache: cache}
}

// Levels возвращает таблицу уровней.
func (s *Service) Levels() *Levels {
	return s.levels
}

// Zero возвращает нулевое состояние журнала для пользователя без активности.
func (s *Service) Zero(userID string) *Ledger {
	return &Ledger{
		UserID:    userID,
		Level:     1,
		LevelName: s.levels.Name(1),
		Badges:    []string{},
	}
}

// Ledger возвращает журнал пользователя (нулевое состояние, если строки ещё нет).
func (s *Service) Ledger(ctx context.Context, userID string) (*Ledger, error) {
	if userID == "" {
		return nil, common.ErrUnauthorized
	}
	l, found, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, postgres.Classify(err)
	}
	if !found {
		return s.Zero(userID), nil
	}
	return l, nil
}

// Balance возвращает баланс и прогресс к следующему уровню.
func (s *Service) Balance(ctx context.Context, userID string) (*Balance, error) {
	l, err := s.Ledger(ctx, userID)
	if err != nil {
		return nil, err
	}
	current, next, percent := s.levels.Progress(l.Level, l.TotalPoints)
	return &Balance{
		TotalPoints:       l.TotalPoints,
		Level:             l.Level,
		LevelName:         l.LevelName,
		XPForCurrentLevel: current,
		XPForNextLevel:    next,
		ProgressPercent:   percent,
		FacetsBalance:     l.FacetsBalance,
		WeeklyPoints:      l.WeeklyPoints,
		MonthlyPoints:     l.MonthlyPoints,
		Badges:            l.Badges,
	}, nil
}

// NormalizeLimit приводит limit к диапазону 1..100 (0 и меньше — значение по умолчанию).
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		return MaxLeaderboardLimit
	}
	return limit
}

// Leaderboard возвращает рейтинг за период.
// Сначала смотрим в кэш, при промахе параллельные запросы объединяются в один.
// Общий запрос к БД не зависит от отмены контекста отдельного вызывающего:
// каждый ждёт результат только до отмены своего ctx.
func (s *Service) Leaderboard(ctx context.Context, period Period, limit int) ([]LeaderboardEntry, error) {
	limit = NormalizeLimit(limit)

	if entries, ok := s.cache.GetLeaderboard(ctx, period, limit); ok {
		return entries, nil
	}

	key := fmt.Sprintf("%s:%d", period, limit)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), leaderboardTimeout)
		defer cancel()

		entries, err := s.store.Leaderboard(fillCtx, period, limit)
		if err != nil {
			return nil, postgres.Classify(err)
		}
		s.cache.SetLeaderboard(fillCtx, period, limit, entries)
		return entries, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]LeaderboardEntry), nil
	}
}

// ResetPeriod обнуляет недельные или месячные очки и сбрасывает кэш рейтинга.
func (s *Service) ResetPeriod(ctx context.Context, period Period) (int64, error) {
	n, err := s.store.ResetPeriod(ctx, period)
	if err != nil {
		return 0, postgres.Classify(err)
	}
	s.cache.Invalidate(ctx)

	log.WithFields(log.Fields{
		"period": period,
		"users":  n,
	}).Info("Очки периода обнулены")
	return n, nil
}
