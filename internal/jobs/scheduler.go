// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание в часовом поясе портала:
// сброс недельных и месячных очков и очистку истёкших админ-сессий.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"facebrasil.com.br/gamification/internal/features/ledger"
)

// Расписание задач
const (
	WeeklyResetSpec  = "0 0 * * 1" // Понедельник 00:00
	MonthlyResetSpec = "0 0 1 * *" // 1-е число 00:00
	CleanupSpec      = "30 * * * *"
)

// PeriodResetter обнуляет очки периода.
type PeriodResetter interface {
	ResetPeriod(ctx context.Context, period ledger.Period) (int64, error)
}

// SessionCleaner удаляет истёкшие админ-сессии.
type SessionCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron     *cron.Cron
	resetter PeriodResetter
	sessions SessionCleaner
	loc      *time.Location
}

// NewScheduler создаёт планировщик задач в часовом поясе портала.
func NewScheduler(resetter PeriodResetter, sessions SessionCleaner, loc *time.Location) *Scheduler {
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
	)
	return &Scheduler{
		cron:     c,
		resetter: resetter,
		sessions: sessions,
		loc:      loc,
	}
}

// Start регистрирует и запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		spec string
		fn   func()
	}{
		{WeeklyResetSpec, func() { s.resetPeriod(ctx, ledger.PeriodWeekly) }},
		{MonthlyResetSpec, func() { s.resetPeriod(ctx, ledger.PeriodMonthly) }},
		{CleanupSpec, func() { s.cleanupSessions(ctx) }},
	}
	for _, j := range jobs {
		if _, err := s.cron.AddFunc(j.spec, j.fn); err != nil {
			return fmt.Errorf("ошибка регистрации задачи %q: %w", j.spec, err)
		}
	}

	s.cron.Start()
	log.WithField("timezone", s.loc.String()).Info("Планировщик задач запущен")
	return nil
}

// Run запускает планировщик и блокируется до отмены ctx.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

// Stop останавливает планировщик и ждёт завершения запущенных задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

func (s *Scheduler) resetPeriod(ctx context.Context, period ledger.Period) {
	log.WithField("period", period).Info("[CRON] Сброс очков периода")
	n, err := s.resetter.ResetPeriod(ctx, period)
	if err != nil {
		log.WithError(err).WithField("period", period).Error("[CRON] Ошибка сброса")
		return
	}
	log.WithFields(log.Fields{"period": period, "rows": n}).Info("[CRON] Сброс завершён")
}

func (s *Scheduler) cleanupSessions(ctx context.Context) {
	if s.sessions == nil {
		return
	}
	n, err := s.sessions.CleanupExpired(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка очистки админ-сессий")
		return
	}
	if n > 0 {
		log.WithField("removed", n).Debug("[CRON] Истёкшие админ-сессии удалены")
	}
}

// cronLogger направляет логи robfig/cron в logrus.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.WithFields(kvFields(keysAndValues)).Debug("[CRON] " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.WithFields(kvFields(keysAndValues)).WithError(err).Error("[CRON] " + msg)
}

func kvFields(kv []interface{}) log.Fields {
	fields := log.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
