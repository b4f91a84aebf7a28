// Package activity — service.go содержит бизнес-логику записи действий:
// проверку каталога, дедупликацию, политику модерации и выдачу значков.
package activity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"facebrasil.com.br/gamification/internal/common"
	"facebrasil.com.br/gamification/internal/config"
	"facebrasil.com.br/gamification/internal/features/badges"
	"facebrasil.com.br/gamification/internal/features/ledger"
	"facebrasil.com.br/gamification/internal/metrics"
	"facebrasil.com.br/gamification/internal/notify"
)

// badgeTimeout — предельное время оценки значков после начисления.
const badgeTimeout = 5 * time.Second

// Store — транзакционные операции записи.
type Store interface {
	Record(ctx context.Context, ev *Event, credit ledger.Credit) (*RecordResult, error)
	Validate(ctx context.Context, id uuid.UUID) (*ValidationResult, error)
	ListPending(ctx context.Context, limit int) ([]*Event, error)
}

// BadgeEvaluator выдаёт значки пользователю.
type BadgeEvaluator interface {
	Evaluate(ctx context.Context, userID string) ([]string, error)
}

// Service записывает действия читателей.
type Service struct {
	store     Store
	badges    BadgeEvaluator
	publisher notify.Publisher
	policy    string         // config.CreditOptimistic или config.CreditOnValidation
	loc       *time.Location // Часовой пояс портала для ключа «раз в день»
	now       func() time.Time
}

// NewService создаёт сервис активности.
func NewService(store Store, evaluator BadgeEvaluator, publisher notify.Publisher, policy string, loc *time.Location) *Service {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	return &Service{
		store:     store,
		badges:    evaluator,
		publisher: publisher,
		policy:    policy,
		loc:       loc,
		now:       time.Now,
	}
}

// Record засчитывает действие пользователя.
//
// Возвращает {accepted:false, points_awarded:0}, если действие уже засчитано
// (дубликат по цели или по дню). Повтор с тем же Idempotency-Key возвращает
// исходный результат без побочных эффектов, а тот же ключ для другого
// действия или цели даёт common.ErrIdempotencyConflict. Ошибка выдачи значков
// не отменяет начисление и не возвращается вызывающему.
func (s *Service) Record(ctx context.Context, req Request) (*Outcome, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, common.ErrUnauthorized
	}
	action, err := Lookup(req.Kind)
	if err != nil {
		metrics.ActivitiesRecorded.WithLabelValues("unknown", "rejected").Inc()
		return nil, err
	}
	dedupeKey, err := DedupeKey(action, req.TargetID, s.now(), s.loc)
	if err != nil {
		return nil, err
	}

	ev := &Event{
		ID:             uuid.New(),
		UserID:         req.UserID,
		TargetID:       strings.TrimSpace(req.TargetID),
		Kind:           action.Kind,
		PointsAwarded:  action.Points,
		Validated:      !action.RequiresModeration,
		DeferredCredit: action.RequiresModeration && s.policy == config.CreditOnValidation,
		DedupeKey:      dedupeKey,
		IdempotencyKey: strings.TrimSpace(req.IdempotencyKey),
		Metadata:       req.Metadata,
	}

	res, err := s.store.Record(ctx, ev, ledger.Credit{Points: action.Points, Counter: action.Counter})
	if errors.Is(err, common.ErrDuplicateActivity) {
		metrics.ActivitiesRecorded.WithLabelValues(string(action.Kind), "duplicate").Inc()
		log.WithFields(log.Fields{
			"user_id":   req.UserID,
			"kind":      action.Kind,
			"target_id": ev.TargetID,
		}).Debug("Действие уже засчитано")
		return &Outcome{Accepted: false, PointsAwarded: 0, NewBadges: []string{}}, nil
	}
	if errors.Is(err, common.ErrIdempotencyConflict) {
		metrics.ActivitiesRecorded.WithLabelValues(string(action.Kind), "rejected").Inc()
		return nil, err
	}
	if err != nil {
		log.WithFields(log.Fields{
			"user_id": req.UserID,
			"kind":    action.Kind,
		}).WithError(err).Error("Ошибка записи действия")
		return nil, err
	}

	if res.Replayed != nil {
		metrics.ActivitiesRecorded.WithLabelValues(string(action.Kind), "replayed").Inc()
		prev := res.Replayed
		id := prev.ID
		out := &Outcome{
			Accepted:          true,
			PendingValidation: !prev.Validated,
			Replayed:          true,
			NewBadges:         []string{},
			EventID:           &id,
		}
		if !prev.DeferredCredit {
			out.PointsAwarded = prev.PointsAwarded
		}
		return out, nil
	}

	metrics.ActivitiesRecorded.WithLabelValues(string(action.Kind), "accepted").Inc()
	id := ev.ID
	out := &Outcome{
		Accepted:          true,
		PendingValidation: !ev.Validated,
		NewBadges:         []string{},
		EventID:           &id,
	}
	if res.Ledger != nil {
		out.PointsAwarded = action.Points
		out.Level = res.Ledger.Level
		out.LevelName = res.Ledger.LevelName
		metrics.PointsAwarded.WithLabelValues(string(action.Kind)).Add(float64(action.Points))
		s.afterCredit(ctx, res.Ledger, res.LeveledUp, out)
	}

	log.WithFields(log.Fields{
		"user_id": req.UserID,
		"kind":    action.Kind,
		"points":  out.PointsAwarded,
		"pending": out.PendingValidation,
	}).Info("Действие засчитано")
	return out, nil
}

// afterCredit уведомляет о новом уровне и выдаёт значки (best-effort).
func (s *Service) afterCredit(ctx context.Context, l *ledger.Ledger, leveledUp bool, out *Outcome) {
	if leveledUp {
		metrics.LevelUps.Inc()
		s.publisher.Publish(notify.Event{
			Type:      notify.EventLevelUp,
			UserID:    l.UserID,
			Level:     l.Level,
			LevelName: l.LevelName,
		})
	}

	if s.badges == nil {
		return
	}
	// Начисление уже зафиксировано: оценка значков не зависит от отключения клиента
	badgeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), badgeTimeout)
	defer cancel()

	awarded, err := s.badges.Evaluate(badgeCtx, l.UserID)
	if err != nil {
		log.WithField("user_id", l.UserID).WithError(err).Warn("Ошибка выдачи значков, начисление сохранено")
	}
	for _, id := range awarded {
		ev := notify.Event{Type: notify.EventBadgeAwarded, UserID: l.UserID, BadgeID: id}
		if b, ok := badges.Lookup(id); ok {
			ev.BadgeName = b.Name
		}
		s.publisher.Publish(ev)
	}
	if len(awarded) > 0 {
		out.NewBadges = awarded
	}
}

// Validate одобряет событие, ожидающее модерации.
// Повторное одобрение — успешный no-op.
func (s *Service) Validate(ctx context.Context, id uuid.UUID) (*ValidationResult, error) {
	res, err := s.store.Validate(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.Ledger != nil {
		metrics.PointsAwarded.WithLabelValues(string(res.Event.Kind)).Add(float64(res.PointsCredited))
		s.afterCredit(ctx, res.Ledger, res.LeveledUp, &Outcome{})
	}

	log.WithFields(log.Fields{
		"event_id": id,
		"already":  res.AlreadyValidated,
		"credited": res.PointsCredited,
	}).Info("Событие прошло модерацию")
	return res, nil
}

// ListPending возвращает очередь модерации.
func (s *Service) ListPending(ctx context.Context, limit int) ([]*Event, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.ListPending(ctx, limit)
}
