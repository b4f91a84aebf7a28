// Package activity — store.go выполняет запись события и начисление очков
// в одной транзакции PostgreSQL.
package activity

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"facebrasil.com.br/gamification/internal/common"
	"facebrasil.com.br/gamification/internal/db/postgres"
	"facebrasil.com.br/gamification/internal/features/ledger"
)

// PgStore — транзакционное хранилище событий поверх PostgreSQL.
type PgStore struct {
	runner *postgres.Runner
	levels *ledger.Levels
}

// NewPgStore создаёт хранилище.
func NewPgStore(runner *postgres.Runner, levels *ledger.Levels) *PgStore {
	return &PgStore{runner: runner, levels: levels}
}

// Record вставляет событие и, если оно новое и не ждёт модерации, начисляет очки.
// Вставка, начисление и повышение уровня фиксируются вместе или не применяются вовсе.
// Повтор по дедупликации возвращает common.ErrDuplicateActivity, повтор
// Idempotency-Key для другого действия возвращает common.ErrIdempotencyConflict.
func (s *PgStore) Record(ctx context.Context, ev *Event, credit ledger.Credit) (*RecordResult, error) {
	var result *RecordResult
	err := s.runner.InTx(ctx, func(tx pgx.Tx) error {
		events := NewRepository(tx)
		ledgers := ledger.NewRepository(tx)
		res := &RecordResult{}

		inserted, err := events.Insert(ctx, ev)
		if err != nil {
			return err
		}
		if !inserted {
			if ev.IdempotencyKey != "" {
				prev, found, err := events.FindByIdempotencyKey(ctx, ev.UserID, ev.IdempotencyKey)
				if err != nil {
					return err
				}
				if found {
					if prev.Kind != ev.Kind || prev.TargetID != ev.TargetID {
						return common.ErrIdempotencyConflict
					}
					res.Replayed = prev
					result = res
					return nil
				}
			}
			return common.ErrDuplicateActivity
		}

		if ev.DeferredCredit || credit.Points == 0 {
			result = res
			return nil
		}

		l, err := ledgers.CreditPoints(ctx, ev.UserID, credit, s.levels.Name(1))
		if err != nil {
			return err
		}
		res.LeveledUp, err = ledgers.RaiseToLevelFor(ctx, l, s.levels)
		if err != nil {
			return err
		}
		res.Ledger = l
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Validate отмечает событие проверенным. Для событий с отложенным начислением
// очки начисляются в той же транзакции.
func (s *PgStore) Validate(ctx context.Context, id uuid.UUID) (*ValidationResult, error) {
	var result *ValidationResult
	err := s.runner.InTx(ctx, func(tx pgx.Tx) error {
		events := NewRepository(tx)
		ledgers := ledger.NewRepository(tx)

		ev, changed, err := events.MarkValidated(ctx, id)
		if err != nil {
			return err
		}
		if !changed {
			existing, found, err := events.Get(ctx, id)
			if err != nil {
				return err
			}
			if !found {
				return common.ErrActivityNotFound
			}
			result = &ValidationResult{Event: existing, AlreadyValidated: true}
			return nil
		}

		res := &ValidationResult{Event: ev}
		if ev.DeferredCredit && ev.PointsAwarded > 0 {
			credit := ledger.Credit{Points: ev.PointsAwarded}
			if action, err := Lookup(string(ev.Kind)); err == nil {
				credit.Counter = action.Counter
			}
			l, err := ledgers.CreditPoints(ctx, ev.UserID, credit, s.levels.Name(1))
			if err != nil {
				return err
			}
			res.LeveledUp, err = ledgers.RaiseToLevelFor(ctx, l, s.levels)
			if err != nil {
				return err
			}
			res.Ledger = l
			res.PointsCredited = ev.PointsAwarded
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListPending возвращает события, ожидающие модерации.
func (s *PgStore) ListPending(ctx context.Context, limit int) ([]*Event, error) {
	events, err := NewRepository(s.runner.Pool()).ListPending(ctx, limit)
	return events, postgres.Classify(err)
}
