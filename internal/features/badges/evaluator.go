// Package badges — evaluator.go выдаёт значки после каждого начисления.
package badges

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"facebrasil.com.br/gamification/internal/features/ledger"
	"facebrasil.com.br/gamification/internal/metrics"
)

// Store — операции журнала, нужные для выдачи значков.
type Store interface {
	Get(ctx context.Context, userID string) (*ledger.Ledger, bool, error)
	AddBadge(ctx context.Context, userID, badgeID string) (bool, error)
}

// Evaluator проверяет правила значков и выдаёт новые.
type Evaluator struct {
	store Store
}

// NewEvaluator создаёт оценщик значков.
func NewEvaluator(store Store) *Evaluator {
	return &Evaluator{store: store}
}

// Evaluate выдаёт пользователю все значки, условия которых выполнены.
// Идемпотентна: повторный вызов при тех же счётчиках ничего не меняет.
// Возвращает id значков, добавленных именно этим вызовом.
func (e *Evaluator) Evaluate(ctx context.Context, userID string) ([]string, error) {
	l, found, err := e.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала для значков: %w", err)
	}
	if !found {
		return nil, nil
	}

	var awarded []string
	for _, id := range Qualifying(l) {
		// AddBadge добавляет только отсутствующий значок: параллельная оценка не выдаст его дважды
		added, err := e.store.AddBadge(ctx, userID, id)
		if err != nil {
			return awarded, err
		}
		if !added {
			continue
		}
		awarded = append(awarded, id)
		metrics.BadgesAwarded.WithLabelValues(id).Inc()
		log.WithFields(log.Fields{
			"user_id": userID,
			"badge":   id,
		}).Info("Выдан значок")
	}
	return awarded, nil
}
