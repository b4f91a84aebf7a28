// Package rewards — store.go выполняет конвертацию и обмен в транзакциях PostgreSQL.
package rewards

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"facebrasil.com.br/gamification/internal/common"
	"facebrasil.com.br/gamification/internal/db/postgres"
	"facebrasil.com.br/gamification/internal/features/activity"
	"facebrasil.com.br/gamification/internal/features/ledger"
)

// PgStore — транзакционное хранилище обменов.
type PgStore struct {
	runner         *postgres.Runner
	firstLevelName string // Название уровня 1 для новых строк журнала
}

// NewPgStore создаёт хранилище.
func NewPgStore(runner *postgres.Runner, levels *ledger.Levels) *PgStore {
	return &PgStore{runner: runner, firstLevelName: levels.Name(1)}
}

// Convert списывает очки, начисляет фасеты и пишет служебную запись в журнал активности.
// При нехватке очков ничего не меняется.
func (s *PgStore) Convert(ctx context.Context, userID string, points int64, facets decimal.Decimal) (*ConversionResult, error) {
	var result *ConversionResult
	err := s.runner.InTx(ctx, func(tx pgx.Tx) error {
		ledgers := ledger.NewRepository(tx)

		total, err := ledgers.DebitPoints(ctx, userID, points)
		if err != nil {
			return err
		}
		balance, err := ledgers.CreditFacets(ctx, userID, facets, s.firstLevelName)
		if err != nil {
			return err
		}
		_, err = activity.NewRepository(tx).InsertSystemEntry(ctx, userID, activity.KindConversion, -points, map[string]any{
			"facets": facets.StringFixed(FacetScale),
		})
		if err != nil {
			return err
		}

		result = &ConversionResult{
			PointsConverted:  points,
			FacetsCredited:   facets,
			NewPointsBalance: total,
			NewFacetsBalance: balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Redeem списывает стоимость предложения и записывает обмен.
//
// Обмен вставляется первым: при повторе Idempotency-Key вставка ничего не делает
// и возвращается исходный обмен без списания. Тот же ключ для другого предложения
// возвращает common.ErrIdempotencyConflict. Нехватка фасет откатывает вставку.
func (s *PgStore) Redeem(ctx context.Context, userID string, offerID uuid.UUID, idempotencyKey string) (*Receipt, error) {
	var receipt *Receipt
	err := s.runner.InTx(ctx, func(tx pgx.Tx) error {
		offers := NewRepository(tx)
		ledgers := ledger.NewRepository(tx)

		offer, found, err := offers.GetOffer(ctx, offerID)
		if err != nil {
			return err
		}
		if !found {
			return common.ErrOfferNotFound
		}

		rd := &Redemption{
			ID:             uuid.New(),
			UserID:         userID,
			OfferID:        offer.ID,
			OfferTitle:     offer.Title,
			FacetsSpent:    offer.FacetCost,
			IdempotencyKey: idempotencyKey,
		}
		inserted, err := offers.InsertRedemption(ctx, rd)
		if err != nil {
			return err
		}
		if !inserted {
			prev, found, err := offers.FindRedemptionByKey(ctx, userID, idempotencyKey)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("обмен с ключом %q не найден после конфликта", idempotencyKey)
			}
			if prev.OfferID != offer.ID {
				return common.ErrIdempotencyConflict
			}
			l, _, err := ledgers.Get(ctx, userID)
			if err != nil {
				return err
			}
			receipt = &Receipt{Redemption: prev, Offer: offer, Replayed: true}
			if l != nil {
				receipt.Balance = l.FacetsBalance
			}
			return nil
		}

		if !offer.IsActive {
			return common.ErrOfferInactive
		}
		balance, err := ledgers.DebitFacets(ctx, userID, offer.FacetCost)
		if err != nil {
			return err
		}
		receipt = &Receipt{Redemption: rd, Offer: offer, Balance: balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// ListActiveOffers возвращает включённые предложения.
func (s *PgStore) ListActiveOffers(ctx context.Context) ([]*Offer, error) {
	offers, err := NewRepository(s.runner.Pool()).ListActiveOffers(ctx)
	return offers, postgres.Classify(err)
}

// ListRedemptions возвращает историю обменов пользователя.
func (s *PgStore) ListRedemptions(ctx context.Context, userID string, limit int) ([]*Redemption, error) {
	out, err := NewRepository(s.runner.Pool()).ListRedemptions(ctx, userID, limit)
	return out, postgres.Classify(err)
}

// CreateOffer сохраняет новое предложение.
func (s *PgStore) CreateOffer(ctx context.Context, o *Offer) error {
	return s.runner.Do(ctx, func(ctx context.Context) error {
		return NewRepository(s.runner.Pool()).CreateOffer(ctx, o)
	})
}

// SetOfferActive меняет флаг активности предложения.
func (s *PgStore) SetOfferActive(ctx context.Context, id uuid.UUID, active bool) (*Offer, error) {
	var offer *Offer
	err := s.runner.Do(ctx, func(ctx context.Context) error {
		o, found, err := NewRepository(s.runner.Pool()).SetOfferActive(ctx, id, active)
		if err != nil {
			return err
		}
		if !found {
			return common.ErrOfferNotFound
		}
		offer = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return offer, nil
}
