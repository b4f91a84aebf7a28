// Package rewards — service.go содержит бизнес-логику обменов:
// проверку сумм, курс конвертации, уведомления и администрирование предложений.
package rewards

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"facebrasil.com.br/gamification/internal/common"
	"facebrasil.com.br/gamification/internal/metrics"
	"facebrasil.com.br/gamification/internal/notify"
)

// DefaultHistoryLimit — размер истории обменов по умолчанию.
const DefaultHistoryLimit = 20

// Store — операции хранилища обменов.
type Store interface {
	Convert(ctx context.Context, userID string, points int64, facets decimal.Decimal) (*ConversionResult, error)
	Redeem(ctx context.Context, userID string, offerID uuid.UUID, idempotencyKey string) (*Receipt, error)
	ListActiveOffers(ctx context.Context) ([]*Offer, error)
	ListRedemptions(ctx context.Context, userID string, limit int) ([]*Redemption, error)
	CreateOffer(ctx context.Context, o *Offer) error
	SetOfferActive(ctx context.Context, id uuid.UUID, active bool) (*Offer, error)
}

// Service управляет обменами очков и фасет.
type Service struct {
	store     Store
	publisher notify.Publisher
}

// NewService создаёт сервис обменов.
func NewService(store Store, publisher notify.Publisher) *Service {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	return &Service{store: store, publisher: publisher}
}

// outcome — метка результата для метрик.
func outcome(err error) string {
	if code := common.CodeOf(err); code != "" {
		return code
	}
	return "error"
}

// Convert переводит очки в фасеты по курсу 1000:1.
// Проверки:
//   - пользователь определён
//   - сумма положительна
//   - очков достаточно (проверяется условным UPDATE в хранилище)
func (s *Service) Convert(ctx context.Context, userID string, points int64) (*ConversionResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, common.ErrUnauthorized
	}
	if points <= 0 {
		metrics.Conversions.WithLabelValues(common.ErrInvalidAmount.Code).Inc()
		return nil, common.ErrInvalidAmount
	}

	res, err := s.store.Convert(ctx, userID, points, FacetsFor(points))
	if err != nil {
		metrics.Conversions.WithLabelValues(outcome(err)).Inc()
		return nil, err
	}
	metrics.Conversions.WithLabelValues("ok").Inc()

	log.WithFields(log.Fields{
		"user_id": userID,
		"points":  points,
		"facets":  res.FacetsCredited.String(),
	}).Info("Очки конвертированы в фасеты")
	return res, nil
}

// Redeem обменивает фасеты на предложение партнёра.
// Повтор с тем же Idempotency-Key возвращает исходный обмен без нового списания,
// тот же ключ для другого предложения отклоняется с common.ErrIdempotencyConflict.
func (s *Service) Redeem(ctx context.Context, userID string, offerID uuid.UUID, idempotencyKey string) (*RedemptionResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, common.ErrUnauthorized
	}

	receipt, err := s.store.Redeem(ctx, userID, offerID, strings.TrimSpace(idempotencyKey))
	if err != nil {
		metrics.Redemptions.WithLabelValues(outcome(err)).Inc()
		return nil, err
	}

	title := receipt.Redemption.OfferTitle
	if title == "" {
		title = receipt.Offer.Title
	}
	result := &RedemptionResult{
		NewFacetsBalance: receipt.Balance,
		Message:          fmt.Sprintf("Resgate confirmado: %s", title),
		RedemptionID:     receipt.Redemption.ID,
		Replayed:         receipt.Replayed,
	}
	if receipt.Replayed {
		metrics.Redemptions.WithLabelValues("replayed").Inc()
		return result, nil
	}
	metrics.Redemptions.WithLabelValues("ok").Inc()

	s.publisher.Publish(notify.Event{
		Type:       notify.EventRedeemed,
		UserID:     userID,
		OfferID:    receipt.Offer.ID.String(),
		OfferTitle: receipt.Offer.Title,
		Facets:     receipt.Offer.FacetCost,
	})

	log.WithFields(log.Fields{
		"user_id":  userID,
		"offer_id": offerID,
		"cost":     receipt.Offer.FacetCost.String(),
	}).Info("Предложение обменено")
	return result, nil
}

// Offers возвращает включённые предложения.
func (s *Service) Offers(ctx context.Context) ([]*Offer, error) {
	offers, err := s.store.ListActiveOffers(ctx)
	if err != nil {
		return nil, err
	}
	if offers == nil {
		offers = []*Offer{}
	}
	return offers, nil
}

// Redemptions возвращает историю обменов пользователя.
func (s *Service) Redemptions(ctx context.Context, userID string, limit int) ([]*Redemption, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, common.ErrUnauthorized
	}
	if limit <= 0 || limit > 100 {
		limit = DefaultHistoryLimit
	}
	out, err := s.store.ListRedemptions(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*Redemption{}
	}
	return out, nil
}

// CreateOffer добавляет предложение партнёра (только администратор).
func (s *Service) CreateOffer(ctx context.Context, in NewOffer) (*Offer, error) {
	if !in.FacetCost.IsPositive() {
		return nil, common.ErrInvalidAmount
	}
	offer := &Offer{
		ID:        uuid.New(),
		PartnerID: strings.TrimSpace(in.PartnerID),
		Title:     strings.TrimSpace(in.Title),
		FacetCost: in.FacetCost.Round(FacetScale),
		OfferType: strings.TrimSpace(in.OfferType),
		IsActive:  true,
	}
	if !offer.FacetCost.IsPositive() {
		return nil, common.ErrInvalidAmount
	}
	if err := s.store.CreateOffer(ctx, offer); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"offer_id": offer.ID,
		"partner":  offer.PartnerID,
		"cost":     offer.FacetCost.String(),
	}).Info("Создано предложение партнёра")
	return offer, nil
}

// SetOfferActive включает или выключает предложение (только администратор).
func (s *Service) SetOfferActive(ctx context.Context, id uuid.UUID, active bool) (*Offer, error) {
	offer, err := s.store.SetOfferActive(ctx, id, active)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"offer_id": id, "active": active}).Info("Предложение изменено")
	return offer, nil
}
