// Package rewards реализует обмен очков на фасеты ($FC) и фасет на
// предложения партнёров. Все списания — условные UPDATE внутри транзакции.
//
// models.go описывает предложения, историю обменов и результаты операций.
package rewards

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PointsPerFacet — фиксированный курс: 1000 очков = 1 фасета.
const PointsPerFacet = 1000

// FacetScale — число знаков после запятой в балансе фасет (NUMERIC(20,3)).
const FacetScale = 3

// FacetsFor переводит очки в фасеты по курсу. Результат точный: 1 очко = 0,001 фасеты.
func FacetsFor(points int64) decimal.Decimal {
	return decimal.New(points, -FacetScale)
}

// Offer — предложение партнёра (строка partner_offers).
type Offer struct {
	ID        uuid.UUID       `json:"id"`
	PartnerID string          `json:"partner_id"`
	Title     string          `json:"title"`
	FacetCost decimal.Decimal `json:"facet_cost"`
	OfferType string          `json:"offer_type"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewOffer — данные для создания предложения.
type NewOffer struct {
	PartnerID string
	Title     string
	FacetCost decimal.Decimal
	OfferType string
}

// Redemption — запись журнала обменов (строка redemptions).
type Redemption struct {
	ID             uuid.UUID       `json:"id"`
	UserID         string          `json:"user_id"`
	OfferID        uuid.UUID       `json:"offer_id"`
	OfferTitle     string          `json:"offer_title,omitempty"`
	FacetsSpent    decimal.Decimal `json:"facets_spent"`
	IdempotencyKey string          `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Receipt — итог транзакции обмена.
type Receipt struct {
	Redemption *Redemption
	Offer      *Offer
	Balance    decimal.Decimal // Баланс фасет после обмена
	Replayed   bool            // Обмен с тем же Idempotency-Key уже был выполнен
}

// ConversionResult — ответ POST /gamification/convert.
type ConversionResult struct {
	PointsConverted  int64           `json:"points_converted"`
	FacetsCredited   decimal.Decimal `json:"facets_credited"`
	NewPointsBalance int64           `json:"new_points_balance"`
	NewFacetsBalance decimal.Decimal `json:"new_facets_balance"`
}

// RedemptionResult — ответ POST /gamification/redeem.
type RedemptionResult struct {
	NewFacetsBalance decimal.Decimal `json:"new_facets_balance"`
	Message          string          `json:"message"`
	RedemptionID     uuid.UUID       `json:"redemption_id"`
	Replayed         bool            `json:"replayed,omitempty"`
}
