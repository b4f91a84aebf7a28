// Package rewards — repository.go работает с таблицами partner_offers и redemptions.
package rewards

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"facebrasil.com.br/gamification/internal/db/postgres"
)

const offerColumns = `id, partner_id, title, facet_cost::text, offer_type, is_active, created_at`

const redemptionColumns = `r.id, r.user_id, r.offer_id, COALESCE(o.title, ''), r.facets_spent::text,
	COALESCE(r.idempotency_key, ''), r.created_at`

// Repository предоставляет методы для работы с предложениями и обменами.
type Repository struct {
	db postgres.DBTX
}

// NewRepository создаёт репозиторий (на пуле или транзакции).
func NewRepository(db postgres.DBTX) *Repository {
	return &Repository{db: db}
}

func scanOffer(row pgx.Row) (*Offer, error) {
	var o Offer
	var cost string
	if err := row.Scan(&o.ID, &o.PartnerID, &o.Title, &cost, &o.OfferType, &o.IsActive, &o.CreatedAt); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(cost)
	if err != nil {
		return nil, fmt.Errorf("некорректная стоимость предложения %s: %w", o.ID, err)
	}
	o.FacetCost = d
	return &o, nil
}

func scanRedemption(row pgx.Row) (*Redemption, error) {
	var rd Redemption
	var spent string
	err := row.Scan(&rd.ID, &rd.UserID, &rd.OfferID, &rd.OfferTitle, &spent, &rd.IdempotencyKey, &rd.CreatedAt)
	if err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(spent)
	if err != nil {
		return nil, fmt.Errorf("некорректная сумма обмена %s: %w", rd.ID, err)
	}
	rd.FacetsSpent = d
	return &rd, nil
}

// GetOffer возвращает предложение по id.
func (r *Repository) GetOffer(ctx context.Context, id uuid.UUID) (*Offer, bool, error) {
	o, err := scanOffer(r.db.QueryRow(ctx, `SELECT `+offerColumns+` FROM partner_offers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка получения предложения: %w", err)
	}
	return o, true, nil
}

// ListActiveOffers возвращает включённые предложения (дешёвые первыми).
func (r *Repository) ListActiveOffers(ctx context.Context) ([]*Offer, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+offerColumns+`
		FROM partner_offers
		WHERE is_active = TRUE
		ORDER BY facet_cost ASC, title ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения предложений: %w", err)
	}
	defer rows.Close()

	var offers []*Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования предложения: %w", err)
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

// CreateOffer добавляет предложение партнёра.
func (r *Repository) CreateOffer(ctx context.Context, o *Offer) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO partner_offers (id, partner_id, title, facet_cost, offer_type, is_active)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)
		RETURNING created_at
	`, o.ID, o.PartnerID, o.Title, o.FacetCost.String(), o.OfferType, o.IsActive).Scan(&o.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания предложения: %w", err)
	}
	return nil
}

// SetOfferActive включает или выключает предложение.
func (r *Repository) SetOfferActive(ctx context.Context, id uuid.UUID, active bool) (*Offer, bool, error) {
	o, err := scanOffer(r.db.QueryRow(ctx, `
		UPDATE partner_offers SET is_active = $2
		WHERE id = $1
		RETURNING `+offerColumns, id, active))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка изменения предложения: %w", err)
	}
	return o, true, nil
}

// InsertRedemption записывает обмен. Возвращает false без ошибки, если обмен
// с тем же Idempotency-Key этого пользователя уже записан.
func (r *Repository) InsertRedemption(ctx context.Context, rd *Redemption) (bool, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO redemptions (id, user_id, offer_id, facets_spent, idempotency_key)
		VALUES ($1, $2, $3, $4::numeric, NULLIF($5, ''))
		ON CONFLICT DO NOTHING
		RETURNING created_at
	`, rd.ID, rd.UserID, rd.OfferID, rd.FacetsSpent.String(), rd.IdempotencyKey).Scan(&rd.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ошибка записи обмена: %w", err)
	}
	return true, nil
}

// FindRedemptionByKey ищет обмен пользователя по клиентскому токену.
func (r *Repository) FindRedemptionByKey(ctx context.Context, userID, key string) (*Redemption, bool, error) {
	rd, err := scanRedemption(r.db.QueryRow(ctx, `
		SELECT `+redemptionColumns+`
		FROM redemptions r
		LEFT JOIN partner_offers o ON o.id = r.offer_id
		WHERE r.user_id = $1 AND r.idempotency_key = $2
	`, userID, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка поиска обмена: %w", err)
	}
	return rd, true, nil
}

// ListRedemptions возвращает последние обмены пользователя.
func (r *Repository) ListRedemptions(ctx context.Context, userID string, limit int) ([]*Redemption, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+redemptionColumns+`
		FROM redemptions r
		LEFT JOIN partner_offers o ON o.id = r.offer_id
		WHERE r.user_id = $1
		ORDER BY r.created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории обменов: %w", err)
	}
	defer rows.Close()

	var out []*Redemption
	for rows.Next() {
		rd, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования обмена: %w", err)
		}
		out = append(out, rd)
	}
	return out, rows.Err()
}
