// Package activity — repository.go работает с таблицей activity_events.
// Дедупликация — частичный UNIQUE-индекс (user_id, kind, dedupe_key),
// повтор по клиентскому токену — частичный UNIQUE-индекс (user_id, idempotency_key).
package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"facebrasil.com.br/gamification/internal/db/postgres"
)

const eventColumns = `id, user_id, target_id, kind, points_awarded, validated, deferred_credit,
	COALESCE(dedupe_key, ''), COALESCE(idempotency_key, ''), metadata, created_at`

// Repository предоставляет методы для работы с событиями активности.
type Repository struct {
	db postgres.DBTX
}

// NewRepository создаёт репозиторий событий (на пуле или транзакции).
func NewRepository(db postgres.DBTX) *Repository {
	return &Repository{db: db}
}

func scanEvent(row pgx.Row) (*Event, error) {
	var ev Event
	var kind string
	var metadata []byte
	err := row.Scan(
		&ev.ID, &ev.UserID, &ev.TargetID, &kind, &ev.PointsAwarded, &ev.Validated, &ev.DeferredCredit,
		&ev.DedupeKey, &ev.IdempotencyKey, &metadata, &ev.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	ev.Kind = Kind(kind)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &ev.Metadata); err != nil {
			return nil, fmt.Errorf("некорректные metadata события %s: %w", ev.ID, err)
		}
	}
	return &ev, nil
}

// Insert вставляет событие, если его ключи дедупликации и идемпотентности свободны.
// Возвращает false без ошибки, если событие уже записано (ON CONFLICT DO NOTHING).
func (r *Repository) Insert(ctx context.Context, ev *Event) (bool, error) {
	metadata, err := json.Marshal(ev.Metadata)
	if err != nil {
		return false, fmt.Errorf("ошибка сериализации metadata: %w", err)
	}
	if ev.Metadata == nil {
		metadata = []byte("{}")
	}

	err = r.db.QueryRow(ctx, `
		INSERT INTO activity_events (id, user_id, target_id, kind, points_awarded, validated,
			deferred_credit, dedupe_key, idempotency_key, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10::jsonb)
		ON CONFLICT DO NOTHING
		RETURNING created_at
	`, ev.ID, ev.UserID, ev.TargetID, string(ev.Kind), ev.PointsAwarded, ev.Validated,
		ev.DeferredCredit, ev.DedupeKey, ev.IdempotencyKey, string(metadata),
	).Scan(&ev.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ошибка записи события: %w", err)
	}
	return true, nil
}

// InsertSystemEntry пишет служебную запись журнала (например, списание при конвертации).
// Такие записи не участвуют в дедупликации и сразу считаются проверенными.
func (r *Repository) InsertSystemEntry(ctx context.Context, userID string, kind Kind, points int64, metadata map[string]any) (*Event, error) {
	ev := &Event{
		ID:            uuid.New(),
		UserID:        userID,
		Kind:          kind,
		PointsAwarded: points,
		Validated:     true,
		Metadata:      metadata,
	}
	inserted, err := r.Insert(ctx, ev)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, fmt.Errorf("служебная запись %s не вставлена", ev.ID)
	}
	return ev, nil
}

// Get возвращает событие по id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Event, bool, error) {
	ev, err := scanEvent(r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM activity_events WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка получения события: %w", err)
	}
	return ev, true, nil
}

// FindByIdempotencyKey ищет ранее записанное событие пользователя по клиентскому токену.
func (r *Repository) FindByIdempotencyKey(ctx context.Context, userID, key string) (*Event, bool, error) {
	ev, err := scanEvent(r.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM activity_events WHERE user_id = $1 AND idempotency_key = $2`,
		userID, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка поиска по idempotency_key: %w", err)
	}
	return ev, true, nil
}

// MarkValidated переводит validated false→true одним условным UPDATE.
// Возвращает событие и true, если флаг изменил именно этот вызов.
func (r *Repository) MarkValidated(ctx context.Context, id uuid.UUID) (*Event, bool, error) {
	ev, err := scanEvent(r.db.QueryRow(ctx, `
		UPDATE activity_events SET validated = TRUE
		WHERE id = $1 AND validated = FALSE
		RETURNING `+eventColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка модерации события: %w", err)
	}
	return ev, true, nil
}

// ListPending возвращает события, ожидающие модерации (старые первыми).
func (r *Repository) ListPending(ctx context.Context, limit int) ([]*Event, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+eventColumns+`
		FROM activity_events
		WHERE validated = FALSE
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения очереди модерации: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования события: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
