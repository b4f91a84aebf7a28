// Package admin — repository.go работает с таблицами admin_sessions и admin_login_attempts.
package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"facebrasil.com.br/gamification/internal/db/postgres"
)

// Repository работает с админ-таблицами.
type Repository struct {
	db postgres.DBTX
}

// NewRepository создаёт репозиторий.
func NewRepository(db postgres.DBTX) *Repository {
	return &Repository{db: db}
}

// CreateSession создаёт новую сессию администратора.
func (r *Repository) CreateSession(ctx context.Context, session *Session) error {
	query := `
		INSERT INTO admin_sessions (user_id, session_token, expires_at, is_active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id, authenticated_at, last_activity
	`
	err := r.db.QueryRow(ctx, query, session.UserID, session.SessionToken, session.ExpiresAt).
		Scan(&session.ID, &session.AuthenticatedAt, &session.LastActivity)
	if err != nil {
		return fmt.Errorf("ошибка создания сессии: %w", err)
	}
	session.IsActive = true
	return nil
}

// FindSession возвращает активную сессию по токену (включая истёкшие, срок проверяет сервис).
func (r *Repository) FindSession(ctx context.Context, token string) (*Session, bool, error) {
	query := `
		SELECT id, user_id, session_token, authenticated_at, expires_at, last_activity, is_active
		FROM admin_sessions
		WHERE session_token = $1 AND is_active = TRUE
	`
	var s Session
	err := r.db.QueryRow(ctx, query, token).Scan(
		&s.ID, &s.UserID, &s.SessionToken, &s.AuthenticatedAt,
		&s.ExpiresAt, &s.LastActivity, &s.IsActive,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка поиска сессии: %w", err)
	}
	return &s, true, nil
}

// DeactivateSession деактивирует сессию по токену.
func (r *Repository) DeactivateSession(ctx context.Context, token string) error {
	query := `UPDATE admin_sessions SET is_active = FALSE WHERE session_token = $1`
	_, err := r.db.Exec(ctx, query, token)
	return err
}

// UpdateActivity обновляет время последней активности.
func (r *Repository) UpdateActivity(ctx context.Context, token string) error {
	query := `UPDATE admin_sessions SET last_activity = NOW() WHERE session_token = $1 AND is_active = TRUE`
	_, err := r.db.Exec(ctx, query, token)
	return err
}

// LogAttempt записывает попытку входа.
func (r *Repository) LogAttempt(ctx context.Context, userID string, success bool) error {
	query := `INSERT INTO admin_login_attempts (user_id, success) VALUES ($1, $2)`
	_, err := r.db.Exec(ctx, query, userID, success)
	return err
}

// CountFailedAttempts возвращает количество неудачных попыток с момента since.
func (r *Repository) CountFailedAttempts(ctx context.Context, userID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM admin_login_attempts
		WHERE user_id = $1 AND success = FALSE AND attempt_time >= $2
	`
	var count int
	err := r.db.QueryRow(ctx, query, userID, since).Scan(&count)
	return count, err
}

// DeleteExpired удаляет истёкшие и деактивированные сессии и старые попытки входа.
func (r *Repository) DeleteExpired(ctx context.Context, attemptsBefore time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM admin_sessions WHERE expires_at < NOW() OR is_active = FALSE`)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки сессий: %w", err)
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM admin_login_attempts WHERE attempt_time < $1`, attemptsBefore); err != nil {
		return 0, fmt.Errorf("ошибка очистки попыток входа: %w", err)
	}
	return tag.RowsAffected(), nil
}
