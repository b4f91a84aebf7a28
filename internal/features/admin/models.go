// Package admin реализует доступ администратора с парольной аутентификацией:
// пароль (Argon2id) → сессия с ограниченным сроком → заголовок X-Admin-Session.
// models.go описывает структуры сессий и попыток входа.
package admin

import "time"

// SessionHeader — заголовок с токеном сессии администратора.
const SessionHeader = "X-Admin-Session"

// Ограничения на попытки входа
const (
	MaxFailedAttempts = 3         // Неудачных попыток до блокировки
	LockoutWindow     = time.Hour // Окно подсчёта неудачных попыток
)

// Session — сессия администратора.
type Session struct {
	ID              int64     `db:"id"`
	UserID          string    `db:"user_id"`
	SessionToken    string    `db:"session_token"`
	AuthenticatedAt time.Time `db:"authenticated_at"`
	ExpiresAt       time.Time `db:"expires_at"`
	LastActivity    time.Time `db:"last_activity"`
	IsActive        bool      `db:"is_active"`
}

// LoginAttempt — попытка входа (для защиты от brute-force).
type LoginAttempt struct {
	ID          int64     `db:"id"`
	UserID      string    `db:"user_id"`
	AttemptTime time.Time `db:"attempt_time"`
	Success     bool      `db:"success"`
}

// LoginResult — ответ POST /admin/login.
type LoginResult struct {
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}
