// Package admin — service.go содержит логику аутентификации и управления сессиями.
package admin

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"facebrasil.com.br/gamification/internal/common"
)

// Store — операции хранилища сессий.
type Store interface {
	CreateSession(ctx context.Context, session *Session) error
	FindSession(ctx context.Context, token string) (*Session, bool, error)
	DeactivateSession(ctx context.Context, token string) error
	UpdateActivity(ctx context.Context, token string) error
	LogAttempt(ctx context.Context, userID string, success bool) error
	CountFailedAttempts(ctx context.Context, userID string, since time.Time) (int, error)
	DeleteExpired(ctx context.Context, attemptsBefore time.Time) (int64, error)
}

// Service управляет доступом администратора.
type Service struct {
	store        Store
	passwordHash string        // Argon2id-хеш пароля администратора
	sessionTTL   time.Duration // Срок жизни сессии
	now          func() time.Time
}

// NewService создаёт сервис админ-доступа.
func NewService(store Store, passwordHash string, sessionTTL time.Duration) *Service {
	return &Service{
		store:        store,
		passwordHash: passwordHash,
		sessionTTL:   sessionTTL,
		now:          time.Now,
	}
}

// Login проверяет пароль администратора с использованием Argon2id и открывает сессию.
// Включает защиту от brute-force: 3 неудачные попытки = блокировка на 1 час.
func (s *Service) Login(ctx context.Context, userID, password string) (*LoginResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, common.ErrUnauthorized
	}

	// Проверяем лимит попыток
	attempts, err := s.store.CountFailedAttempts(ctx, userID, s.now().Add(-LockoutWindow))
	if err != nil {
		return nil, err
	}
	if attempts >= MaxFailedAttempts {
		log.WithField("user_id", userID).Warn("Вход администратора заблокирован")
		return nil, common.ErrTooManyAttempts
	}

	match := verifyArgon2id(password, s.passwordHash)

	if err := s.store.LogAttempt(ctx, userID, match); err != nil {
		log.WithError(err).Warn("Не удалось записать попытку входа")
	}

	if !match {
		log.WithFields(log.Fields{"user_id": userID, "attempt": attempts + 1}).Warn("Неверный пароль администратора")
		return nil, common.ErrWrongPassword
	}

	session := &Session{
		UserID:       userID,
		SessionToken: generateSecureToken(),
		ExpiresAt:    s.now().Add(s.sessionTTL),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	log.WithField("user_id", userID).Info("Администратор вошёл")
	return &LoginResult{SessionToken: session.SessionToken, ExpiresAt: session.ExpiresAt}, nil
}

// Authorize проверяет токен сессии и возвращает сессию.
// Пустой токен → common.ErrNotAdmin, неизвестный или истёкший → common.ErrSessionExpired.
func (s *Service) Authorize(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, common.ErrNotAdmin
	}
	session, found, err := s.store.FindSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if !found || !s.now().Before(session.ExpiresAt) {
		return nil, common.ErrSessionExpired
	}
	if err := s.store.UpdateActivity(ctx, token); err != nil {
		log.WithError(err).Debug("Не удалось обновить активность сессии")
	}
	return session, nil
}

// Logout закрывает сессию.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return common.ErrNotAdmin
	}
	return s.store.DeactivateSession(ctx, token)
}

// CleanupExpired удаляет истёкшие сессии и устаревшие попытки входа.
// Вызывается планировщиком.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpired(ctx, s.now().Add(-LockoutWindow))
}

// --- Криптографические утилиты ---

// HashParams — параметры Argon2id.
type HashParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultHashParams — параметры по умолчанию (64 MB, 3 прохода, 2 потока).
var DefaultHashParams = HashParams{Memory: 65536, Iterations: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32}

// HashPassword возвращает хеш пароля в формате
// $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>
func HashPassword(password string, p HashParams) (string, error) {
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("ошибка генерации соли: %w", err)
	}
	hash := argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Iterations, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// verifyArgon2id проверяет пароль по хешу Argon2id.
func verifyArgon2id(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		log.Error("Некорректный формат хеша Argon2id")
		return false
	}

	var memory uint32
	var iterations uint32
	var parallelism uint8
	_, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism)
	if err != nil {
		log.WithError(err).Error("Ошибка парсинга параметров Argon2id")
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования соли")
		return false
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования хеша")
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expectedHash)))

	// Сравнение в постоянном времени
	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1
}

// generateSecureToken генерирует криптографически безопасный токен сессии.
func generateSecureToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.EncodeToString(b)
}
