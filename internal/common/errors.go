// Package common — errors.go определяет типизированные ошибки,
// которые используются во всех модулях движка репутации.
// Каждая ошибка несёт стабильный машинный код, по которому HTTP-слой
// выбирает статус ответа, и текст, который показывается читателю портала.
package common

import "errors"

// Error — доменная ошибка со стабильным кодом.
// Сравнивать через errors.Is: обёртки %w сохраняют исходное значение.
type Error struct {
	Code    string // Машинный код, например "insufficient_points"
	Message string // Сообщение для пользователя (португальский)
}

func (e *Error) Error() string {
	return e.Message
}

// newError создаёт доменную ошибку.
func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// CodeOf возвращает машинный код доменной ошибки или "" для прочих ошибок.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Ошибки идентификации и валидации запроса
var (
	// ErrUnauthorized — у запроса нет проверенного пользователя
	ErrUnauthorized = newError("unauthorized", "autenticação necessária")
	// ErrUnknownActionKind — вида действия нет в каталоге
	ErrUnknownActionKind = newError("unknown_action_kind", "tipo de ação desconhecido")
	// ErrInvalidTarget — для действия с дедупликацией по цели не передан target_id
	ErrInvalidTarget = newError("invalid_target", "target_id é obrigatório para esta ação")
	// ErrInvalidAmount — некорректная сумма (ноль или отрицательная)
	ErrInvalidAmount = newError("invalid_amount", "o valor deve ser positivo")
	// ErrInvalidPeriod — неизвестный период рейтинга
	ErrInvalidPeriod = newError("invalid_period", "período inválido (weekly, monthly ou all-time)")
)

// Ошибки учёта очков и фасет
var (
	// ErrDuplicateActivity — действие уже засчитано; сервис отвечает accepted=false
	ErrDuplicateActivity = newError("duplicate_activity", "atividade já registrada")
	// ErrIdempotencyConflict — Idempotency-Key уже использован для другого запроса
	ErrIdempotencyConflict = newError("idempotency_conflict", "chave de idempotência já usada em outra requisição")
	// ErrInsufficientPoints — очков меньше, чем нужно списать
	ErrInsufficientPoints = newError("insufficient_points", "pontos insuficientes")
	// ErrInsufficientFacets — фасет меньше стоимости предложения
	ErrInsufficientFacets = newError("insufficient_facets", "facetas insuficientes")
	// ErrOfferNotFound — предложение партнёра не найдено
	ErrOfferNotFound = newError("offer_not_found", "oferta não encontrada")
	// ErrOfferInactive — предложение выключено
	ErrOfferInactive = newError("offer_inactive", "oferta indisponível")
	// ErrActivityNotFound — событие для модерации не найдено
	ErrActivityNotFound = newError("activity_not_found", "atividade não encontrada")
)

// Ошибки хранилища
var (
	// ErrStorageConflict — конфликт сериализации не разрешился за отведённые попытки
	ErrStorageConflict = newError("storage_conflict", "conflito de concorrência, tente novamente")
	// ErrStorageUnavailable — база данных временно недоступна
	ErrStorageUnavailable = newError("storage_unavailable", "serviço temporariamente indisponível")
)

// Ошибки админки
var (
	// ErrNotAdmin — нет действующей сессии администратора
	ErrNotAdmin = newError("not_admin", "acesso restrito a administradores")
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = newError("wrong_password", "senha incorreta")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = newError("too_many_attempts", "muitas tentativas, aguarde 1 hora")
	// ErrSessionExpired — сессия истекла
	ErrSessionExpired = newError("session_expired", "sessão expirada, faça login novamente")
)

// ErrRateLimited — превышен лимит запросов пользователя
var ErrRateLimited = newError("rate_limited", "muitas requisições, tente novamente em instantes")
