// Package httpx содержит общие помощники HTTP-слоя: запись JSON-ответов,
// перевод доменных ошибок в статусы и разбор тел запросов с валидацией.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"facebrasil.com.br/gamification/internal/common"
)

// maxBodyBytes — предельный размер тела запроса.
const maxBodyBytes = 64 << 10

// IdempotencyHeader — заголовок клиентского токена идемпотентности.
const IdempotencyHeader = "Idempotency-Key"

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrorResponse — тело ответа с ошибкой.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusByCode — HTTP-статус для каждого кода доменной ошибки.
var statusByCode = map[string]int{
	common.ErrUnauthorized.Code:        http.StatusUnauthorized,
	common.ErrUnknownActionKind.Code:   http.StatusBadRequest,
	common.ErrInvalidTarget.Code:       http.StatusBadRequest,
	common.ErrInvalidAmount.Code:       http.StatusBadRequest,
	common.ErrInvalidPeriod.Code:       http.StatusBadRequest,
	common.ErrInsufficientPoints.Code:  http.StatusUnprocessableEntity,
	common.ErrInsufficientFacets.Code:  http.StatusUnprocessableEntity,
	common.ErrOfferNotFound.Code:       http.StatusNotFound,
	common.ErrActivityNotFound.Code:    http.StatusNotFound,
	common.ErrOfferInactive.Code:       http.StatusConflict,
	common.ErrIdempotencyConflict.Code: http.StatusConflict,
	common.ErrStorageConflict.Code:     http.StatusConflict,
	common.ErrStorageUnavailable.Code:  http.StatusServiceUnavailable,
	common.ErrNotAdmin.Code:            http.StatusForbidden,
	common.ErrWrongPassword.Code:       http.StatusUnauthorized,
	common.ErrSessionExpired.Code:      http.StatusUnauthorized,
	common.ErrTooManyAttempts.Code:     http.StatusTooManyRequests,
	common.ErrRateLimited.Code:         http.StatusTooManyRequests,
}

// StatusFor возвращает HTTP-статус для ошибки (500 для неизвестных).
func StatusFor(err error) int {
	if status, ok := statusByCode[common.CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// RespondJSON пишет JSON-ответ с заданным статусом.
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.WithError(err).Error("Ошибка сериализации ответа")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// RespondError переводит ошибку в ответ {"error": код, "message": текст}.
// Внутренние ошибки логируются, клиенту уходит общий текст.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	var domainErr *common.Error
	if errors.As(err, &domainErr) {
		RespondJSON(w, StatusFor(err), ErrorResponse{Error: domainErr.Code, Message: domainErr.Message})
		return
	}

	log.WithFields(log.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	}).WithError(err).Error("Необработанная ошибка запроса")
	RespondJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "erro interno",
	})
}

// RespondBadRequest отвечает 400 с кодом invalid_request.
func RespondBadRequest(w http.ResponseWriter, message string) {
	RespondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: message})
}

// DecodeJSON читает тело запроса в dst и проверяет теги validate.
// При ошибке сам отвечает 400 и возвращает false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		RespondBadRequest(w, fmt.Sprintf("corpo inválido: %v", err))
		return false
	}
	if err := validate.Struct(dst); err != nil {
		RespondBadRequest(w, fmt.Sprintf("validação falhou: %v", err))
		return false
	}
	return true
}
