// Package auth проверяет токены провайдера идентификации (JWT HS256)
// и кладёт идентификатор пользователя в контекст запроса.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"

	"facebrasil.com.br/gamification/internal/common"
	"facebrasil.com.br/gamification/internal/httpx"
)

type contextKey string

const userIDKey contextKey = "userID"

// WithUserID возвращает контекст с идентификатором пользователя.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext достаёт идентификатор пользователя ("" если его нет).
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// Verifier проверяет подпись и поля токена.
type Verifier struct {
	secret   []byte
	audience string
	issuer   string
}

// NewVerifier создаёт проверяющего. Пустые audience/issuer не проверяются.
func NewVerifier(secret, audience, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), audience: audience, issuer: issuer}
}

// Verify проверяет токен и возвращает claim sub (идентификатор пользователя).
func (v *Verifier) Verify(tokenString string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("токен недействителен: %w", err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return "", fmt.Errorf("в токене нет sub")
	}
	return sub, nil
}

// Middleware требует заголовок Authorization: Bearer <token>.
// Без валидного токена запрос отклоняется с 401, а не пропускается молча.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString := strings.TrimPrefix(header, "Bearer ")
		if header == "" || tokenString == header {
			httpx.RespondError(w, r, common.ErrUnauthorized)
			return
		}

		userID, err := v.Verify(tokenString)
		if err != nil {
			log.WithField("path", r.URL.Path).WithError(err).Debug("Отклонён запрос без валидного токена")
			httpx.RespondError(w, r, common.ErrUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}
