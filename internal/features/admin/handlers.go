// Package admin — handlers.go обрабатывает вход администратора и проверяет сессию.
// Поток: JWT пользователя → POST /admin/login с паролем → токен сессии →
// заголовок X-Admin-Session на каждом админ-запросе.
package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"facebrasil.com.br/gamification/internal/auth"
	"facebrasil.com.br/gamification/internal/common"
	"facebrasil.com.br/gamification/internal/httpx"
)

type loginRequest struct {
	Password string `json:"password" validate:"required,max=256"`
}

// Handler обрабатывает админ-запросы.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик админ-доступа.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register подключает маршруты входа и выхода (роутер уже требует JWT).
func (h *Handler) Register(r chi.Router) {
	r.Post("/login", h.HandleLogin)
	r.Post("/logout", h.HandleLogout)
}

// HandleLogin — POST /admin/login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !httpx.DecodeJSON(w, r, &body) {
		return
	}
	res, err := h.service.Login(r.Context(), auth.UserIDFromContext(r.Context()), body.Password)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, res)
}

// HandleLogout — POST /admin/logout.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), r.Header.Get(SessionHeader)); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RequireSession пропускает запрос только с действующей сессией администратора,
// открытой тем же пользователем, что указан в JWT.
func (h *Handler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := h.service.Authorize(r.Context(), r.Header.Get(SessionHeader))
		if err != nil {
			httpx.RespondError(w, r, err)
			return
		}
		if userID := auth.UserIDFromContext(r.Context()); userID != session.UserID {
			log.WithFields(log.Fields{
				"session_user": session.UserID,
				"token_user":   userID,
			}).Warn("Сессия администратора предъявлена другим пользователем")
			httpx.RespondError(w, r, common.ErrNotAdmin)
			return
		}
		next.ServeHTTP(w, r)
	})
}
