// Package ledger — handlers.go обрабатывает HTTP-запросы баланса и рейтинга.
package ledger

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"facebrasil.com.br/gamification/internal/auth"
	"facebrasil.com.br/gamification/internal/httpx"
)

// Handler обрабатывает запросы к журналу.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик журнала.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register подключает маршруты к роутеру (роутер уже требует авторизацию).
func (h *Handler) Register(r chi.Router) {
	r.Get("/balance", h.HandleBalance)
	r.Get("/leaderboard", h.HandleLeaderboard)
}

// HandleBalance — GET /gamification/balance.
func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.service.Balance(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, balance)
}

// HandleLeaderboard — GET /gamification/leaderboard?period=weekly|monthly|all-time&limit=N.
func (h *Handler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	period, err := ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}

	limit := DefaultLeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > MaxLeaderboardLimit {
			httpx.RespondBadRequest(w, "limit deve estar entre 1 e 100")
			return
		}
	}

	entries, err := h.service.Leaderboard(r.Context(), period, limit)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, entries)
}
