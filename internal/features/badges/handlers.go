// Package badges — handlers.go отдаёт каталог значков с отметкой о получении.
package badges

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"facebrasil.com.br/gamification/internal/auth"
	"facebrasil.com.br/gamification/internal/features/ledger"
	"facebrasil.com.br/gamification/internal/httpx"
)

// LedgerReader читает журнал пользователя (нулевое состояние для новых).
type LedgerReader interface {
	Ledger(ctx context.Context, userID string) (*ledger.Ledger, error)
}

// BadgeView — значок каталога для ответа API.
type BadgeView struct {
	Badge
	Earned bool `json:"earned"`
}

// Handler обрабатывает запросы каталога значков.
type Handler struct {
	ledgers LedgerReader
}

// NewHandler создаёт обработчик.
func NewHandler(ledgers LedgerReader) *Handler {
	return &Handler{ledgers: ledgers}
}

// Register подключает маршруты.
func (h *Handler) Register(r chi.Router) {
	r.Get("/badges", h.HandleList)
}

// HandleList — GET /gamification/badges.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	l, err := h.ledgers.Ledger(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}

	views := make([]BadgeView, 0, len(catalog))
	for _, b := range catalog {
		views = append(views, BadgeView{Badge: b, Earned: l.HasBadge(b.ID)})
	}
	httpx.RespondJSON(w, http.StatusOK, views)
}
