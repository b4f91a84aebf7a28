// Package activity — handlers.go обрабатывает HTTP-запросы записи действий и модерации.
package activity

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"facebrasil.com.br/gamification/internal/auth"
	"facebrasil.com.br/gamification/internal/httpx"
)

// recordRequest — тело POST /gamification/activity.
type recordRequest struct {
	TargetID string         `json:"target_id" validate:"max=256"`
	Kind     string         `json:"kind" validate:"required,max=64"`
	Metadata map[string]any `json:"metadata"`
}

// Handler обрабатывает запросы активности.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register подключает пользовательские маршруты.
func (h *Handler) Register(r chi.Router) {
	r.Post("/activity", h.HandleRecord)
	r.Get("/actions", h.HandleCatalog)
}

// RegisterAdmin подключает маршруты модерации (роутер уже требует сессию администратора).
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/activities/pending", h.HandlePending)
	r.Post("/activities/{id}/validate", h.HandleValidate)
}

// HandleRecord — POST /gamification/activity.
func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	var body recordRequest
	if !httpx.DecodeJSON(w, r, &body) {
		return
	}
	key := r.Header.Get(httpx.IdempotencyHeader)
	if len(key) > 128 {
		httpx.RespondBadRequest(w, "Idempotency-Key muito longo (máximo 128)")
		return
	}

	out, err := h.service.Record(r.Context(), Request{
		UserID:         auth.UserIDFromContext(r.Context()),
		TargetID:       body.TargetID,
		Kind:           body.Kind,
		Metadata:       body.Metadata,
		IdempotencyKey: key,
	})
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, out)
}

// HandleCatalog — GET /gamification/actions.
func (h *Handler) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	httpx.RespondJSON(w, http.StatusOK, Catalog())
}

// HandleValidate — POST /admin/activities/{id}/validate.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondBadRequest(w, "id de atividade inválido")
		return
	}
	res, err := h.service.Validate(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, res)
}

// HandlePending — GET /admin/activities/pending?limit=N.
func (h *Handler) HandlePending(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.service.ListPending(r.Context(), limit)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	if events == nil {
		events = []*Event{}
	}
	httpx.RespondJSON(w, http.StatusOK, events)
}
