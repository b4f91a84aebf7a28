// Package rewards — handlers.go обрабатывает HTTP-запросы конвертации, обмена и предложений.
package rewards

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"facebrasil.com.br/gamification/internal/auth"
	"facebrasil.com.br/gamification/internal/httpx"
)

type convertRequest struct {
	PointsAmount int64 `json:"points_amount"`
}

type redeemRequest struct {
	OfferID string `json:"offer_id" validate:"required,uuid"`
}

type createOfferRequest struct {
	PartnerID string          `json:"partner_id" validate:"required,max=128"`
	Title     string          `json:"title" validate:"required,max=200"`
	FacetCost decimal.Decimal `json:"facet_cost"`
	OfferType string          `json:"offer_type" validate:"required,max=32"`
}

type updateOfferRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// Handler обрабатывает запросы обменов.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register подключает пользовательские маршруты (роутер уже требует авторизацию).
func (h *Handler) Register(r chi.Router) {
	r.Post("/convert", h.HandleConvert)
	r.Post("/redeem", h.HandleRedeem)
	r.Get("/offers", h.HandleOffers)
	r.Get("/redemptions", h.HandleRedemptions)
}

// RegisterAdmin подключает маршруты администрирования предложений.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/offers", h.HandleCreateOffer)
	r.Patch("/offers/{id}", h.HandleUpdateOffer)
}

// HandleConvert — POST /gamification/convert.
func (h *Handler) HandleConvert(w http.ResponseWriter, r *http.Request) {
	var body convertRequest
	if !httpx.DecodeJSON(w, r, &body) {
		return
	}
	res, err := h.service.Convert(r.Context(), auth.UserIDFromContext(r.Context()), body.PointsAmount)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, res)
}

// HandleRedeem — POST /gamification/redeem.
func (h *Handler) HandleRedeem(w http.ResponseWriter, r *http.Request) {
	var body redeemRequest
	if !httpx.DecodeJSON(w, r, &body) {
		return
	}
	key := r.Header.Get(httpx.IdempotencyHeader)
	if len(key) > 128 {
		httpx.RespondBadRequest(w, "Idempotency-Key muito longo (máximo 128)")
		return
	}
	offerID, err := uuid.Parse(body.OfferID)
	if err != nil {
		httpx.RespondBadRequest(w, "offer_id inválido")
		return
	}

	res, err := h.service.Redeem(r.Context(), auth.UserIDFromContext(r.Context()), offerID, key)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, res)
}

// HandleOffers — GET /gamification/offers.
func (h *Handler) HandleOffers(w http.ResponseWriter, r *http.Request) {
	offers, err := h.service.Offers(r.Context())
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, offers)
}

// HandleRedemptions — GET /gamification/redemptions?limit=N.
func (h *Handler) HandleRedemptions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	out, err := h.service.Redemptions(r.Context(), auth.UserIDFromContext(r.Context()), limit)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, out)
}

// HandleCreateOffer — POST /admin/offers.
func (h *Handler) HandleCreateOffer(w http.ResponseWriter, r *http.Request) {
	var body createOfferRequest
	if !httpx.DecodeJSON(w, r, &body) {
		return
	}
	offer, err := h.service.CreateOffer(r.Context(), NewOffer{
		PartnerID: body.PartnerID,
		Title:     body.Title,
		FacetCost: body.FacetCost,
		OfferType: body.OfferType,
	})
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusCreated, offer)
}

// HandleUpdateOffer — PATCH /admin/offers/{id}.
func (h *Handler) HandleUpdateOffer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondBadRequest(w, "id de oferta inválido")
		return
	}
	var body updateOfferRequest
	if !httpx.DecodeJSON(w, r, &body) {
		return
	}
	offer, err := h.service.SetOfferActive(r.Context(), id, *body.IsActive)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, offer)
}
