// internal/exchange/handler.go
package exchange

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bookexchange/internal/auth"
	"bookexchange/internal/httpx"
	"bookexchange/internal/logging"
	"bookexchange/pkg/eventstore"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the exchange endpoints. Requesting and accepting act on
// behalf of the authenticated caller.
func (h *Handler) Routes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Route("/exchanges", func(r chi.Router) {
		r.With(requireAuth).Post("/request", h.handleRequest)
		r.With(requireAuth).Post("/accept", h.handleAccept)
		r.Get("/history/{userId}", h.handleHistory)
	})
}

type requestExchangeRequest struct {
	BookID     int64  `json:"book_id" validate:"required,gt=0"`
	AccepterID *int64 `json:"accepter_id" validate:"omitempty,gt=0"`
}

func (h *Handler) handleRequest(w http.ResponseWriter, r *http.Request) {
	var req requestExchangeRequest
	if !httpx.DecodeAndValidate(w, r, &req) {
		return
	}

	requesterID, _ := auth.UserID(r.Context())
	ex, err := h.service.RequestExchange(r.Context(), requesterID, req.BookID, req.AccepterID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, ex)
}

type acceptExchangeRequest struct {
	ExchangeID int64 `json:"exchange_id" validate:"required,gt=0"`
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	var req acceptExchangeRequest
	if !httpx.DecodeAndValidate(w, r, &req) {
		return
	}

	accepterID, _ := auth.UserID(r.Context())
	ex, err := h.service.AcceptExchange(r.Context(), req.ExchangeID, accepterID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, ex)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := httpx.IDParam(r, "userId")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	history, err := h.service.History(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, history)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrBookNotFound), errors.Is(err, ErrUserNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrOwnBook), errors.Is(err, ErrAlreadyAccepted), errors.Is(err, ErrSelfAccept):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, eventstore.ErrConcurrencyConflict):
		httpx.WriteError(w, http.StatusConflict, "exchange was modified concurrently, retry")
	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("exchange request failed")
		httpx.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
