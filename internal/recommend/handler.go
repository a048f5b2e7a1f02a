package recommend

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"bookexchange/internal/httpx"
	"bookexchange/internal/logging"
)

// MaxResults caps the recommendations returned over HTTP.
const MaxResults = 10

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/recommendations/{userId}", h.handleRecommend)
}

func (h *Handler) handleRecommend(w http.ResponseWriter, r *http.Request) {
	userID, err := httpx.IDParam(r, "userId")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	recs, err := h.service.Recommend(r.Context(), userID)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Int64("user_id", userID).Msg("recommendation failed")
		httpx.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if len(recs) > MaxResults {
		recs = recs[:MaxResults]
	}
	httpx.WriteJSON(w, http.StatusOK, recs)
}
