// internal/accounts/handler.go
package accounts

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

// Routes mounts the accounts endpoints. limit guards register and login;
// requireAuth guards profile edits.
func (h *Handler) Routes(r chi.Router, requireAuth, limit func(http.Handler) http.Handler) {
	r.With(limit).Post("/register", h.handleRegister)
	r.With(limit).Post("/login", h.handleLogin)
	r.Get("/users/{id}", h.handleGetUser)
	r.With(requireAuth).Put("/users/{id}", h.handleUpdateProfile)
}

type registerRequest struct {
	Username string `json:"username" validate:"required,max=50"`
	Email    string `json:"email" validate:"omitempty,email,max=255"`
	Password string `json:"password" validate:"required,min=8"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !httpx.DecodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.service.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httpx.DecodeAndValidate(w, r, &req) {
		return
	}

	token, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, user)
}

type updateProfileRequest struct {
	Username *string `json:"username" validate:"omitempty,min=1,max=50"`
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req updateProfileRequest
	if !httpx.DecodeAndValidate(w, r, &req) {
		return
	}

	callerID, _ := auth.UserID(r.Context())
	user, err := h.service.UpdateProfile(r.Context(), callerID, id, ProfileUpdate{
		Username: req.Username,
		Email:    req.Email,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrUsernameTaken):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, eventstore.ErrConcurrencyConflict):
		httpx.WriteError(w, http.StatusConflict, "profile was modified concurrently, retry")
	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("accounts request failed")
		httpx.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
