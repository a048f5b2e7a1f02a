// internal/catalog/handler.go
package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"bookexchange/internal/auth"
	"bookexchange/internal/httpx"
	"bookexchange/internal/logging"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the catalog endpoints. Writes require an authenticated caller.
func (h *Handler) Routes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Get("/books", h.handleSearch)
	r.Get("/books/{id}", h.handleGetBook)
	r.Get("/books/{id}/reviews", h.handleListReviews)
	r.Get("/wishlist/{userId}", h.handleGetWishlist)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/books", h.handleAddBook)
		r.Post("/books/{id}/rate", h.handleRateBook)
		r.Post("/books/{id}/reviews", h.handleRateBook)
		r.Post("/wishlist", h.handleAddToWishlist)
	})
}

type addBookRequest struct {
	Title  string `json:"title" validate:"required,max=100"`
	Author string `json:"author" validate:"required,max=100"`
}

func (h *Handler) handleAddBook(w http.ResponseWriter, r *http.Request) {
	var req addBookRequest
	if !httpx.DecodeAndValidate(w, r, &req) {
		return
	}

	ownerID, _ := auth.UserID(r.Context())
	book, err := h.service.AddBook(r.Context(), ownerID, req.Title, req.Author)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, book)
}

func (h *Handler) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, book)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.service.SearchBooks(r.Context(), SearchQuery{
		Title:   q.Get("title"),
		Author:  q.Get("author"),
		Page:    intQuery(q.Get("page"), 1),
		PerPage: intQuery(q.Get("per_page"), defaultPerPage),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, result)
}

// intQuery parses a query parameter, falling back to def when it is absent
// or malformed.
func intQuery(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

type rateRequest struct {
	Rating  int     `json:"rating" validate:"required,min=1,max=5"`
	Comment *string `json:"comment" validate:"omitempty,max=2000"`
}

func (h *Handler) handleRateBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req rateRequest
	if !httpx.DecodeAndValidate(w, r, &req) {
		return
	}

	userID, _ := auth.UserID(r.Context())
	review, err := h.service.RateBook(r.Context(), bookID, userID, req.Rating, req.Comment)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, review)
}

func (h *Handler) handleListReviews(w http.ResponseWriter, r *http.Request) {
	bookID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	reviews, err := h.service.ListReviews(r.Context(), bookID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, reviews)
}

type wishlistRequest struct {
	BookID int64 `json:"book_id" validate:"required,gt=0"`
}

func (h *Handler) handleAddToWishlist(w http.ResponseWriter, r *http.Request) {
	var req wishlistRequest
	if !httpx.DecodeAndValidate(w, r, &req) {
		return
	}

	userID, _ := auth.UserID(r.Context())
	if err := h.service.AddToWishlist(r.Context(), userID, req.BookID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	httpx.WriteMessage(w, http.StatusCreated, "Book added to wishlist successfully")
}

func (h *Handler) handleGetWishlist(w http.ResponseWriter, r *http.Request) {
	userID, err := httpx.IDParam(r, "userId")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := h.service.GetWishlist(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidQuery), errors.Is(err, ErrInvalidRating):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("catalog request failed")
		httpx.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
