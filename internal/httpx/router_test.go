package httpx

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterHealthAndRequestID(t *testing.T) {
	r := NewRouter([]string{"*"})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
}

func TestRouterGeneratesRequestID(t *testing.T) {
	r := NewRouter([]string{"*"})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouterNotFoundIsJSON(t *testing.T) {
	r := NewRouter(nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "resource not found", body.Message)
}

type createReq struct {
	Title string `json:"title" validate:"required"`
}

func TestDecodeAndValidate(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		var req createReq
		if !DecodeAndValidate(w, r, &req) {
			return
		}
		WriteJSON(w, http.StatusCreated, req)
	}

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"valid", `{"title":"Dune"}`, http.StatusCreated},
		{"missing field", `{}`, http.StatusBadRequest},
		{"broken json", `{"title":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body)))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestIDParam(t *testing.T) {
	r := chi.NewRouter()
	var got int64
	var gotErr error
	r.Get("/users/{userId}", func(w http.ResponseWriter, r *http.Request) {
		got, gotErr = IDParam(r, "userId")
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/42", nil))
	require.NoError(t, gotErr)
	assert.Equal(t, int64(42), got)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/abc", nil))
	assert.Error(t, gotErr)
}
