package accounts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookexchange/internal/auth"
)

type fakeService struct {
	users      map[int64]*User
	registered []string
	token      string
	lastUpdate ProfileUpdate
}

func newFakeService() *fakeService {
	return &fakeService{users: map[int64]*User{1: {ID: 1, Username: "alice", Email: "alice@example.com"}}, token: "tok"}
}

func (f *fakeService) Register(_ context.Context, username, email, _ string) (*User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return nil, ErrUsernameTaken
		}
	}
	f.registered = append(f.registered, username)
	u := &User{ID: int64(len(f.users) + 1), Username: username, Email: email}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeService) Login(_ context.Context, username, password string) (string, error) {
	if username == "alice" && password == "correct-horse" {
		return f.token, nil
	}
	return "", ErrInvalidCredentials
}

func (f *fakeService) GetUser(_ context.Context, id int64) (*User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, ErrNotFound
}

func (f *fakeService) UpdateProfile(_ context.Context, callerID, id int64, update ProfileUpdate) (*User, error) {
	if callerID != id {
		return nil, ErrForbidden
	}
	f.lastUpdate = update
	u, ok := f.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if update.Email != nil {
		u.Email = *update.Email
	}
	return u, nil
}

func passthrough(next http.Handler) http.Handler { return next }

// asUser pretends the bearer middleware authenticated userID.
func asUser(userID int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
		})
	}
}

func newTestRouter(svc Service, callerID int64) http.Handler {
	r := chi.NewRouter()
	NewHandler(svc).Routes(r, asUser(callerID), passthrough)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRegister(t *testing.T) {
	svc := newFakeService()
	h := newTestRouter(svc, 1)

	rec := do(t, h, http.MethodPost, "/register", `{"username":"bob","email":"bob@example.com","password":"hunter2hunter2"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"bob"}, svc.registered)

	rec = do(t, h, http.MethodPost, "/register", `{"username":"alice","password":"hunter2hunter2"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/register", `{"username":"carol"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin(t *testing.T) {
	h := newTestRouter(newFakeService(), 1)

	rec := do(t, h, http.MethodPost, "/login", `{"username":"alice","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "tok", body["token"])

	rec = do(t, h, http.MethodPost, "/login", `{"username":"alice","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetUser(t *testing.T) {
	h := newTestRouter(newFakeService(), 1)

	rec := do(t, h, http.MethodGet, "/users/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var u User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	assert.Equal(t, "alice", u.Username)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/users/99", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/users/abc", "").Code)
}

func TestUpdateProfile(t *testing.T) {
	svc := newFakeService()

	rec := do(t, newTestRouter(svc, 1), http.MethodPut, "/users/1", `{"email":"new@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.lastUpdate.Email)
	assert.Nil(t, svc.lastUpdate.Username)
	assert.Equal(t, "new@example.com", svc.users[1].Email)

	rec = do(t, newTestRouter(svc, 2), http.MethodPut, "/users/1", `{"email":"x@example.com"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, newTestRouter(svc, 1), http.MethodPut, "/users/1", `{"email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
