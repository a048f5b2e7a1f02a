package app_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookexchange/internal/accounts"
	"bookexchange/internal/auth"
	"bookexchange/internal/catalog"
	"bookexchange/internal/clients"
	"bookexchange/internal/config"
	"bookexchange/internal/exchange"
	"bookexchange/internal/httpx"
	"bookexchange/internal/notify"
	"bookexchange/internal/recommend"
	"bookexchange/internal/testinfra"
	"bookexchange/pkg/eventstore"
)

type stack struct {
	accounts, catalog, exchange, recommend *httptest.Server
	projector                              *notify.Projector
	mailer                                 *recordingMailer
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (m *recordingMailer) Send(_ context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

// newStack wires every service in-process against one database, the way the
// binaries under cmd/ do.
func newStack(t *testing.T) *stack {
	t.Helper()
	db := testinfra.Postgres(t)
	es := eventstore.NewEventStore(db)
	tokens, err := auth.NewTokenManager("flow-test-secret-flow-test-secret", time.Hour)
	require.NoError(t, err)
	requireAuth := auth.Require(tokens)

	accountsRouter := httpx.NewRouter(nil)
	accounts.NewHandler(accounts.NewService(es, db, tokens)).
		Routes(accountsRouter, requireAuth, httprate.LimitByIP(1000, time.Minute))
	accountsSrv := httptest.NewServer(accountsRouter)
	t.Cleanup(accountsSrv.Close)

	catalogRouter := httpx.NewRouter(nil)
	catalog.NewHandler(catalog.NewService(es, db)).Routes(catalogRouter, requireAuth)
	catalogSrv := httptest.NewServer(catalogRouter)
	t.Cleanup(catalogSrv.Close)

	exchangeRouter := httpx.NewRouter(nil)
	exchangeSvc := exchange.NewService(es, db, clients.NewCatalogClient(catalogSrv.URL, nil))
	exchange.NewHandler(exchangeSvc).Routes(exchangeRouter, requireAuth)
	exchangeSrv := httptest.NewServer(exchangeRouter)
	t.Cleanup(exchangeSrv.Close)

	store := recommend.NewStore(sqlx.NewDb(db, "postgres"))
	recSvc, err := recommend.NewService(store, store)
	require.NoError(t, err)
	recommendRouter := httpx.NewRouter(nil)
	recommend.NewHandler(recSvc).Routes(recommendRouter)
	recommendSrv := httptest.NewServer(recommendRouter)
	t.Cleanup(recommendSrv.Close)

	mailer := &recordingMailer{}
	projector := notify.NewProjector(es, clients.NewAccountsClient(accountsSrv.URL, nil), mailer, config.NotifyConfig{BatchSize: 50})

	return &stack{
		accounts:  accountsSrv,
		catalog:   catalogSrv,
		exchange:  exchangeSrv,
		recommend: recommendSrv,
		projector: projector,
		mailer:    mailer,
	}
}

func call(t *testing.T, method, url, token string, body, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type member struct {
	id    int64
	token string
}

func (s *stack) signUp(t *testing.T, username string) member {
	t.Helper()
	var user accounts.User
	status := call(t, http.MethodPost, s.accounts.URL+"/register", "", map[string]string{
		"username": username, "email": username + "@example.com", "password": "SecurePass123!",
	}, &user)
	require.Equal(t, http.StatusCreated, status)

	var login struct {
		Token string `json:"token"`
	}
	status = call(t, http.MethodPost, s.accounts.URL+"/login", "", map[string]string{
		"username": username, "password": "SecurePass123!",
	}, &login)
	require.Equal(t, http.StatusOK, status)
	return member{id: user.ID, token: login.Token}
}

func (s *stack) listBook(t *testing.T, owner member, title string) int64 {
	t.Helper()
	var book catalog.Book
	status := call(t, http.MethodPost, s.catalog.URL+"/books", owner.token, map[string]string{"title": title, "author": "Anon"}, &book)
	require.Equal(t, http.StatusCreated, status)
	return book.ID
}

func (s *stack) request(t *testing.T, requester member, bookID int64) int64 {
	t.Helper()
	var ex exchange.Exchange
	status := call(t, http.MethodPost, s.exchange.URL+"/exchanges/request", requester.token, map[string]int64{"book_id": bookID}, &ex)
	require.Equal(t, http.StatusCreated, status)
	return ex.ID
}

func TestExchangeFlow(t *testing.T) {
	s := newStack(t)

	alice := s.signUp(t, "alice")
	bob := s.signUp(t, "bob")
	carol := s.signUp(t, "carol")

	shared := s.listBook(t, carol, "Shared")
	extra := s.listBook(t, carol, "Extra")

	exID := s.request(t, alice, shared)
	s.request(t, bob, shared)
	s.request(t, bob, extra)

	// The requester cannot accept; the owner can, once.
	assert.Equal(t, http.StatusConflict, call(t, http.MethodPost, s.exchange.URL+"/exchanges/accept", alice.token, map[string]int64{"exchange_id": exID}, nil))
	assert.Equal(t, http.StatusOK, call(t, http.MethodPost, s.exchange.URL+"/exchanges/accept", carol.token, map[string]int64{"exchange_id": exID}, nil))
	assert.Equal(t, http.StatusConflict, call(t, http.MethodPost, s.exchange.URL+"/exchanges/accept", bob.token, map[string]int64{"exchange_id": exID}, nil))

	// Owners cannot request their own books.
	assert.Equal(t, http.StatusConflict, call(t, http.MethodPost, s.exchange.URL+"/exchanges/request", carol.token, map[string]int64{"book_id": shared}, nil))
	assert.Equal(t, http.StatusNotFound, call(t, http.MethodPost, s.exchange.URL+"/exchanges/request", alice.token, map[string]int64{"book_id": 999999}, nil))

	assert.Equal(t, http.StatusCreated, call(t, http.MethodPost, fmt.Sprintf("%s/books/%d/rate", s.catalog.URL, extra), bob.token, map[string]int{"rating": 4}, nil))
	assert.Equal(t, http.StatusCreated, call(t, http.MethodPost, fmt.Sprintf("%s/books/%d/reviews", s.catalog.URL, extra), carol.token, map[string]int{"rating": 3}, nil))

	var history []exchange.HistoryEntry
	require.Equal(t, http.StatusOK, call(t, http.MethodGet, fmt.Sprintf("%s/exchanges/history/%d", s.exchange.URL, alice.id), "", nil, &history))
	assert.Equal(t, []exchange.HistoryEntry{{ExchangeID: exID, BookID: shared, BookTitle: "Shared", Status: exchange.StatusAccepted}}, history)

	var recs []recommend.Recommendation
	require.Equal(t, http.StatusOK, call(t, http.MethodGet, fmt.Sprintf("%s/recommendations/%d", s.recommend.URL, alice.id), "", nil, &recs))
	assert.Equal(t, []recommend.Recommendation{{BookID: extra, Score: 3.5}}, recs)

	_, err := s.projector.ProcessBatch(context.Background())
	require.NoError(t, err)
	s.mailer.mu.Lock()
	defer s.mailer.mu.Unlock()
	recipients := make([]string, 0, len(s.mailer.sent))
	for _, m := range s.mailer.sent {
		recipients = append(recipients, m.To)
	}
	assert.ElementsMatch(t, []string{
		"carol@example.com", "carol@example.com", "carol@example.com",
		"alice@example.com",
	}, recipients)
}

func TestConcurrentAcceptsOverHTTP(t *testing.T) {
	s := newStack(t)

	owner := s.signUp(t, "owner")
	reader := s.signUp(t, "reader")
	book := s.listBook(t, owner, "Contested")
	exID := s.request(t, reader, book)

	var accepters []member
	for i := 0; i < 8; i++ {
		accepters = append(accepters, s.signUp(t, fmt.Sprintf("accepter%d", i)))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for _, m := range accepters {
		wg.Add(1)
		go func(m member) {
			defer wg.Done()
			if call(t, http.MethodPost, s.exchange.URL+"/exchanges/accept", m.token, map[string]int64{"exchange_id": exID}, nil) == http.StatusOK {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}(m)
	}
	wg.Wait()

	assert.Equal(t, 1, success, "only one concurrent accept should succeed")
}
