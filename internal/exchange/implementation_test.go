package exchange_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookexchange/internal/catalog"
	"bookexchange/internal/exchange"
	"bookexchange/internal/testinfra"
	"bookexchange/pkg/eventstore"
)

// dbBooks reads books straight from the shared database in place of the
// catalog HTTP client.
type dbBooks struct{ db *sql.DB }

func (b dbBooks) GetBook(ctx context.Context, id int64) (*catalog.Book, error) {
	book := &catalog.Book{}
	err := b.db.QueryRowContext(ctx, `SELECT id, title, author, owner_id FROM books WHERE id = $1`, id).
		Scan(&book.ID, &book.Title, &book.Author, &book.OwnerID)
	if err == sql.ErrNoRows {
		return nil, catalog.ErrNotFound
	}
	return book, err
}

func TestExchangeLifecycle(t *testing.T) {
	db := testinfra.Postgres(t)
	es := eventstore.NewEventStore(db)
	svc := exchange.NewService(es, db, dbBooks{db})
	ctx := context.Background()

	owner := testinfra.SeedUser(t, db, "owner", "owner@example.com")
	reader := testinfra.SeedUser(t, db, "reader", "reader@example.com")
	other := testinfra.SeedUser(t, db, "other", "")
	book := testinfra.SeedBook(t, db, owner, "Dune", "Herbert")

	_, err := svc.RequestExchange(ctx, owner, book, nil)
	assert.ErrorIs(t, err, exchange.ErrOwnBook)
	_, err = svc.RequestExchange(ctx, reader, 999999, nil)
	assert.ErrorIs(t, err, exchange.ErrBookNotFound)

	ex, err := svc.RequestExchange(ctx, reader, book, nil)
	require.NoError(t, err)
	assert.Equal(t, exchange.StatusRequested, ex.Status)

	_, err = svc.AcceptExchange(ctx, ex.ID, reader)
	assert.ErrorIs(t, err, exchange.ErrSelfAccept)
	_, err = svc.AcceptExchange(ctx, 999999, owner)
	assert.ErrorIs(t, err, exchange.ErrNotFound)

	accepted, err := svc.AcceptExchange(ctx, ex.ID, owner)
	require.NoError(t, err)
	require.NotNil(t, accepted.AccepterID)
	assert.Equal(t, owner, *accepted.AccepterID)

	_, err = svc.AcceptExchange(ctx, ex.ID, other)
	assert.ErrorIs(t, err, exchange.ErrAlreadyAccepted)

	events, err := es.LoadEvents(ctx, exchange.AggregateType, ex.ID, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	var requested exchange.ExchangeRequestedEvent
	require.NoError(t, events[0].Decode(&requested))
	assert.Equal(t, owner, requested.OwnerID)
	assert.Equal(t, "Dune", requested.BookTitle)
	assert.Equal(t, exchange.EventAccepted, events[1].EventType)

	for _, uid := range []int64{reader, owner} {
		history, err := svc.History(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, []exchange.HistoryEntry{{ExchangeID: ex.ID, BookID: book, BookTitle: "Dune", Status: exchange.StatusAccepted}}, history)
	}

	history, err := svc.History(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = svc.History(ctx, 999999)
	assert.ErrorIs(t, err, exchange.ErrUserNotFound)
}

func TestConcurrentAcceptOnlyOneWins(t *testing.T) {
	db := testinfra.Postgres(t)
	svc := exchange.NewService(eventstore.NewEventStore(db), db, dbBooks{db})
	ctx := context.Background()

	owner := testinfra.SeedUser(t, db, "owner", "")
	reader := testinfra.SeedUser(t, db, "reader", "")
	a := testinfra.SeedUser(t, db, "a", "")
	b := testinfra.SeedUser(t, db, "b", "")
	book := testinfra.SeedBook(t, db, owner, "Emma", "Austen")

	ex, err := svc.RequestExchange(ctx, reader, book, nil)
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for _, uid := range []int64{owner, a, b} {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			if _, err := svc.AcceptExchange(ctx, ex.ID, uid); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(uid)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}
