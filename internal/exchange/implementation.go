// internal/exchange/implementation.go
package exchange

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bookexchange/internal/catalog"
	"bookexchange/internal/clients"
	"bookexchange/internal/logging"
	"bookexchange/pkg/eventstore"
)

// service implements the Service interface.
type service struct {
	eventStore *eventstore.EventStore
	db         *sql.DB
	books      BookLookup
}

// NewService creates a new exchange service instance.
func NewService(es *eventstore.EventStore, db *sql.DB, books BookLookup) Service {
	return &service{
		eventStore: es,
		db:         db,
		books:      books,
	}
}

// RequestExchange opens an exchange for bookID on behalf of requesterID.
func (s *service) RequestExchange(ctx context.Context, requesterID, bookID int64, accepterID *int64) (*Exchange, error) {
	book, err := s.books.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, clients.ErrNotFound) || errors.Is(err, catalog.ErrNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	if book.OwnerID == requesterID {
		return nil, ErrOwnBook
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	ex := &Exchange{
		RequesterID: requesterID,
		AccepterID:  accepterID,
		BookID:      bookID,
		Status:      StatusRequested,
		Version:     1,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO exchanges (requester_id, accepter_id, book_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, requesterID, accepterID, bookID, StatusRequested).Scan(&ex.ID, &ex.CreatedAt, &ex.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert exchange: %w", err)
	}

	event, err := eventstore.NewEvent(EventRequested, ExchangeRequestedEvent{
		ExchangeID:  ex.ID,
		RequesterID: requesterID,
		AccepterID:  accepterID,
		BookID:      bookID,
		BookTitle:   book.Title,
		OwnerID:     book.OwnerID,
	})
	if err != nil {
		return nil, err
	}
	if err := s.eventStore.AppendEventsTx(ctx, tx, AggregateType, ex.ID, 0, []eventstore.Event{event}); err != nil {
		return nil, fmt.Errorf("failed to append event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit exchange: %w", err)
	}

	logging.Ctx(ctx).Info().
		Int64("exchange_id", ex.ID).
		Int64("requester_id", requesterID).
		Int64("book_id", bookID).
		Msg("exchange requested")
	return ex, nil
}

// AcceptExchange marks an exchange accepted with accepterID as the accepter.
func (s *service) AcceptExchange(ctx context.Context, exchangeID, accepterID int64) (*Exchange, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	ex := &Exchange{}
	var accepter sql.NullInt64
	err = tx.QueryRowContext(ctx, `
		SELECT id, requester_id, accepter_id, book_id, status, version, created_at, updated_at
		FROM exchanges
		WHERE id = $1
	`, exchangeID).Scan(&ex.ID, &ex.RequesterID, &accepter, &ex.BookID, &ex.Status, &ex.Version, &ex.CreatedAt, &ex.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get exchange: %w", err)
	}

	if ex.Status == StatusAccepted {
		return nil, ErrAlreadyAccepted
	}
	if ex.RequesterID == accepterID {
		return nil, ErrSelfAccept
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE exchanges
		SET accepter_id = $1, status = $2, version = version + 1, updated_at = NOW()
		WHERE id = $3 AND version = $4
	`, accepterID, StatusAccepted, exchangeID, ex.Version)
	if err != nil {
		return nil, fmt.Errorf("update exchange: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, eventstore.ErrConcurrencyConflict
	}

	event, err := eventstore.NewEvent(EventAccepted, ExchangeAcceptedEvent{
		ExchangeID:  exchangeID,
		RequesterID: ex.RequesterID,
		AccepterID:  accepterID,
		BookID:      ex.BookID,
	})
	if err != nil {
		return nil, err
	}
	if err := s.eventStore.AppendEventsTx(ctx, tx, AggregateType, exchangeID, ex.Version, []eventstore.Event{event}); err != nil {
		return nil, fmt.Errorf("failed to append event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit accept: %w", err)
	}

	ex.AccepterID = &accepterID
	ex.Status = StatusAccepted
	ex.Version++
	logging.Ctx(ctx).Info().Int64("exchange_id", exchangeID).Int64("accepter_id", accepterID).Msg("exchange accepted")
	return ex, nil
}

// History lists the exchanges a user took part in as requester or accepter.
func (s *service) History(ctx context.Context, userID int64) ([]HistoryEntry, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.book_id, b.title, e.status
		FROM exchanges e
		JOIN books b ON b.id = e.book_id
		WHERE e.requester_id = $1 OR e.accepter_id = $1
		ORDER BY e.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	history := []HistoryEntry{}
	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(&h.ExchangeID, &h.BookID, &h.BookTitle, &h.Status); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return history, nil
}
