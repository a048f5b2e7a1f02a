package recommend

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Store reads exchanges and reviews with sqlx. Queries are written with
// '?' placeholders and rebound for the driver in use.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// ExchangesFor returns every exchange requested by userID or by a user who
// shares at least one requested book with userID. Exchanges outside that set
// cannot affect userID's ranking.
func (s *Store) ExchangesFor(ctx context.Context, userID int64) ([]Exchange, error) {
	query := s.db.Rebind(`
		SELECT id, requester_id, accepter_id, book_id, status
		FROM exchanges
		WHERE requester_id IN (
			SELECT DISTINCT e.requester_id
			FROM exchanges e
			WHERE e.book_id IN (SELECT book_id FROM exchanges WHERE requester_id = ?)
		)
		ORDER BY id
	`)

	exchanges := []Exchange{}
	if err := s.db.SelectContext(ctx, &exchanges, query, userID); err != nil {
		return nil, fmt.Errorf("select exchanges: %w", err)
	}
	return exchanges, nil
}

// AllExchanges returns every exchange.
func (s *Store) AllExchanges(ctx context.Context) ([]Exchange, error) {
	exchanges := []Exchange{}
	if err := s.db.SelectContext(ctx, &exchanges, `
		SELECT id, requester_id, accepter_id, book_id, status
		FROM exchanges
		ORDER BY id
	`); err != nil {
		return nil, fmt.Errorf("select exchanges: %w", err)
	}
	return exchanges, nil
}

// Reviews returns every review.
func (s *Store) Reviews(ctx context.Context) ([]Review, error) {
	reviews := []Review{}
	if err := s.db.SelectContext(ctx, &reviews, `
		SELECT id, book_id, user_id, rating, comment
		FROM reviews
		ORDER BY id
	`); err != nil {
		return nil, fmt.Errorf("select reviews: %w", err)
	}
	return reviews, nil
}
