// internal/catalog/implementation.go
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"bookexchange/internal/logging"
	"bookexchange/pkg/eventstore"
)

// service implements the Service interface.
type service struct {
	eventStore *eventstore.EventStore
	db         *sql.DB
}

// NewService creates a new catalog service instance.
func NewService(es *eventstore.EventStore, db *sql.DB) Service {
	return &service{
		eventStore: es,
		db:         db,
	}
}

// AddBook lists a new book owned by ownerID.
func (s *service) AddBook(ctx context.Context, ownerID int64, title, author string) (*Book, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	book := &Book{Title: title, Author: author, OwnerID: ownerID, Version: 1}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO books (title, author, owner_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, title, author, ownerID).Scan(&book.ID, &book.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}

	event, err := eventstore.NewEvent("BookListed", BookListedEvent{
		ID:      book.ID,
		Title:   title,
		Author:  author,
		OwnerID: ownerID,
	})
	if err != nil {
		return nil, err
	}
	if err := s.eventStore.AppendEventsTx(ctx, tx, bookAggregate, book.ID, 0, []eventstore.Event{event}); err != nil {
		return nil, fmt.Errorf("failed to append event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit book: %w", err)
	}

	logging.Ctx(ctx).Info().Int64("book_id", book.ID).Int64("owner_id", ownerID).Msg("book listed")
	return book, nil
}

// GetBook retrieves a book from the read model by its ID.
func (s *service) GetBook(ctx context.Context, id int64) (*Book, error) {
	return getBook(ctx, s.db, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func getBook(ctx context.Context, q queryRower, id int64) (*Book, error) {
	book := &Book{}
	err := q.QueryRowContext(ctx, `
		SELECT id, title, author, owner_id, version, created_at
		FROM books
		WHERE id = $1
	`, id).Scan(&book.ID, &book.Title, &book.Author, &book.OwnerID, &book.Version, &book.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get book from read model: %w", err)
	}
	return book, nil
}

// SearchBooks returns one page of books matching the title and/or author
// exactly.
func (s *service) SearchBooks(ctx context.Context, query SearchQuery) (*SearchResult, error) {
	if query.Title == "" && query.Author == "" {
		return nil, ErrInvalidQuery
	}
	query.normalize()

	var (
		conds []string
		args  []interface{}
	)
	if query.Title != "" {
		args = append(args, query.Title)
		conds = append(conds, fmt.Sprintf("title = $%d", len(args)))
	}
	if query.Author != "" {
		args = append(args, query.Author)
		conds = append(conds, fmt.Sprintf("author = $%d", len(args)))
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM books WHERE "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count books: %w", err)
	}

	pageArgs := append(args, query.PerPage, (query.Page-1)*query.PerPage)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, title, author, owner_id, version, created_at
		FROM books
		WHERE %s
		ORDER BY id
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2), pageArgs...)
	if err != nil {
		return nil, fmt.Errorf("database search failed: %w", err)
	}
	defer rows.Close()

	result := &SearchResult{
		Books:      []*Book{},
		TotalPages: (total + query.PerPage - 1) / query.PerPage,
	}
	for rows.Next() {
		book := &Book{}
		if err := rows.Scan(&book.ID, &book.Title, &book.Author, &book.OwnerID, &book.Version, &book.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		result.Books = append(result.Books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}
	return result, nil
}

// RateBook stores a review for an existing book.
func (s *service) RateBook(ctx context.Context, bookID, userID int64, rating int, comment *string) (*Review, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := getBook(ctx, tx, bookID); err != nil {
		return nil, err
	}

	review := &Review{BookID: bookID, UserID: userID, Rating: rating, Comment: comment}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO reviews (book_id, user_id, rating, comment)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, bookID, userID, rating, comment).Scan(&review.ID, &review.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert review: %w", err)
	}

	event, err := eventstore.NewEvent("BookReviewed", BookReviewedEvent{
		ReviewID: review.ID,
		BookID:   bookID,
		UserID:   userID,
		Rating:   rating,
		Comment:  comment,
	})
	if err != nil {
		return nil, err
	}
	if err := s.eventStore.AppendEventsTx(ctx, tx, reviewAggregate, review.ID, 0, []eventstore.Event{event}); err != nil {
		return nil, fmt.Errorf("failed to append event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit review: %w", err)
	}
	return review, nil
}

// ListReviews returns the reviews of a book, oldest first.
func (s *service) ListReviews(ctx context.Context, bookID int64) ([]*Review, error) {
	if _, err := s.GetBook(ctx, bookID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, book_id, user_id, rating, comment, created_at
		FROM reviews
		WHERE book_id = $1
		ORDER BY id
	`, bookID)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	reviews := []*Review{}
	for rows.Next() {
		r := &Review{}
		var comment sql.NullString
		if err := rows.Scan(&r.ID, &r.BookID, &r.UserID, &r.Rating, &comment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		if comment.Valid {
			r.Comment = &comment.String
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// AddToWishlist records that userID wants bookID.
func (s *service) AddToWishlist(ctx context.Context, userID, bookID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := getBook(ctx, tx, bookID); err != nil {
		return err
	}

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO wishlist (user_id, book_id)
		VALUES ($1, $2)
		RETURNING id
	`, userID, bookID).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert wishlist item: %w", err)
	}

	event, err := eventstore.NewEvent("WishlistItemAdded", WishlistItemAddedEvent{UserID: userID, BookID: bookID})
	if err != nil {
		return err
	}
	if err := s.eventStore.AppendEventsTx(ctx, tx, wishlistAggregate, id, 0, []eventstore.Event{event}); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	return tx.Commit()
}

// GetWishlist lists the books on a user's wishlist.
func (s *service) GetWishlist(ctx context.Context, userID int64) ([]WishlistItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT book_id FROM wishlist WHERE user_id = $1 ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query wishlist: %w", err)
	}
	defer rows.Close()

	items := []WishlistItem{}
	for rows.Next() {
		var item WishlistItem
		if err := rows.Scan(&item.BookID); err != nil {
			return nil, fmt.Errorf("failed to scan wishlist item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
