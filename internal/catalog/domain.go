// internal/catalog/domain.go
package catalog

import (
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("book not found")
	ErrInvalidQuery  = errors.New("at least one search parameter is required (title or author)")
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
)

const (
	defaultPerPage = 10
	maxPerPage     = 100
)

// Book is a title listed for exchange by its owner.
type Book struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	OwnerID   int64     `json:"owner_id"`
	Version   int       `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Review is a rating, optionally with a comment, left by a user on a book.
type Review struct {
	ID        int64     `json:"id"`
	BookID    int64     `json:"book_id"`
	UserID    int64     `json:"user_id"`
	Rating    int       `json:"rating"`
	Comment   *string   `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// WishlistItem is a book a user would like to receive.
type WishlistItem struct {
	BookID int64 `json:"book_id"`
}

// SearchQuery filters books by exact title and/or author.
type SearchQuery struct {
	Title   string
	Author  string
	Page    int
	PerPage int
}

// normalize fills in paging defaults and clamps per-page to maxPerPage.
func (q *SearchQuery) normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = defaultPerPage
	}
	if q.PerPage > maxPerPage {
		q.PerPage = maxPerPage
	}
}

// SearchResult is one page of matching books.
type SearchResult struct {
	Books      []*Book `json:"books"`
	TotalPages int     `json:"total_pages"`
}

// BookListedEvent is appended when an owner lists a book.
type BookListedEvent struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Author  string `json:"author"`
	OwnerID int64  `json:"owner_id"`
}

// BookReviewedEvent is appended when a user rates a book.
type BookReviewedEvent struct {
	ReviewID int64   `json:"review_id"`
	BookID   int64   `json:"book_id"`
	UserID   int64   `json:"user_id"`
	Rating   int     `json:"rating"`
	Comment  *string `json:"comment,omitempty"`
}

// WishlistItemAddedEvent is appended when a user wishes for a book.
type WishlistItemAddedEvent struct {
	UserID int64 `json:"user_id"`
	BookID int64 `json:"book_id"`
}

const (
	bookAggregate     = "book"
	reviewAggregate   = "review"
	wishlistAggregate = "wishlist"
)
