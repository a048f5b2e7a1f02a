// internal/catalog/service.go
package catalog

import "context"

// Service defines the interface for the catalog service.
type Service interface {
	AddBook(ctx context.Context, ownerID int64, title, author string) (*Book, error)
	GetBook(ctx context.Context, id int64) (*Book, error)
	SearchBooks(ctx context.Context, query SearchQuery) (*SearchResult, error)
	RateBook(ctx context.Context, bookID, userID int64, rating int, comment *string) (*Review, error)
	ListReviews(ctx context.Context, bookID int64) ([]*Review, error)
	AddToWishlist(ctx context.Context, userID, bookID int64) error
	GetWishlist(ctx context.Context, userID int64) ([]WishlistItem, error)
}
