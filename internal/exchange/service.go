// internal/exchange/service.go
package exchange

import (
	"context"

	"bookexchange/internal/catalog"
)

// Service defines the interface for the exchange service.
type Service interface {
	RequestExchange(ctx context.Context, requesterID, bookID int64, accepterID *int64) (*Exchange, error)
	AcceptExchange(ctx context.Context, exchangeID, accepterID int64) (*Exchange, error)
	History(ctx context.Context, userID int64) ([]HistoryEntry, error)
}

// BookLookup resolves books owned by the catalog service.
type BookLookup interface {
	GetBook(ctx context.Context, id int64) (*catalog.Book, error)
}
