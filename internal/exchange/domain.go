// internal/exchange/domain.go
package exchange

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("exchange not found")
	ErrBookNotFound    = errors.New("book not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrOwnBook         = errors.New("cannot request an exchange for your own book")
	ErrAlreadyAccepted = errors.New("exchange already accepted")
	ErrSelfAccept      = errors.New("requester cannot accept their own exchange")
)

const (
	StatusRequested = "requested"
	StatusAccepted  = "accepted"
)

// Exchange is a request by one user to receive a book.
type Exchange struct {
	ID          int64     `json:"id"`
	RequesterID int64     `json:"requester_id"`
	AccepterID  *int64    `json:"accepter_id,omitempty"`
	BookID      int64     `json:"book_id"`
	Status      string    `json:"status"`
	Version     int       `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HistoryEntry is one line of a user's exchange history.
type HistoryEntry struct {
	ExchangeID int64  `json:"exchange_id"`
	BookID     int64  `json:"book_id"`
	BookTitle  string `json:"book_title"`
	Status     string `json:"status"`
}

// ExchangeRequestedEvent is appended when an exchange is opened. OwnerID is
// the owner of the book at request time.
type ExchangeRequestedEvent struct {
	ExchangeID  int64  `json:"exchange_id"`
	RequesterID int64  `json:"requester_id"`
	AccepterID  *int64 `json:"accepter_id,omitempty"`
	BookID      int64  `json:"book_id"`
	BookTitle   string `json:"book_title"`
	OwnerID     int64  `json:"owner_id"`
}

// ExchangeAcceptedEvent is appended when an exchange is accepted.
type ExchangeAcceptedEvent struct {
	ExchangeID  int64 `json:"exchange_id"`
	RequesterID int64 `json:"requester_id"`
	AccepterID  int64 `json:"accepter_id"`
	BookID      int64 `json:"book_id"`
}

const (
	AggregateType  = "exchange"
	EventRequested = "ExchangeRequested"
	EventAccepted  = "ExchangeAccepted"
)
