// internal/accounts/service.go
package accounts

import "context"

// Service defines the interface for the accounts service.
type Service interface {
	Register(ctx context.Context, username, email, password string) (*User, error)
	Login(ctx context.Context, username, password string) (string, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	UpdateProfile(ctx context.Context, callerID, id int64, update ProfileUpdate) (*User, error)
}

// TokenIssuer signs login tokens.
type TokenIssuer interface {
	Issue(userID int64, username string) (string, error)
}
