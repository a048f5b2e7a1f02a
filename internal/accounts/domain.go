// internal/accounts/domain.go
package accounts

import (
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrForbidden          = errors.New("cannot modify another user's profile")
)

// User is a registered member of the exchange.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Version   int       `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Credential is the stored password hash of a user.
type Credential struct {
	UserID       int64  `json:"-"`
	PasswordHash string `json:"-"`
	Salt         string `json:"-"`
}

// ProfileUpdate carries the optional fields of a profile edit.
type ProfileUpdate struct {
	Username *string
	Email    *string
}

// UserRegisteredEvent is appended when a user registers.
type UserRegisteredEvent struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// ProfileUpdatedEvent is appended when a user edits their profile.
type ProfileUpdatedEvent struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

const aggregateType = "user"
