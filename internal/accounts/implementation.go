// internal/accounts/implementation.go
package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"bookexchange/internal/logging"
	"bookexchange/pkg/eventstore"
)

// service implements the Service interface.
type service struct {
	eventStore *eventstore.EventStore
	db         *sql.DB
	tokens     TokenIssuer
}

// NewService creates a new accounts service instance.
func NewService(es *eventstore.EventStore, db *sql.DB, tokens TokenIssuer) Service {
	return &service{
		eventStore: es,
		db:         db,
		tokens:     tokens,
	}
}

// Register creates a user and its credential, then records UserRegistered
// in the same transaction.
func (s *service) Register(ctx context.Context, username, email, password string) (*User, error) {
	passwordHash, salt, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	user := &User{Username: username, Email: email, Version: 1}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (username, email, password_hash, salt)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, username, email, passwordHash, salt).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	event, err := eventstore.NewEvent("UserRegistered", UserRegisteredEvent{
		ID:       user.ID,
		Username: username,
		Email:    email,
	})
	if err != nil {
		return nil, err
	}
	if err := s.eventStore.AppendEventsTx(ctx, tx, aggregateType, user.ID, 0, []eventstore.Event{event}); err != nil {
		return nil, fmt.Errorf("failed to append event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit registration: %w", err)
	}

	logging.Ctx(ctx).Info().Int64("user_id", user.ID).Str("username", username).Msg("user registered")
	return user, nil
}

// Login verifies credentials and returns a signed token.
func (s *service) Login(ctx context.Context, username, password string) (string, error) {
	var (
		user User
		cred Credential
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, salt
		FROM users
		WHERE username = $1
	`, username).Scan(&user.ID, &user.Username, &cred.PasswordHash, &cred.Salt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("authentication failed: %w", err)
	}

	ok, err := verifyPassword(password, cred.Salt, cred.PasswordHash)
	if err != nil {
		return "", fmt.Errorf("authentication failed: %w", err)
	}
	if !ok {
		return "", ErrInvalidCredentials
	}

	return s.tokens.Issue(user.ID, user.Username)
}

// GetUser retrieves a user by id.
func (s *service) GetUser(ctx context.Context, id int64) (*User, error) {
	return getUser(ctx, s.db, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func getUser(ctx context.Context, q queryRower, id int64) (*User, error) {
	user := &User{}
	err := q.QueryRowContext(ctx, `
		SELECT id, username, email, version, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id).Scan(&user.ID, &user.Username, &user.Email, &user.Version, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UpdateProfile changes username and/or email. Only the user themself may
// edit their profile.
func (s *service) UpdateProfile(ctx context.Context, callerID, id int64, update ProfileUpdate) (*User, error) {
	if callerID != id {
		return nil, ErrForbidden
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	user, err := getUser(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if update.Username != nil {
		user.Username = *update.Username
	}
	if update.Email != nil {
		user.Email = *update.Email
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE users
		SET username = $1, email = $2, version = version + 1, updated_at = NOW()
		WHERE id = $3 AND version = $4
	`, user.Username, user.Email, id, user.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, eventstore.ErrConcurrencyConflict
	}

	event, err := eventstore.NewEvent("ProfileUpdated", ProfileUpdatedEvent{
		ID:       id,
		Username: user.Username,
		Email:    user.Email,
	})
	if err != nil {
		return nil, err
	}
	if err := s.eventStore.AppendEventsTx(ctx, tx, aggregateType, id, user.Version, []eventstore.Event{event}); err != nil {
		return nil, fmt.Errorf("failed to append event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit profile update: %w", err)
	}
	user.Version++
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
