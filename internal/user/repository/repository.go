package repository

import (
	"context"
	"errors"

	"market-auth/backend/internal/user/domain"
)

var (
	// ErrDuplicateEmail is returned by Create when the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrUserNotFound is returned by AddRefreshToken when the user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// Repository defines persistence for users. Lookups return nil, nil when the user does not exist.
// Refresh-token set changes are single atomic operations at the store.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	// UpdateFields applies patch to the user with id. Returns false when no such user exists.
	UpdateFields(ctx context.Context, id string, patch domain.Patch) (bool, error)
	// Save writes the user's profile fields and credential. The refresh set is not touched.
	Save(ctx context.Context, u *domain.User) error
	// AddRefreshToken adds digest to the user's refresh set; adding a present digest is a no-op.
	// Returns ErrUserNotFound when the user does not exist.
	AddRefreshToken(ctx context.Context, userID, digest string) error
	// RemoveRefreshToken removes digest from the set. Returns false if it was not a member.
	RemoveRefreshToken(ctx context.Context, userID, digest string) (bool, error)
	// ClearRefreshTokens empties the user's refresh set. A missing user is not an error.
	ClearRefreshTokens(ctx context.Context, userID string) error
}
