package repository

import (
	"context"

	"market-auth/backend/internal/singleuse/domain"
)

// Repository persists single-use tokens. Lookups return nil, nil when no live token exists.
type Repository interface {
	// FindOneByOwner returns the live token for (ownerID, purpose).
	FindOneByOwner(ctx context.Context, ownerID string, purpose domain.Purpose) (*domain.Token, error)
	// Create stores t, replacing any token for the same (owner, purpose). The last write wins.
	Create(ctx context.Context, t *domain.Token) error
	DeleteByOwner(ctx context.Context, ownerID string, purpose domain.Purpose) error
	// DeleteByID removes the token with id and reports whether a token was removed.
	DeleteByID(ctx context.Context, id string) (bool, error)
	// PurgeExpired removes expired tokens and returns how many were removed. Backends with native
	// expiry return 0.
	PurgeExpired(ctx context.Context) (int64, error)
}
