package engine

import (
	"context"

	userdomain "market-auth/backend/internal/user/domain"
)

// AccessRequest is the input to a route access decision.
type AccessRequest struct {
	// Route is the name of the route being called (e.g. "profile").
	Route   string
	Profile userdomain.Profile
}

// Evaluator decides whether an authenticated user may call a route.
type Evaluator interface {
	// Allow reports whether the request may proceed. A non-nil error means no decision was made.
	Allow(ctx context.Context, req AccessRequest) (bool, error)
}
