// Package service mints and verifies session tokens and manages each user's refresh-token set.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"market-auth/backend/internal/security"
	"market-auth/backend/internal/session/domain"
	userrepo "market-auth/backend/internal/user/repository"
)

var (
	// ErrInvalidRefreshToken is returned when the refresh token fails signature or claim checks.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrRefreshTokenReused is returned when a validly signed refresh token is no longer in the
	// owner's set. The owner's whole set has been wiped.
	ErrRefreshTokenReused = errors.New("refresh token reuse detected")
	// ErrUnknownUser is returned when a validly signed refresh token names a user that does not exist.
	ErrUnknownUser = errors.New("refresh token owner not found")
	// ErrNotFound is returned by Revoke when the user or token is absent.
	ErrNotFound = errors.New("not found")
)

// RotationError ties a rotation failure to the user id carried by the presented refresh token.
type RotationError struct {
	UserID string
	Err    error
}

func (e *RotationError) Error() string { return e.Err.Error() }

func (e *RotationError) Unwrap() error { return e.Err }

// Issuer mints access and refresh tokens. Access tokens are stateless; a refresh token is honored
// only while its digest is in the owner's stored set.
type Issuer struct {
	tokens *security.TokenProvider
	users  userrepo.Repository
	logger *slog.Logger
}

// NewIssuer returns an Issuer. A nil logger falls back to slog.Default.
func NewIssuer(tokens *security.TokenProvider, users userrepo.Repository, logger *slog.Logger) *Issuer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Issuer{tokens: tokens, users: users, logger: logger}
}

// IssueAccessToken returns a signed access token for userID and its expiry.
func (i *Issuer) IssueAccessToken(userID string) (string, time.Time, error) {
	return i.tokens.IssueAccess(userID)
}

// IssueRefreshToken mints a refresh token for userID and adds its digest to the user's set.
func (i *Issuer) IssueRefreshToken(ctx context.Context, userID string) (string, error) {
	token, _, err := i.tokens.IssueRefresh(userID)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	if err := i.users.AddRefreshToken(ctx, userID, security.DigestRefreshToken(token)); err != nil {
		return "", err
	}
	return token, nil
}

// IssuePair mints a fresh access token and refresh token for userID.
func (i *Issuer) IssuePair(ctx context.Context, userID string) (*domain.TokenPair, error) {
	access, exp, err := i.IssueAccessToken(userID)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := i.IssueRefreshToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{UserID: userID, AccessToken: access, RefreshToken: refresh, AccessExpiresAt: exp}, nil
}

// VerifyAccessToken returns the user id carried by token, security.ErrTokenExpired, or
// security.ErrInvalidToken.
func (i *Issuer) VerifyAccessToken(token string) (string, error) {
	return i.tokens.ValidateAccess(token)
}

// RotateRefreshToken exchanges old for a new pair. old is removed from the set in the same step
// that checks membership, so presenting it twice (sequentially or concurrently) succeeds at most
// once. A signed token whose owner is missing, or that is no longer in the set, wipes every refresh
// token of that user id; those rejections come back as *RotationError naming the user id.
func (i *Issuer) RotateRefreshToken(ctx context.Context, old string) (*domain.TokenPair, error) {
	userID, _, err := i.tokens.ValidateRefresh(old)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	u, err := i.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		if err := i.users.ClearRefreshTokens(ctx, userID); err != nil {
			return nil, err
		}
		i.logger.Warn("refresh token for unknown user", "user_id", userID)
		return nil, &RotationError{UserID: userID, Err: ErrUnknownUser}
	}
	removed, err := i.users.RemoveRefreshToken(ctx, userID, security.DigestRefreshToken(old))
	if err != nil {
		return nil, err
	}
	if !removed {
		if err := i.users.ClearRefreshTokens(ctx, userID); err != nil {
			return nil, err
		}
		i.logger.Warn("refresh token reuse detected; all sessions revoked", "user_id", userID)
		return nil, &RotationError{UserID: userID, Err: ErrRefreshTokenReused}
	}
	return i.IssuePair(ctx, userID)
}

// Revoke removes token from userID's set. Returns ErrNotFound when the user does not exist or the
// token is not in the set.
func (i *Issuer) Revoke(ctx context.Context, userID, token string) error {
	if token == "" {
		return ErrNotFound
	}
	removed, err := i.users.RemoveRefreshToken(ctx, userID, security.DigestRefreshToken(token))
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotFound
	}
	return nil
}
