// Package service implements the single-use token store used by email verification and password reset.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"market-auth/backend/internal/security"
	"market-auth/backend/internal/singleuse/domain"
	"market-auth/backend/internal/singleuse/repository"
)

// ErrUnknownPurpose is returned for a purpose other than verification or reset.
var ErrUnknownPurpose = errors.New("unknown token purpose")

// Store issues, verifies and consumes single-use tokens. Raw tokens leave Store exactly once, from
// Issue; only their bcrypt hashes are persisted.
type Store struct {
	repo   repository.Repository
	hasher *security.Hasher
	ttl    map[domain.Purpose]time.Duration
	nowF   func() time.Time
}

// NewStore returns a Store. verificationTTL and resetTTL bound the lifetime of each token kind.
func NewStore(repo repository.Repository, hasher *security.Hasher, verificationTTL, resetTTL time.Duration) *Store {
	return &Store{
		repo:   repo,
		hasher: hasher,
		ttl: map[domain.Purpose]time.Duration{
			domain.PurposeVerification: verificationTTL,
			domain.PurposeReset:        resetTTL,
		},
		nowF: time.Now,
	}
}

// SetClock replaces the time source used for creation and expiry checks.
func (s *Store) SetClock(now func() time.Time) {
	if now != nil {
		s.nowF = now
	}
}

// TTL returns the lifetime of tokens for purpose.
func (s *Store) TTL(purpose domain.Purpose) time.Duration {
	return s.ttl[purpose]
}

// Issue generates a fresh raw token for (ownerID, purpose), replaces any live token for that pair,
// and returns the raw value for one-time delivery.
func (s *Store) Issue(ctx context.Context, ownerID string, purpose domain.Purpose) (string, error) {
	if !purpose.Valid() {
		return "", ErrUnknownPurpose
	}
	raw, err := security.GenerateRawToken(security.RawTokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	hash, err := s.hasher.Hash([]byte(raw))
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}
	if err := s.repo.DeleteByOwner(ctx, ownerID, purpose); err != nil {
		return "", err
	}
	now := s.nowF().UTC()
	t := &domain.Token{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Purpose:   purpose,
		TokenHash: hash,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl[purpose]),
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return "", err
	}
	return raw, nil
}

// Verify reports whether raw matches the live token for (ownerID, purpose). A missing or expired
// token yields false with no error; errors are store failures only.
func (s *Store) Verify(ctx context.Context, ownerID string, purpose domain.Purpose, raw string) (bool, error) {
	t, err := s.match(ctx, ownerID, purpose, raw)
	if err != nil {
		return false, err
	}
	return t != nil, nil
}

// Consume deletes the live token for (ownerID, purpose) that raw matches. It reports false when raw
// does not match or when another caller deleted the token first, so at most one of several
// concurrent consumers of the same raw token sees true.
func (s *Store) Consume(ctx context.Context, ownerID string, purpose domain.Purpose, raw string) (bool, error) {
	t, err := s.match(ctx, ownerID, purpose, raw)
	if err != nil || t == nil {
		return false, err
	}
	return s.repo.DeleteByID(ctx, t.ID)
}

func (s *Store) match(ctx context.Context, ownerID string, purpose domain.Purpose, raw string) (*domain.Token, error) {
	if raw == "" || !purpose.Valid() {
		return nil, nil
	}
	t, err := s.repo.FindOneByOwner(ctx, ownerID, purpose)
	if err != nil {
		return nil, err
	}
	if t == nil || t.Expired(s.nowF()) {
		return nil, nil
	}
	if !s.hasher.Verify([]byte(raw), t.TokenHash) {
		return nil, nil
	}
	return t, nil
}

// PurgeExpired removes expired tokens from backends without native expiry.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.PurgeExpired(ctx)
}
