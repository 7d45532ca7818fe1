package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptySecret is returned by Hash when asked to hash an empty secret.
var ErrEmptySecret = errors.New("empty secret")

// Hasher hashes and verifies passwords and single-use tokens using bcrypt.
// Every hash carries its own random salt, so hashing the same secret twice
// yields different strings that both verify. Callers must not log or persist
// plaintext secrets.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given bcrypt cost (4–31). A non-positive
// cost selects bcrypt.DefaultCost (10 rounds).
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash produces a bcrypt hash of secret suitable for storage. Errors (empty
// input, secrets longer than 72 bytes, entropy failure) must abort the caller.
func (h *Hasher) Hash(secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", ErrEmptySecret
	}
	b, err := bcrypt.GenerateFromPassword(secret, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare verifies secret against the stored hash using constant-time
// comparison. Returns nil if they match; returns an error (including
// bcrypt.ErrMismatchedHashAndPassword) if they do not or on invalid hash.
func (h *Hasher) Compare(hash string, secret []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), secret)
}

// Verify reports whether secret matches hash. A malformed hash never matches.
func (h *Hasher) Verify(secret []byte, hash string) bool {
	if hash == "" {
		return false
	}
	return h.Compare(hash, secret) == nil
}
