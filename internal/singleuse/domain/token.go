// Package domain holds the single-use token entity used for email verification and password reset.
package domain

import "time"

// Purpose says what a single-use token proves. Each purpose has its own TTL and at most one live
// token per owner.
type Purpose string

const (
	PurposeVerification Purpose = "verification"
	PurposeReset        Purpose = "reset"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return p == PurposeVerification || p == PurposeReset
}

// Token is a stored single-use token. Only the bcrypt hash of the raw value is kept.
type Token struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Purpose   Purpose   `json:"purpose"`
	TokenHash string    `json:"token_hash"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the token is no longer usable at now.
func (t *Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
