package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordNotHashed is returned by NewUser when the credential is empty or not a bcrypt hash.
var ErrPasswordNotHashed = errors.New("password must be hashed before building a user")

// User is the core user entity. PasswordHash is always a bcrypt hash; RefreshTokens holds the
// SHA-256 digests of the user's live refresh tokens.
type User struct {
	ID            string
	Name          string
	Email         string
	PasswordHash  string
	Verified      bool
	RefreshTokens []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Profile is the public view of a user returned by sign-in and the profile endpoint.
type Profile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
}

// Patch lists the fields UpdateFields may change. Nil fields are left untouched.
type Patch struct {
	Name         *string
	PasswordHash *string
	Verified     *bool
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.PasswordHash == nil && p.Verified == nil
}

// NewUser is the only way to build a new User. It refuses a credential that is not a bcrypt hash,
// so a plaintext password can never reach storage.
func NewUser(name, email, passwordHash string, now time.Time) (*User, error) {
	if passwordHash == "" {
		return nil, ErrPasswordNotHashed
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, ErrPasswordNotHashed
	}
	now = now.UTC()
	return &User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeEmail trims and lowercases an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Profile returns the public view of u.
func (u *User) Profile() Profile {
	return Profile{ID: u.ID, Name: u.Name, Email: u.Email, Verified: u.Verified}
}

// HasRefreshToken reports whether digest is in the user's refresh set.
func (u *User) HasRefreshToken(digest string) bool {
	for _, d := range u.RefreshTokens {
		if d == digest {
			return true
		}
	}
	return false
}
