// Package domain holds the request shapes accepted by the auth flows and their validation rules.
package domain

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"market-auth/backend/internal/platform/apperror"
)

// MinPasswordLength is the shortest password accepted at sign-up and reset.
const MinPasswordLength = 8

// MaxPasswordLength is the longest password bcrypt can hash, in bytes.
const MaxPasswordLength = 72

const passwordSymbols = "!@#$%^&*"

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Validation messages returned to clients.
const (
	MsgNameMissing      = "Name is missing"
	MsgEmailMissing     = "Email is missing"
	MsgEmailInvalid     = "Invalid email format"
	MsgPasswordMissing  = "Password is missing"
	MsgPasswordTooShort = "Password should be at least 8 chars long!"
	MsgPasswordTooLong  = "Password should be at most 72 chars long!"
	MsgPasswordSimple   = "Password is too simple."
	MsgInvalidUserID    = "Invalid user id"
	MsgTokenMissing     = "Token is missing"
)

// SignUpRequest is the body of POST /auth/sign-up.
type SignUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks required fields, the email format and the password rules.
func (r SignUpRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return apperror.Validation(MsgNameMissing)
	}
	if err := ValidateEmail(r.Email); err != nil {
		return err
	}
	return ValidatePassword(r.Password)
}

// SignInRequest is the body of POST /auth/sign-in.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenRequest carries a user id and a raw single-use token, as delivered in an emailed link.
type TokenRequest struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// Validate requires a UUID id and a non-empty token.
func (r TokenRequest) Validate() error {
	if _, err := uuid.Parse(r.ID); err != nil {
		return apperror.Validation(MsgInvalidUserID)
	}
	if r.Token == "" {
		return apperror.Validation(MsgTokenMissing)
	}
	return nil
}

// ResetPasswordRequest is the body of POST /auth/reset-pass.
type ResetPasswordRequest struct {
	TokenRequest
	Password string `json:"password"`
}

// Validate checks the id/token pair and the new password.
func (r ResetPasswordRequest) Validate() error {
	if err := r.TokenRequest.Validate(); err != nil {
		return err
	}
	return ValidatePassword(r.Password)
}

// RefreshRequest is the body of POST /auth/refresh-token.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// EmailRequest is the body of POST /auth/forget-pass.
type EmailRequest struct {
	Email string `json:"email"`
}

// ValidateEmail requires a non-empty address of the form local@domain.tld.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperror.Validation(MsgEmailMissing)
	}
	if !emailPattern.MatchString(email) {
		return apperror.Validation(MsgEmailInvalid)
	}
	return nil
}

// ValidatePassword requires MinPasswordLength to MaxPasswordLength characters drawn from letters,
// digits and !@#$%^&*, with at least one of each class.
func ValidatePassword(password string) error {
	if password == "" {
		return apperror.Validation(MsgPasswordMissing)
	}
	if len(password) < MinPasswordLength {
		return apperror.Validation(MsgPasswordTooShort)
	}
	if len(password) > MaxPasswordLength {
		return apperror.Validation(MsgPasswordTooLong)
	}
	var hasLetter, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			hasLetter = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune(passwordSymbols, r):
			hasSymbol = true
		default:
			return apperror.Validation(MsgPasswordSimple)
		}
	}
	if !hasLetter || !hasDigit || !hasSymbol {
		return apperror.Validation(MsgPasswordSimple)
	}
	return nil
}
