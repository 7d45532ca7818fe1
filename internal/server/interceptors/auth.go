package interceptors

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"market-auth/backend/internal/platform/apperror"
	"market-auth/backend/internal/security"
	userdomain "market-auth/backend/internal/user/domain"
)

const bearerPrefix = "bearer "

// Messages written by Authenticate.
const (
	MsgUnauthorized   = "Unauthorized access!"
	MsgSessionExpired = "Session expired!"
)

// AccessVerifier validates access tokens and returns the user id they were issued for.
type AccessVerifier interface {
	VerifyAccessToken(token string) (string, error)
}

// UserLoader loads the user an access token belongs to.
type UserLoader interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// Authenticate returns middleware that requires a Bearer access token, loads the owner's profile and
// stores it in the request context. Expired tokens answer "Session expired!"; every other rejection,
// including a vanished user, answers "Unauthorized access!".
func Authenticate(tokens AccessVerifier, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r.Header.Get("Authorization"))
			if token == "" {
				WriteError(w, r, apperror.Unauthorized(MsgUnauthorized, nil))
				return
			}
			userID, err := tokens.VerifyAccessToken(token)
			if err != nil {
				if errors.Is(err, security.ErrTokenExpired) {
					WriteError(w, r, apperror.Unauthorized(MsgSessionExpired, err))
					return
				}
				WriteError(w, r, apperror.Unauthorized(MsgUnauthorized, err))
				return
			}
			u, err := users.GetByID(r.Context(), userID)
			if err != nil {
				WriteError(w, r, apperror.Internal(err))
				return
			}
			if u == nil {
				WriteError(w, r, apperror.Unauthorized(MsgUnauthorized, nil))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), u.Profile())))
		})
	}
}

// extractBearer returns the token from an Authorization header value, or "" if missing or malformed.
func extractBearer(header string) string {
	v := strings.TrimSpace(header)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
