package interceptors

import (
	"net/http"

	"market-auth/backend/internal/platform/apperror"
	"market-auth/backend/internal/policy/engine"
)

// MsgVerifyFirst is returned when a verified-only route is called by an unverified account.
const MsgVerifyFirst = "Please verify your email first."

// RequireAccess returns middleware that asks the route access policy whether the authenticated user
// may call route. It must run after Authenticate. A nil evaluator allows everything.
func RequireAccess(policy engine.Evaluator, route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if policy == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			profile, ok := GetProfile(r.Context())
			if !ok {
				WriteError(w, r, apperror.Unauthorized(MsgUnauthorized, nil))
				return
			}
			allowed, err := policy.Allow(r.Context(), engine.AccessRequest{Route: route, Profile: profile})
			if err != nil {
				WriteError(w, r, apperror.Internal(err))
				return
			}
			if !allowed {
				WriteError(w, r, apperror.Forbidden(MsgVerifyFirst))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
