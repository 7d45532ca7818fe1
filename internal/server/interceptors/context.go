package interceptors

import (
	"context"

	userdomain "market-auth/backend/internal/user/domain"
)

type contextKey struct{ name string }

var (
	profileKey  = contextKey{"profile"}
	clientIPKey = contextKey{"client_ip"}
)

// WithIdentity returns a context carrying the authenticated user's profile.
// Handlers and the auth service read it via GetUserID and GetProfile.
func WithIdentity(ctx context.Context, p userdomain.Profile) context.Context {
	return context.WithValue(ctx, profileKey, p)
}

// GetProfile returns the authenticated profile and true if set; otherwise a zero profile, false.
func GetProfile(ctx context.Context) (userdomain.Profile, bool) {
	p, ok := ctx.Value(profileKey).(userdomain.Profile)
	return p, ok
}

// GetUserID returns the authenticated user id and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	p, ok := GetProfile(ctx)
	if !ok || p.ID == "" {
		return "", false
	}
	return p.ID, true
}

// WithClientIP returns a context carrying the caller's IP address.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIPFromContext returns the IP stored by RealIP, or "" when absent.
func ClientIPFromContext(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey).(string)
	return v
}
