// Package server assembles the HTTP router and the gRPC health server.
package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"market-auth/backend/internal/devmail"
	healthhandler "market-auth/backend/internal/health/handler"
	identityhandler "market-auth/backend/internal/identity/handler"
	"market-auth/backend/internal/server/interceptors"
)

// Deps holds what the HTTP router serves.
type Deps struct {
	// Auth serves the /auth routes. If nil, only /healthz is mounted.
	Auth *identityhandler.AuthHandler
	// Health answers /healthz. If nil, /healthz always reports SERVING.
	Health *healthhandler.Checker
	// DevMail exposes the in-process outbox. Set only outside production when no mail API is configured.
	DevMail *devmail.Handler
	// RateLimitPerMinute caps public credential calls per client IP; 0 disables limiting.
	RateLimitPerMinute int
	Logger             *slog.Logger
}

// NewRouter returns the HTTP handler with the global middleware chain: client IP, request
// telemetry and security headers, in that order.
func NewRouter(deps Deps) http.Handler {
	r := mux.NewRouter()
	r.Use(interceptors.RealIP, interceptors.Telemetry(deps.Logger), interceptors.SecurityHeaders)

	health := deps.Health
	if health == nil {
		health = healthhandler.NewChecker(nil, nil)
	}
	r.Handle("/healthz", health).Methods(http.MethodGet)

	if deps.Auth != nil {
		deps.Auth.Register(r, interceptors.RateLimit(deps.RateLimitPerMinute))
	}
	if deps.DevMail != nil {
		deps.DevMail.Register(r)
	}
	return r
}
