package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"market-auth/backend/internal/server/interceptors"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 2 * time.Second

// Pinger checks a backing store (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks the route access policy engine.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// PingFunc adapts a function (e.g. a Redis PING) to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// Checker reports readiness from the configured dependencies. Nil dependencies are skipped.
type Checker struct {
	pingers map[string]Pinger
	policy  PolicyChecker
}

// NewChecker returns a checker over the named pingers and the policy engine.
func NewChecker(pingers map[string]Pinger, policy PolicyChecker) *Checker {
	return &Checker{pingers: pingers, policy: policy}
}

// Check returns nil when every dependency answers, or the first failure.
func (c *Checker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	for name, p := range c.pingers {
		if p == nil {
			continue
		}
		if err := p.PingContext(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if c.policy != nil {
		if err := c.policy.HealthCheck(ctx); err != nil {
			return fmt.Errorf("policy: %w", err)
		}
	}
	return nil
}

// ServeHTTP answers GET /healthz with 200 {"status":"SERVING"} or 503 {"status":"NOT_SERVING"}.
func (c *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := c.Check(r.Context()); err != nil {
		slog.WarnContext(r.Context(), "health check failed", "error", err)
		interceptors.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "NOT_SERVING"})
		return
	}
	interceptors.WriteJSON(w, http.StatusOK, map[string]string{"status": "SERVING"})
}

// Sync runs Check every interval and mirrors the result into the gRPC health server until ctx is
// done. The empty service name reports overall health.
func (c *Checker) Sync(ctx context.Context, srv *health.Server, interval time.Duration) {
	update := func() {
		status := healthpb.HealthCheckResponse_SERVING
		if err := c.Check(ctx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		srv.SetServingStatus("", status)
	}
	update()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			srv.Shutdown()
			return
		case <-ticker.C:
			update()
		}
	}
}
