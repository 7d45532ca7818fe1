// Package worker runs the background jobs: expired token purging and the auth event relay.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// Purger deletes expired single-use tokens.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// RunPurge calls p.PurgeExpired once immediately and then every interval until ctx is done.
// Failures are logged and retried on the next tick.
func RunPurge(ctx context.Context, p Purger, interval time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	purge := func() {
		n, err := p.PurgeExpired(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.Error("purge expired tokens", "error", err)
			}
			return
		}
		if n > 0 {
			logger.Info("purged expired tokens", "count", n)
		}
	}
	purge()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purge()
		}
	}
}
