package store

import (
	"context"
	"log/slog"
	"time"
)

// DefaultPurgeInterval is how often expired rows are swept.
const DefaultPurgeInterval = 5 * time.Minute

// Purger deletes expired entries. SQLiteBackend implements it; Redis expires
// keys itself.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// StartPurgeWorker runs a background goroutine that periodically removes
// expired sessions until ctx is done.
func StartPurgeWorker(ctx context.Context, p Purger, interval time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultPurgeInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		logger.Info("Purge worker started", "interval", interval)

		for {
			select {
			case <-ticker.C:
				purgeOnce(ctx, p, logger)
			case <-ctx.Done():
				logger.Info("Purge worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func purgeOnce(ctx context.Context, p Purger, logger *slog.Logger) {
	n, err := p.PurgeExpired(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error("Purge worker failed to delete expired sessions", "error", err)
		return
	}
	if n > 0 {
		logger.Info("Purged expired sessions", "count", n)
	}
}
