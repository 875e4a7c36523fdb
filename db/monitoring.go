package db

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ghactivity/logger"
)

// MonitorExpiry starts a goroutine that deletes snapshots older than ttl every
// interval until ctx is cancelled.
func (db *DB) MonitorExpiry(ctx context.Context, interval, ttl time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				db.pruneExpired(ctx, now, ttl)
			}
		}
	}()
}

func (db *DB) pruneExpired(ctx context.Context, now time.Time, ttl time.Duration) {
	n, err := db.PruneSnapshots(ctx, now.Add(-ttl))
	if err != nil {
		logger.Warn("Error pruning expired snapshots", zap.Error(err))
		return
	}
	if n > 0 {
		logger.Info("Pruned expired snapshots", zap.Int64("count", n))
	}
}
