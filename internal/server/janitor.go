package server

import (
	"context"
	"time"

	"github.com/dmitrijs2005/offsync/internal/logging"
)

type cacheSweeper interface {
	EvictExpired(ctx context.Context) (int, error)
}

// runCacheJanitor evicts expired cache entries every interval until ctx is
// done. A non-positive interval disables the sweep.
func runCacheJanitor(ctx context.Context, interval time.Duration, c cacheSweeper, l logging.Logger) {
	if interval <= 0 {
		return
	}
	log := l.With("module", "cache_janitor")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := c.EvictExpired(ctx)
			if err != nil {
				log.Error(ctx, "cache sweep failed", "err", err)
				continue
			}
			if n > 0 {
				log.Info(ctx, "cache sweep", "evicted", n)
			}

		case <-ctx.Done():
			return
		}
	}
}
