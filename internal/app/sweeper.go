package app

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"
)

const defaultSweepInterval = time.Minute

type sweeper interface {
	Sweep() int
}

// startSweeper launches a background goroutine that drops expired cache
// entries at a fixed cadence. It returns a channel closed when the goroutine
// exits after ctx is cancelled.
func startSweeper(ctx context.Context, c sweeper, interval time.Duration, logger hclog.Logger) <-chan struct{} {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if n := c.Sweep(); n > 0 {
				logger.Trace("swept expired entries", "count", n)
			}
		}
	}()
	return done
}
