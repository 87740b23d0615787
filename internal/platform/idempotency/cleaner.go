package idempotency

import (
	"context"
	"time"
)

// Cleaner periodically deletes expired ledger entries.
type Cleaner struct {
	Store     Store
	Interval  time.Duration
	BatchSize int
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

// Run blocks until ctx is cancelled, sweeping once per Interval. Each sweep keeps
// deleting batches until a short batch signals the backlog is cleared.
func (c Cleaner) Run(ctx context.Context) error {
	interval := c.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Sweep performs one cleanup pass and returns the number of removed entries.
func (c Cleaner) Sweep(ctx context.Context) int {
	now := time.Now
	if c.Clock != nil {
		now = c.Clock
	}
	batch := c.BatchSize
	if batch <= 0 {
		batch = defaultCleanupLimit
	}

	total := 0
	for ctx.Err() == nil {
		removed, err := c.Store.CleanupExpired(ctx, now(), batch)
		total += removed
		if err != nil {
			c.log(ctx, "idempotency.cleanup.failed", map[string]any{"error": err, "removed": total})
			return total
		}
		if removed < batch {
			break
		}
	}
	if total > 0 {
		c.log(ctx, "idempotency.cleanup", map[string]any{"removed": total})
	}
	return total
}

func (c Cleaner) log(ctx context.Context, event string, fields map[string]any) {
	if c.Logger != nil {
		c.Logger(ctx, event, fields)
	}
}
