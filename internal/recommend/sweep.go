package recommend

import (
	"context"
	"log"
	"time"
)

// DefaultSweepInterval is how often the background sweep runs.
const DefaultSweepInterval = 5 * time.Minute

// Sweeper periodically clears stuck placeholder entries back to absent. This
// is crash recovery: a placeholder written by a process that died before
// finalizing would otherwise block recomputation forever.
type Sweeper struct {
	store    Store
	window   time.Duration
	interval time.Duration
}

// NewSweeper creates a sweeper. Zero values use the defaults.
func NewSweeper(store Store, window, interval time.Duration) *Sweeper {
	if window <= 0 {
		window = DefaultStuckWindow
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{store: store, window: window, interval: interval}
}

// SweepOnce clears stuck entries and returns how many were cleared.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	return s.store.DeleteStuckRecommendations(ctx, s.window)
}

// Run sweeps on a ticker until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cleared, err := s.SweepOnce(ctx)
			if err != nil {
				log.Printf("Warning: recommendation sweep failed: %v", err)
				continue
			}
			if cleared > 0 {
				log.Printf("Recommendation sweep cleared %d stuck entries", cleared)
			}
		}
	}
}
