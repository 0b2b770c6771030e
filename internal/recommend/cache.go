// Package recommend provides the per-job recommendation cache: memoized AI
// match verdicts with crash-safe placeholder handling.
//
// The at-rest invariant for every entry is score XOR error: a finalized entry
// carries either a score or an error message, never both and never neither.
// The only excusable in-between is the in-flight placeholder, and the sweep
// clears any placeholder that outlives the computation window.
package recommend

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/jonathan/job-tracker/internal/analysis"
	"github.com/jonathan/job-tracker/internal/db"
)

// DefaultStuckWindow is how long a placeholder may live before it is
// classified as stuck. It exceeds the adapter call timeout so a slow but
// live computation is never swept.
const DefaultStuckWindow = analysis.DefaultCallTimeout + 30*time.Second

// Store is the persistence surface the cache needs.
type Store interface {
	GetRecommendation(ctx context.Context, autoJobID uuid.UUID) (*db.RecommendationEntry, error)
	PutRecommendationPlaceholder(ctx context.Context, autoJobID uuid.UUID) error
	FinalizeRecommendation(ctx context.Context, entry *db.RecommendationEntry) error
	DeleteRecommendation(ctx context.Context, autoJobID uuid.UUID) error
	DeleteStuckRecommendations(ctx context.Context, olderThan time.Duration) (int, error)
}

// Cache memoizes recommendation computations per job.
type Cache struct {
	store   Store
	adapter analysis.Adapter
	window  time.Duration

	// group collapses concurrent GetOrCompute calls for the same job so the
	// AI adapter is invoked at most once per job per cache generation.
	group singleflight.Group
}

// NewCache creates a cache. A zero window uses DefaultStuckWindow.
func NewCache(store Store, adapter analysis.Adapter, window time.Duration) *Cache {
	if window <= 0 {
		window = DefaultStuckWindow
	}
	return &Cache{store: store, adapter: adapter, window: window}
}

// GetOrCompute returns the cached entry for a job, computing it if absent.
//
// An adapter failure is data, not an error: the returned entry carries the
// failure in its Error field so the caller can count it as a per-item
// failure. The error return is reserved for store failures.
func (c *Cache) GetOrCompute(ctx context.Context, record *db.AutoJobRecord, profile string, forceRefresh bool) (*db.RecommendationEntry, error) {
	if !forceRefresh {
		entry, err := c.store.GetRecommendation(ctx, record.ID)
		if err != nil {
			return nil, err
		}
		if entry != nil && !entry.IsPlaceholder() {
			return entry, nil
		}
		// A placeholder at rest past the window is a crash leftover; fall
		// through and recompute. A fresh placeholder means another caller is
		// computing right now; the singleflight group collapses us into that
		// computation when it is in this process.
	}

	result, err, _ := c.group.Do(record.ID.String(), func() (any, error) {
		return c.compute(ctx, record, profile)
	})
	if err != nil {
		return nil, err
	}
	return result.(*db.RecommendationEntry), nil
}

// compute writes the placeholder, invokes the adapter, and finalizes the
// entry. The placeholder never survives this function: the deferred cleanup
// finalizes an error entry even when the adapter call panics or the context
// is cancelled mid-call.
func (c *Cache) compute(ctx context.Context, record *db.AutoJobRecord, profile string) (*db.RecommendationEntry, error) {
	if err := c.store.PutRecommendationPlaceholder(ctx, record.ID); err != nil {
		return nil, fmt.Errorf("failed to write placeholder: %w", err)
	}

	finalized := false
	defer func() {
		if !finalized {
			// Finalize on a detached context: the original may already be
			// cancelled, and the placeholder must not be left behind.
			cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = c.store.FinalizeRecommendation(cleanupCtx, &db.RecommendationEntry{
				AutoJobID: record.ID,
				Error:     "computation interrupted",
				CachedAt:  time.Now(),
			})
		}
	}()

	entry := &db.RecommendationEntry{AutoJobID: record.ID, CachedAt: time.Now()}

	rec, err := c.adapter.Recommend(ctx, record, profile)
	if err != nil {
		entry.Error = err.Error()
	} else {
		score := rec.Score
		entry.Score = &score
		entry.ShouldApply = rec.ShouldApply
		entry.Reason = rec.Reason
	}

	if err := c.store.FinalizeRecommendation(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to finalize recommendation: %w", err)
	}
	finalized = true

	return entry, nil
}

// Get returns the cached entry without computing. A stuck placeholder is
// reported as absent so it is never surfaced as a final answer.
func (c *Cache) Get(ctx context.Context, autoJobID uuid.UUID) (*db.RecommendationEntry, error) {
	entry, err := c.store.GetRecommendation(ctx, autoJobID)
	if err != nil {
		return nil, err
	}
	if entry != nil && entry.IsStuck(time.Now(), c.window) {
		return nil, nil
	}
	return entry, nil
}

// Invalidate clears a job's entry so the next read recomputes.
func (c *Cache) Invalidate(ctx context.Context, autoJobID uuid.UUID) error {
	return c.store.DeleteRecommendation(ctx, autoJobID)
}
