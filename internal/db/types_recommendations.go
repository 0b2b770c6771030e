package db

import (
	"time"

	"github.com/google/uuid"
)

// PlaceholderReason marks an in-flight recommendation computation. An entry
// carrying it at rest (null score, no error) is stuck and must be recomputed.
const PlaceholderReason = "Calculating..."

// RecommendationEntry is the cached AI-computed "should I apply" verdict for
// one posting. At rest, score == nil implies Error is set.
type RecommendationEntry struct {
	AutoJobID   uuid.UUID `json:"auto_job_id"`
	Score       *float64  `json:"score"`
	ShouldApply bool      `json:"should_apply"`
	Reason      string    `json:"reason"`
	Error       string    `json:"error,omitempty"`
	CachedAt    time.Time `json:"cached_at"`
}

// IsPlaceholder reports whether the entry is the in-flight placeholder.
func (e *RecommendationEntry) IsPlaceholder() bool {
	return e.Score == nil && e.Error == ""
}

// IsStuck reports whether a placeholder has outlived the computation window
// and should be treated as absent.
func (e *RecommendationEntry) IsStuck(now time.Time, window time.Duration) bool {
	return e.IsPlaceholder() && now.Sub(e.CachedAt) > window
}
