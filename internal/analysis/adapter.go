// Package analysis provides the AI adapter used by the workflow engine:
// structured field extraction from posting text and a match recommendation
// against the candidate profile. Every call carries a bounded timeout; a
// failure is always an *AdapterError so callers can treat it as a per-item
// failure rather than a structural one.
package analysis

import (
	"fmt"
	"time"
)

// DefaultCallTimeout bounds a single AI adapter call.
const DefaultCallTimeout = 60 * time.Second

// AdapterError represents a failed AI adapter call: transport error, timeout,
// or a malformed response.
type AdapterError struct {
	Op      string // "extract" or "recommend"
	Message string
	Cause   error
}

func (e *AdapterError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ai adapter %s failed: %s: %v", e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("ai adapter %s failed: %s", e.Op, e.Message)
}

func (e *AdapterError) Unwrap() error {
	return e.Cause
}

// Recommendation is the AI verdict for one posting.
type Recommendation struct {
	Score       float64 `json:"score"`
	ShouldApply bool    `json:"should_apply"`
	Reason      string  `json:"reason"`
}
