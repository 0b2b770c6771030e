// Package source provides the job source adapter: given search settings it
// returns raw job postings from an external board. The workflow engine
// consumes this interface and treats any implementation as replaceable.
package source

import (
	"context"
	"errors"

	"github.com/jonathan/job-tracker/internal/db"
)

// ErrSourceUnavailable indicates the job source could not be reached at all.
// The run controller treats it as a structural failure and fails the run.
var ErrSourceUnavailable = errors.New("job source unavailable")

// RawPosting is one posting as returned by the source, before it enters the
// registry. ExternalID is the dedup key.
type RawPosting struct {
	ExternalID  string `json:"external_id"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// Source searches an external job board. Implementations may return partial
// results; a non-nil error means the search as a whole failed.
type Source interface {
	Search(ctx context.Context, settings *db.WorkflowSettings) ([]RawPosting, error)
}
