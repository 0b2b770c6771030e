package db

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowSettings is the owner-scoped configuration read at the start of the
// Discover step. Mutation happens through the settings CRUD surface.
type WorkflowSettings struct {
	UserID          uuid.UUID         `json:"user_id"`
	Keywords        []string          `json:"keywords"`
	Location        string            `json:"location,omitempty"`
	Filters         map[string]string `json:"filters,omitempty"`
	MaxJobs         int               `json:"max_jobs"`
	AvoidDuplicates bool              `json:"avoid_duplicates"`
	ProfileSummary  string            `json:"profile_summary,omitempty"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// DefaultMaxJobs caps admission when settings carry no explicit limit.
const DefaultMaxJobs = 25
