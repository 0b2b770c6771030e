package db

import (
	"time"

	"github.com/google/uuid"
)

// Auto job processing status constants.
const (
	JobStatusPending     = "pending"
	JobStatusAnalyzed    = "analyzed"
	JobStatusRelevant    = "relevant"
	JobStatusNotRelevant = "not_relevant"
	JobStatusGenerated   = "generated"
	JobStatusError       = "error"
)

// AutoJobRecord is a discovered job posting and its processing state,
// independent of any run. Records are never deleted by the engine.
type AutoJobRecord struct {
	ID               uuid.UUID      `json:"id"`
	UserID           uuid.UUID      `json:"user_id"`
	ExternalID       string         `json:"external_id"`
	JobTitle         string         `json:"job_title"`
	CompanyName      string         `json:"company_name"`
	JobURL           string         `json:"job_url"`
	Description      string         `json:"description,omitempty"`
	ProcessingStatus string         `json:"processing_status"`
	ExtractedData    map[string]any `json:"extracted_data,omitempty"`
	ErrorMessage     string         `json:"error_message,omitempty"`
	DiscoveredAt     time.Time      `json:"discovered_at"`
	ProcessedAt      *time.Time     `json:"processed_at,omitempty"`
}

// AutoJobCreateInput holds the fields needed to record a discovered posting.
type AutoJobCreateInput struct {
	UserID      uuid.UUID
	ExternalID  string
	JobTitle    string
	CompanyName string
	JobURL      string
	Description string
}
