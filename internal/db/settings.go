package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// -----------------------------------------------------------------------------
// Workflow Settings Methods
// -----------------------------------------------------------------------------

// GetWorkflowSettings retrieves an owner's settings. Returns nil if the owner
// has never saved any.
func (db *DB) GetWorkflowSettings(ctx context.Context, userID uuid.UUID) (*WorkflowSettings, error) {
	var s WorkflowSettings
	var keywordsJSON, filtersJSON []byte
	var location, profileSummary *string

	err := db.pool.QueryRow(ctx,
		`SELECT user_id, keywords, location, filters, max_jobs, avoid_duplicates,
		        profile_summary, updated_at
		 FROM workflow_settings WHERE user_id = $1`,
		userID,
	).Scan(&s.UserID, &keywordsJSON, &location, &filtersJSON, &s.MaxJobs,
		&s.AvoidDuplicates, &profileSummary, &s.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get workflow settings: %w", err)
	}

	if keywordsJSON != nil {
		_ = json.Unmarshal(keywordsJSON, &s.Keywords)
	}
	if filtersJSON != nil {
		_ = json.Unmarshal(filtersJSON, &s.Filters)
	}
	if location != nil {
		s.Location = *location
	}
	if profileSummary != nil {
		s.ProfileSummary = *profileSummary
	}

	return &s, nil
}

// UpsertWorkflowSettings creates or replaces an owner's settings.
func (db *DB) UpsertWorkflowSettings(ctx context.Context, s *WorkflowSettings) (*WorkflowSettings, error) {
	keywordsJSON, err := json.Marshal(s.Keywords)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal keywords: %w", err)
	}
	var filtersJSON []byte
	if s.Filters != nil {
		filtersJSON, err = json.Marshal(s.Filters)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal filters: %w", err)
		}
	}

	maxJobs := s.MaxJobs
	if maxJobs <= 0 {
		maxJobs = DefaultMaxJobs
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO workflow_settings (user_id, keywords, location, filters, max_jobs,
		                                avoid_duplicates, profile_summary, updated_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, NULLIF($7, ''), NOW())
		 ON CONFLICT (user_id) DO UPDATE SET
		     keywords = $2,
		     location = NULLIF($3, ''),
		     filters = $4,
		     max_jobs = $5,
		     avoid_duplicates = $6,
		     profile_summary = NULLIF($7, ''),
		     updated_at = NOW()
		 RETURNING updated_at`,
		s.UserID, keywordsJSON, s.Location, filtersJSON, maxJobs,
		s.AvoidDuplicates, s.ProfileSummary,
	).Scan(&s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert workflow settings: %w", err)
	}

	s.MaxJobs = maxJobs
	return s, nil
}
