package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// -----------------------------------------------------------------------------
// Auto Job Methods
// -----------------------------------------------------------------------------

// UpsertAutoJob records a discovered posting, keyed on (user_id, external_id).
// An existing record keeps its processing state; only the descriptive fields
// refresh. The second return value reports whether the row was newly inserted.
func (db *DB) UpsertAutoJob(ctx context.Context, input *AutoJobCreateInput) (*AutoJobRecord, bool, error) {
	var record AutoJobRecord
	var isNew bool
	var extractedJSON []byte
	var errorMessage *string

	// xmax = 0 distinguishes a fresh insert from a conflict update.
	err := db.pool.QueryRow(ctx,
		`INSERT INTO auto_jobs (user_id, external_id, job_title, company_name, job_url, description, processing_status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id, external_id) DO UPDATE SET
		     job_title = EXCLUDED.job_title,
		     company_name = EXCLUDED.company_name,
		     job_url = EXCLUDED.job_url,
		     description = EXCLUDED.description
		 RETURNING id, user_id, external_id, job_title, company_name, job_url,
		           COALESCE(description, ''), processing_status, extracted_data,
		           error_message, discovered_at, processed_at, (xmax = 0)`,
		input.UserID, input.ExternalID, input.JobTitle, input.CompanyName,
		input.JobURL, input.Description, JobStatusPending,
	).Scan(&record.ID, &record.UserID, &record.ExternalID, &record.JobTitle,
		&record.CompanyName, &record.JobURL, &record.Description, &record.ProcessingStatus,
		&extractedJSON, &errorMessage, &record.DiscoveredAt, &record.ProcessedAt, &isNew)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert auto job: %w", err)
	}

	if extractedJSON != nil {
		_ = json.Unmarshal(extractedJSON, &record.ExtractedData)
	}
	if errorMessage != nil {
		record.ErrorMessage = *errorMessage
	}

	return &record, isNew, nil
}

// GetAutoJob retrieves a record by ID. Returns nil if not found.
func (db *DB) GetAutoJob(ctx context.Context, id uuid.UUID) (*AutoJobRecord, error) {
	var record AutoJobRecord
	var extractedJSON []byte
	var errorMessage *string

	err := db.pool.QueryRow(ctx,
		`SELECT id, user_id, external_id, job_title, company_name, job_url,
		        COALESCE(description, ''), processing_status, extracted_data,
		        error_message, discovered_at, processed_at
		 FROM auto_jobs WHERE id = $1`,
		id,
	).Scan(&record.ID, &record.UserID, &record.ExternalID, &record.JobTitle,
		&record.CompanyName, &record.JobURL, &record.Description, &record.ProcessingStatus,
		&extractedJSON, &errorMessage, &record.DiscoveredAt, &record.ProcessedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get auto job: %w", err)
	}

	if extractedJSON != nil {
		_ = json.Unmarshal(extractedJSON, &record.ExtractedData)
	}
	if errorMessage != nil {
		record.ErrorMessage = *errorMessage
	}

	return &record, nil
}

// UpdateAutoJobStatus moves a record to a new processing status, optionally
// attaching extracted data or an error message, and stamps processed_at.
func (db *DB) UpdateAutoJobStatus(ctx context.Context, id uuid.UUID, status string, extracted map[string]any, errorMsg string) error {
	var extractedJSON []byte
	if extracted != nil {
		var err error
		extractedJSON, err = json.Marshal(extracted)
		if err != nil {
			return fmt.Errorf("failed to marshal extracted data: %w", err)
		}
	}

	_, err := db.pool.Exec(ctx,
		`UPDATE auto_jobs
		 SET processing_status = $1,
		     extracted_data = COALESCE($2, extracted_data),
		     error_message = NULLIF($3, ''),
		     processed_at = NOW()
		 WHERE id = $4`,
		status, extractedJSON, errorMsg, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update auto job status: %w", err)
	}
	return nil
}

// ListAutoJobsOptions contains filters for listing auto jobs.
type ListAutoJobsOptions struct {
	Status string // Filter by processing status
	Limit  int    // Pagination limit
	Offset int    // Pagination offset
}

// ListAutoJobs lists an owner's discovered jobs, newest first.
func (db *DB) ListAutoJobs(ctx context.Context, userID uuid.UUID, opts ListAutoJobsOptions) ([]AutoJobRecord, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, user_id, external_id, job_title, company_name, job_url,
		        COALESCE(description, ''), processing_status, extracted_data,
		        error_message, discovered_at, processed_at
		 FROM auto_jobs
		 WHERE user_id = $1 AND ($2 = '' OR processing_status = $2)
		 ORDER BY discovered_at DESC
		 LIMIT $3 OFFSET $4`,
		userID, opts.Status, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list auto jobs: %w", err)
	}
	defer rows.Close()

	var records []AutoJobRecord
	for rows.Next() {
		var record AutoJobRecord
		var extractedJSON []byte
		var errorMessage *string

		if err := rows.Scan(&record.ID, &record.UserID, &record.ExternalID, &record.JobTitle,
			&record.CompanyName, &record.JobURL, &record.Description, &record.ProcessingStatus,
			&extractedJSON, &errorMessage, &record.DiscoveredAt, &record.ProcessedAt); err != nil {
			return nil, fmt.Errorf("failed to scan auto job: %w", err)
		}

		if extractedJSON != nil {
			_ = json.Unmarshal(extractedJSON, &record.ExtractedData)
		}
		if errorMessage != nil {
			record.ErrorMessage = *errorMessage
		}

		records = append(records, record)
	}
	return records, nil
}
