package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// -----------------------------------------------------------------------------
// Recommendation Cache Methods
// -----------------------------------------------------------------------------

// GetRecommendation retrieves the cache entry for a job. Returns nil if absent.
func (db *DB) GetRecommendation(ctx context.Context, autoJobID uuid.UUID) (*RecommendationEntry, error) {
	var entry RecommendationEntry
	var errorMessage *string

	err := db.pool.QueryRow(ctx,
		`SELECT auto_job_id, score, should_apply, reason, error, cached_at
		 FROM job_recommendations WHERE auto_job_id = $1`,
		autoJobID,
	).Scan(&entry.AutoJobID, &entry.Score, &entry.ShouldApply, &entry.Reason,
		&errorMessage, &entry.CachedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get recommendation: %w", err)
	}

	if errorMessage != nil {
		entry.Error = *errorMessage
	}

	return &entry, nil
}

// PutRecommendationPlaceholder writes the in-flight placeholder for a job so
// concurrent readers observe "in progress" instead of re-triggering work.
func (db *DB) PutRecommendationPlaceholder(ctx context.Context, autoJobID uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO job_recommendations (auto_job_id, score, should_apply, reason, error, cached_at)
		 VALUES ($1, NULL, FALSE, $2, NULL, NOW())
		 ON CONFLICT (auto_job_id) DO UPDATE SET
		     score = NULL, should_apply = FALSE, reason = $2, error = NULL, cached_at = NOW()`,
		autoJobID, PlaceholderReason,
	)
	if err != nil {
		return fmt.Errorf("failed to put recommendation placeholder: %w", err)
	}
	return nil
}

// FinalizeRecommendation overwrites the entry with a terminal result: either a
// scored verdict or an error. The placeholder must never survive finalize.
func (db *DB) FinalizeRecommendation(ctx context.Context, entry *RecommendationEntry) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO job_recommendations (auto_job_id, score, should_apply, reason, error, cached_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), NOW())
		 ON CONFLICT (auto_job_id) DO UPDATE SET
		     score = $2, should_apply = $3, reason = $4, error = NULLIF($5, ''), cached_at = NOW()`,
		entry.AutoJobID, entry.Score, entry.ShouldApply, entry.Reason, entry.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize recommendation: %w", err)
	}
	return nil
}

// DeleteRecommendation clears an entry back to absent.
func (db *DB) DeleteRecommendation(ctx context.Context, autoJobID uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`DELETE FROM job_recommendations WHERE auto_job_id = $1`,
		autoJobID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete recommendation: %w", err)
	}
	return nil
}

// DeleteStuckRecommendations clears placeholder entries older than the cutoff
// back to absent, so the next read recomputes them. This is crash recovery for
// a placeholder written by a process that died before finalizing.
func (db *DB) DeleteStuckRecommendations(ctx context.Context, olderThan time.Duration) (int, error) {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM job_recommendations
		 WHERE score IS NULL AND error IS NULL AND cached_at < NOW() - $1::interval`,
		fmt.Sprintf("%d seconds", int(olderThan.Seconds())),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stuck recommendations: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
