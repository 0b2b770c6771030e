package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// -----------------------------------------------------------------------------
// Workflow Run Methods
// -----------------------------------------------------------------------------

// CreateWorkflowRun inserts a new run in the running state with all steps
// pending and returns the stored run.
func (db *DB) CreateWorkflowRun(ctx context.Context, userID uuid.UUID) (*WorkflowRun, error) {
	run := &WorkflowRun{
		UserID: userID,
		Status: RunStatusRunning,
		Steps:  NewPendingSteps(),
	}

	stepsJSON, err := json.Marshal(run.Steps)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal steps: %w", err)
	}
	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stats: %w", err)
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO workflow_runs (user_id, status, steps, stats)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, started_at`,
		userID, run.Status, stepsJSON, statsJSON,
	).Scan(&run.ID, &run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow run: %w", err)
	}

	return run, nil
}

// GetWorkflowRun retrieves a run by ID. Returns nil if not found.
func (db *DB) GetWorkflowRun(ctx context.Context, runID uuid.UUID) (*WorkflowRun, error) {
	var run WorkflowRun
	var stepsJSON, statsJSON []byte
	var errorMessage *string

	err := db.pool.QueryRow(ctx,
		`SELECT id, user_id, status, steps, stats, cancel_requested,
		        error_message, started_at, completed_at
		 FROM workflow_runs WHERE id = $1`,
		runID,
	).Scan(&run.ID, &run.UserID, &run.Status, &stepsJSON, &statsJSON,
		&run.CancelRequested, &errorMessage, &run.StartedAt, &run.CompletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get workflow run: %w", err)
	}

	if stepsJSON != nil {
		_ = json.Unmarshal(stepsJSON, &run.Steps)
	}
	if statsJSON != nil {
		_ = json.Unmarshal(statsJSON, &run.Stats)
	}
	if errorMessage != nil {
		run.ErrorMessage = *errorMessage
	}

	return &run, nil
}

// GetActiveWorkflowRun retrieves the non-terminal run for an owner, if any.
func (db *DB) GetActiveWorkflowRun(ctx context.Context, userID uuid.UUID) (*WorkflowRun, error) {
	var runID uuid.UUID
	err := db.pool.QueryRow(ctx,
		`SELECT id FROM workflow_runs
		 WHERE user_id = $1 AND status = $2
		 ORDER BY started_at DESC LIMIT 1`,
		userID, RunStatusRunning,
	).Scan(&runID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active workflow run: %w", err)
	}
	return db.GetWorkflowRun(ctx, runID)
}

// SaveRunState persists the full mutable state of a run. The controller calls
// this after every published snapshot so polling survives process restart.
func (db *DB) SaveRunState(ctx context.Context, run *WorkflowRun) error {
	stepsJSON, err := json.Marshal(run.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}
	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`UPDATE workflow_runs
		 SET status = $1, steps = $2, stats = $3, cancel_requested = $4,
		     error_message = NULLIF($5, ''), completed_at = $6
		 WHERE id = $7`,
		run.Status, stepsJSON, statsJSON, run.CancelRequested,
		run.ErrorMessage, run.CompletedAt, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save run state: %w", err)
	}
	return nil
}

// RequestRunCancel sets the cooperative cancel flag on a run row.
func (db *DB) RequestRunCancel(ctx context.Context, runID uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE workflow_runs SET cancel_requested = TRUE WHERE id = $1`,
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to request run cancel: %w", err)
	}
	return nil
}

// MarkInterruptedRuns fails every run still marked running. Called at process
// start: a running row with no live goroutine was interrupted by process death.
func (db *DB) MarkInterruptedRuns(ctx context.Context) (int, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE workflow_runs
		 SET status = $1, error_message = 'interrupted', completed_at = NOW()
		 WHERE status = $2`,
		RunStatusFailed, RunStatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark interrupted runs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListWorkflowRuns retrieves recent runs for an owner, newest first.
func (db *DB) ListWorkflowRuns(ctx context.Context, userID uuid.UUID, limit int) ([]WorkflowRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, user_id, status, steps, stats, cancel_requested,
		        error_message, started_at, completed_at
		 FROM workflow_runs
		 WHERE user_id = $1
		 ORDER BY started_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow runs: %w", err)
	}
	defer rows.Close()

	var runs []WorkflowRun
	for rows.Next() {
		var run WorkflowRun
		var stepsJSON, statsJSON []byte
		var errorMessage *string

		if err := rows.Scan(&run.ID, &run.UserID, &run.Status, &stepsJSON, &statsJSON,
			&run.CancelRequested, &errorMessage, &run.StartedAt, &run.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan workflow run: %w", err)
		}

		if stepsJSON != nil {
			_ = json.Unmarshal(stepsJSON, &run.Steps)
		}
		if statsJSON != nil {
			_ = json.Unmarshal(statsJSON, &run.Stats)
		}
		if errorMessage != nil {
			run.ErrorMessage = *errorMessage
		}

		runs = append(runs, run)
	}
	return runs, nil
}
