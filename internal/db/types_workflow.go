package db

import (
	"time"

	"github.com/google/uuid"
)

// Workflow run status constants. Completed, failed and cancelled are terminal.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusCancelled = "cancelled"
)

// Workflow step status constants. Transitions are forward-only:
// pending -> running -> completed|failed.
const (
	StepStatusPending   = "pending"
	StepStatusRunning   = "running"
	StepStatusCompleted = "completed"
	StepStatusFailed    = "failed"
)

// Fixed pipeline step names, in execution order.
const (
	StepDiscover    = "discover"
	StepDeduplicate = "deduplicate"
	StepExtract     = "extract"
	StepRecommend   = "recommend"
	StepGenerate    = "generate"
)

// StepNames returns the fixed pipeline in execution order.
func StepNames() []string {
	return []string{StepDiscover, StepDeduplicate, StepExtract, StepRecommend, StepGenerate}
}

// RunStats holds per-run counters. Counters are monotonically non-decreasing
// and mutated only by the run controller.
type RunStats struct {
	JobsFound   int `json:"jobs_found"`
	NewJobs     int `json:"new_jobs"`
	Duplicates  int `json:"duplicates"`
	Analyzed    int `json:"analyzed"`
	Relevant    int `json:"relevant"`
	NotRelevant int `json:"not_relevant"`
	Generated   int `json:"generated"`
	Errors      int `json:"errors"`
}

// WorkflowStep is one stage of a run's fixed pipeline.
type WorkflowStep struct {
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	Message     string     `json:"message,omitempty"`
	Count       int        `json:"count"`
	Total       int        `json:"total"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// RunProgress is the derived progress view of a run.
type RunProgress struct {
	CurrentStepIndex int     `json:"current_step_index"`
	Percentage       float64 `json:"percentage"`
}

// WorkflowRun is one execution instance of the auto-job pipeline.
type WorkflowRun struct {
	ID              uuid.UUID      `json:"id"`
	UserID          uuid.UUID      `json:"user_id"`
	Status          string         `json:"status"`
	Steps           []WorkflowStep `json:"steps"`
	Progress        RunProgress    `json:"progress"`
	Stats           RunStats       `json:"stats"`
	CancelRequested bool           `json:"cancel_requested"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	StartedAt       time.Time      `json:"started_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the run has reached a terminal status.
func (r *WorkflowRun) IsTerminal() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusFailed || r.Status == RunStatusCancelled
}

// NewPendingSteps returns the fixed pipeline with every step pending.
func NewPendingSteps() []WorkflowStep {
	names := StepNames()
	steps := make([]WorkflowStep, len(names))
	for i, name := range names {
		steps[i] = WorkflowStep{Name: name, Status: StepStatusPending}
	}
	return steps
}
