// Package jobs provides the job registry: the durable record of discovered
// postings and their processing state. The registry owns deduplication; the
// dedup key is the posting's external ID scoped to the owner.
package jobs

import (
	"context"

	"github.com/google/uuid"

	"github.com/jonathan/job-tracker/internal/db"
	"github.com/jonathan/job-tracker/internal/source"
)

// Store is the persistence surface the registry needs.
type Store interface {
	UpsertAutoJob(ctx context.Context, input *db.AutoJobCreateInput) (*db.AutoJobRecord, bool, error)
	GetAutoJob(ctx context.Context, id uuid.UUID) (*db.AutoJobRecord, error)
	UpdateAutoJobStatus(ctx context.Context, id uuid.UUID, status string, extracted map[string]any, errorMsg string) error
	ListAutoJobs(ctx context.Context, userID uuid.UUID, opts db.ListAutoJobsOptions) ([]db.AutoJobRecord, error)
}

// Registry wraps the store with the engine's job bookkeeping.
type Registry struct {
	store Store
}

// NewRegistry creates a registry over the given store.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// UpsertDiscovered records a posting for an owner. The returned flag reports
// whether the posting was new; an existing record (from any prior run) keeps
// its processing state.
func (r *Registry) UpsertDiscovered(ctx context.Context, userID uuid.UUID, posting source.RawPosting) (*db.AutoJobRecord, bool, error) {
	return r.store.UpsertAutoJob(ctx, &db.AutoJobCreateInput{
		UserID:      userID,
		ExternalID:  posting.ExternalID,
		JobTitle:    posting.Title,
		CompanyName: posting.Company,
		JobURL:      posting.URL,
		Description: posting.Description,
	})
}

// MarkAnalyzed stores the extracted fields and moves the record to analyzed.
func (r *Registry) MarkAnalyzed(ctx context.Context, id uuid.UUID, extracted map[string]any) error {
	return r.store.UpdateAutoJobStatus(ctx, id, db.JobStatusAnalyzed, extracted, "")
}

// MarkRelevance records the recommendation verdict on the job row.
func (r *Registry) MarkRelevance(ctx context.Context, id uuid.UUID, shouldApply bool) error {
	status := db.JobStatusNotRelevant
	if shouldApply {
		status = db.JobStatusRelevant
	}
	return r.store.UpdateAutoJobStatus(ctx, id, status, nil, "")
}

// MarkGenerated records that a document was generated for the job.
func (r *Registry) MarkGenerated(ctx context.Context, id uuid.UUID) error {
	return r.store.UpdateAutoJobStatus(ctx, id, db.JobStatusGenerated, nil, "")
}

// MarkError records a per-item processing failure. The record keeps its
// discovered data; only the status and message change.
func (r *Registry) MarkError(ctx context.Context, id uuid.UUID, errorMsg string) error {
	return r.store.UpdateAutoJobStatus(ctx, id, db.JobStatusError, nil, errorMsg)
}

// Get retrieves one record.
func (r *Registry) Get(ctx context.Context, id uuid.UUID) (*db.AutoJobRecord, error) {
	return r.store.GetAutoJob(ctx, id)
}

// List retrieves an owner's records.
func (r *Registry) List(ctx context.Context, userID uuid.UUID, opts db.ListAutoJobsOptions) ([]db.AutoJobRecord, error) {
	return r.store.ListAutoJobs(ctx, userID, opts)
}
