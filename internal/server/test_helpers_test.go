package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/job-tracker/internal/analysis"
	"github.com/jonathan/job-tracker/internal/db"
	"github.com/jonathan/job-tracker/internal/source"
)

// memStore is an in-memory Store for handler tests.
type memStore struct {
	mu       sync.Mutex
	runs     map[uuid.UUID]*db.WorkflowRun
	settings map[uuid.UUID]*db.WorkflowSettings
	records  map[uuid.UUID]*db.AutoJobRecord
	byKey    map[string]uuid.UUID
	recs     map[uuid.UUID]*db.RecommendationEntry
}

func newMemStore() *memStore {
	return &memStore{
		runs:     make(map[uuid.UUID]*db.WorkflowRun),
		settings: make(map[uuid.UUID]*db.WorkflowSettings),
		records:  make(map[uuid.UUID]*db.AutoJobRecord),
		byKey:    make(map[string]uuid.UUID),
		recs:     make(map[uuid.UUID]*db.RecommendationEntry),
	}
}

func cloneRun(run *db.WorkflowRun) *db.WorkflowRun {
	clone := *run
	clone.Steps = append([]db.WorkflowStep(nil), run.Steps...)
	return &clone
}

func (s *memStore) CreateWorkflowRun(_ context.Context, userID uuid.UUID) (*db.WorkflowRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run := &db.WorkflowRun{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    db.RunStatusRunning,
		Steps:     db.NewPendingSteps(),
		StartedAt: time.Now(),
	}
	s.runs[run.ID] = cloneRun(run)
	return cloneRun(run), nil
}

func (s *memStore) GetWorkflowRun(_ context.Context, runID uuid.UUID) (*db.WorkflowRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, nil
	}
	return cloneRun(run), nil
}

func (s *memStore) GetActiveWorkflowRun(_ context.Context, userID uuid.UUID) (*db.WorkflowRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, run := range s.runs {
		if run.UserID == userID && run.Status == db.RunStatusRunning {
			return cloneRun(run), nil
		}
	}
	return nil, nil
}

func (s *memStore) SaveRunState(_ context.Context, run *db.WorkflowRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = cloneRun(run)
	return nil
}

func (s *memStore) RequestRunCancel(_ context.Context, runID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runs[runID]; ok {
		run.CancelRequested = true
	}
	return nil
}

func (s *memStore) ListWorkflowRuns(_ context.Context, userID uuid.UUID, _ int) ([]db.WorkflowRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.WorkflowRun
	for _, run := range s.runs {
		if run.UserID == userID {
			out = append(out, *cloneRun(run))
		}
	}
	return out, nil
}

func (s *memStore) GetWorkflowSettings(_ context.Context, userID uuid.UUID) (*db.WorkflowSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings, ok := s.settings[userID]
	if !ok {
		return nil, nil
	}
	clone := *settings
	return &clone, nil
}

func (s *memStore) UpsertWorkflowSettings(_ context.Context, settings *db.WorkflowSettings) (*db.WorkflowSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if settings.MaxJobs <= 0 {
		settings.MaxJobs = db.DefaultMaxJobs
	}
	settings.UpdatedAt = time.Now()
	clone := *settings
	s.settings[settings.UserID] = &clone
	out := clone
	return &out, nil
}

func (s *memStore) MarkInterruptedRuns(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, run := range s.runs {
		if run.Status == db.RunStatusRunning {
			run.Status = db.RunStatusFailed
			run.ErrorMessage = "interrupted"
			n++
		}
	}
	return n, nil
}

func (s *memStore) UpsertAutoJob(_ context.Context, input *db.AutoJobCreateInput) (*db.AutoJobRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := input.UserID.String() + "|" + input.ExternalID
	if id, ok := s.byKey[key]; ok {
		clone := *s.records[id]
		return &clone, false, nil
	}
	record := &db.AutoJobRecord{
		ID:               uuid.New(),
		UserID:           input.UserID,
		ExternalID:       input.ExternalID,
		JobTitle:         input.JobTitle,
		CompanyName:      input.CompanyName,
		JobURL:           input.JobURL,
		Description:      input.Description,
		ProcessingStatus: db.JobStatusPending,
		DiscoveredAt:     time.Now(),
	}
	s.records[record.ID] = record
	s.byKey[key] = record.ID
	clone := *record
	return &clone, true, nil
}

func (s *memStore) GetAutoJob(_ context.Context, id uuid.UUID) (*db.AutoJobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	clone := *record
	return &clone, nil
}

func (s *memStore) UpdateAutoJobStatus(_ context.Context, id uuid.UUID, status string, extracted map[string]any, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return fmt.Errorf("no such record %s", id)
	}
	record.ProcessingStatus = status
	if extracted != nil {
		record.ExtractedData = extracted
	}
	record.ErrorMessage = errorMsg
	now := time.Now()
	record.ProcessedAt = &now
	return nil
}

func (s *memStore) ListAutoJobs(_ context.Context, userID uuid.UUID, opts db.ListAutoJobsOptions) ([]db.AutoJobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.AutoJobRecord
	for _, record := range s.records {
		if record.UserID != userID {
			continue
		}
		if opts.Status != "" && record.ProcessingStatus != opts.Status {
			continue
		}
		out = append(out, *record)
	}
	return out, nil
}

func (s *memStore) GetRecommendation(_ context.Context, autoJobID uuid.UUID) (*db.RecommendationEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.recs[autoJobID]
	if !ok {
		return nil, nil
	}
	clone := *entry
	return &clone, nil
}

func (s *memStore) PutRecommendationPlaceholder(_ context.Context, autoJobID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[autoJobID] = &db.RecommendationEntry{
		AutoJobID: autoJobID,
		Reason:    db.PlaceholderReason,
		CachedAt:  time.Now(),
	}
	return nil
}

func (s *memStore) FinalizeRecommendation(_ context.Context, entry *db.RecommendationEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *entry
	s.recs[entry.AutoJobID] = &clone
	return nil
}

func (s *memStore) DeleteRecommendation(_ context.Context, autoJobID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recs, autoJobID)
	return nil
}

func (s *memStore) DeleteStuckRecommendations(_ context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	now := time.Now()
	for id, entry := range s.recs {
		if entry.IsStuck(now, olderThan) {
			delete(s.recs, id)
			n++
		}
	}
	return n, nil
}

// stubSource returns canned postings.
type stubSource struct {
	postings []source.RawPosting
	err      error
}

func (f *stubSource) Search(_ context.Context, _ *db.WorkflowSettings) ([]source.RawPosting, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.postings, nil
}

// stubAdapter returns canned analysis results.
type stubAdapter struct {
	shouldApply bool
}

func (a *stubAdapter) Extract(_ context.Context, _ string) (map[string]any, error) {
	return map[string]any{"requirements": []any{"Go"}, "responsibilities": []any{"Build"}}, nil
}

func (a *stubAdapter) Recommend(_ context.Context, _ *db.AutoJobRecord, _ string) (*analysis.Recommendation, error) {
	score := 0.2
	if a.shouldApply {
		score = 0.9
	}
	return &analysis.Recommendation{Score: score, ShouldApply: a.shouldApply, Reason: "skill overlap"}, nil
}

// newTestServer creates a server over in-memory fakes.
func newTestServer() (*Server, *memStore) {
	store := newMemStore()
	s := newServer(store, &stubSource{}, &stubAdapter{shouldApply: true}, 0)
	return s, store
}
