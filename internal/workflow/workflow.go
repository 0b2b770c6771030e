// Package workflow implements the auto-job run controller: a fixed pipeline
// of discover, deduplicate, extract, recommend and generate steps executed in
// the background, one active run per owner.
package workflow

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/jonathan/job-tracker/internal/analysis"
	"github.com/jonathan/job-tracker/internal/db"
	"github.com/jonathan/job-tracker/internal/jobs"
	"github.com/jonathan/job-tracker/internal/source"
)

// ErrAlreadyRunning is returned by Trigger when the owner already has an
// active run.
var ErrAlreadyRunning = errors.New("an active workflow run already exists for this user")

// ErrRunNotFound is returned when no run exists for the given ID.
var ErrRunNotFound = errors.New("workflow run not found")

// DefaultExtractWorkers bounds the extract step's concurrent AI calls.
const DefaultExtractWorkers = 4

// Store is the persistence surface the controller needs.
type Store interface {
	CreateWorkflowRun(ctx context.Context, userID uuid.UUID) (*db.WorkflowRun, error)
	GetWorkflowRun(ctx context.Context, runID uuid.UUID) (*db.WorkflowRun, error)
	GetActiveWorkflowRun(ctx context.Context, userID uuid.UUID) (*db.WorkflowRun, error)
	SaveRunState(ctx context.Context, run *db.WorkflowRun) error
	RequestRunCancel(ctx context.Context, runID uuid.UUID) error
	ListWorkflowRuns(ctx context.Context, userID uuid.UUID, limit int) ([]db.WorkflowRun, error)
	GetWorkflowSettings(ctx context.Context, userID uuid.UUID) (*db.WorkflowSettings, error)
}

// Recommender memoizes match verdicts per job.
type Recommender interface {
	GetOrCompute(ctx context.Context, record *db.AutoJobRecord, profile string, forceRefresh bool) (*db.RecommendationEntry, error)
}

// Config tunes controller behavior. Zero values use the defaults.
type Config struct {
	ExtractWorkers int
}

// Controller owns run execution. Runs execute on background goroutines and
// outlive the HTTP request that triggered them; callers observe progress
// through Snapshot.
type Controller struct {
	store    Store
	registry *jobs.Registry
	src      source.Source
	adapter  analysis.Adapter
	recs     Recommender
	gen      Generator
	workers  int

	mu     sync.Mutex
	active map[uuid.UUID]*runState  // run ID -> live state
	owners map[uuid.UUID]uuid.UUID // owner ID -> active run ID
}

// NewController wires a controller.
func NewController(store Store, registry *jobs.Registry, src source.Source, adapter analysis.Adapter, recs Recommender, gen Generator, cfg Config) *Controller {
	workers := cfg.ExtractWorkers
	if workers <= 0 {
		workers = DefaultExtractWorkers
	}
	if gen == nil {
		gen = NoopGenerator{}
	}
	return &Controller{
		store:    store,
		registry: registry,
		src:      src,
		adapter:  adapter,
		recs:     recs,
		gen:      gen,
		workers:  workers,
		active:   make(map[uuid.UUID]*runState),
		owners:   make(map[uuid.UUID]uuid.UUID),
	}
}

// Trigger starts a run for an owner and returns its initial snapshot. At most
// one run per owner may be active; a second trigger returns ErrAlreadyRunning
// and starts nothing.
func (c *Controller) Trigger(ctx context.Context, userID uuid.UUID) (*db.WorkflowRun, error) {
	c.mu.Lock()
	if _, busy := c.owners[userID]; busy {
		c.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	// Reserve the owner before any I/O so concurrent triggers serialize here.
	c.owners[userID] = uuid.Nil
	c.mu.Unlock()

	release := func() {
		c.mu.Lock()
		delete(c.owners, userID)
		c.mu.Unlock()
	}

	// A running row left by another process also blocks a new run.
	active, err := c.store.GetActiveWorkflowRun(ctx, userID)
	if err != nil {
		release()
		return nil, err
	}
	if active != nil {
		release()
		return nil, ErrAlreadyRunning
	}

	run, err := c.store.CreateWorkflowRun(ctx, userID)
	if err != nil {
		release()
		return nil, err
	}

	st := newRunState(run)
	c.mu.Lock()
	c.owners[userID] = run.ID
	c.active[run.ID] = st
	c.mu.Unlock()

	go c.execute(st)

	return st.snapshot(), nil
}

// Snapshot returns the current view of a run: the live in-memory state while
// the run executes, the stored row after it finishes.
func (c *Controller) Snapshot(ctx context.Context, runID uuid.UUID) (*db.WorkflowRun, error) {
	c.mu.Lock()
	st := c.active[runID]
	c.mu.Unlock()
	if st != nil {
		return st.snapshot(), nil
	}

	run, err := c.store.GetWorkflowRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// Cancel requests cooperative cancellation and returns immediately with the
// run's current snapshot. The run observes the flag at its next checkpoint;
// cancelling a terminal run is a no-op.
func (c *Controller) Cancel(ctx context.Context, runID uuid.UUID) (*db.WorkflowRun, error) {
	c.mu.Lock()
	st := c.active[runID]
	c.mu.Unlock()
	if st != nil {
		st.requestCancel()
		if err := c.store.RequestRunCancel(ctx, runID); err != nil {
			log.Printf("Warning: failed to persist cancel flag for run %s: %v", runID, err)
		}
		return st.snapshot(), nil
	}

	run, err := c.store.GetWorkflowRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrRunNotFound
	}
	if run.IsTerminal() {
		return run, nil
	}
	// A running row without live state belongs to another process; flag it so
	// that process observes the request.
	if err := c.store.RequestRunCancel(ctx, runID); err != nil {
		return nil, err
	}
	run.CancelRequested = true
	return run, nil
}

// ListRuns returns an owner's recent runs, newest first.
func (c *Controller) ListRuns(ctx context.Context, userID uuid.UUID, limit int) ([]db.WorkflowRun, error) {
	return c.store.ListWorkflowRuns(ctx, userID, limit)
}

// ActiveRun returns the owner's in-flight run, or nil.
func (c *Controller) ActiveRun(ctx context.Context, userID uuid.UUID) (*db.WorkflowRun, error) {
	c.mu.Lock()
	runID, busy := c.owners[userID]
	var st *runState
	if busy && runID != uuid.Nil {
		st = c.active[runID]
	}
	c.mu.Unlock()
	if st != nil {
		return st.snapshot(), nil
	}
	return c.store.GetActiveWorkflowRun(ctx, userID)
}

// release drops a finished run from the live maps. Snapshot falls through to
// the store afterward.
func (c *Controller) release(runID, userID uuid.UUID) {
	c.mu.Lock()
	delete(c.active, runID)
	if c.owners[userID] == runID {
		delete(c.owners, userID)
	}
	c.mu.Unlock()
}
