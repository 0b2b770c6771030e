package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/job-tracker/internal/db"
	"github.com/jonathan/job-tracker/internal/source"
)

// Fixed step indices, matching db.StepNames order.
const (
	idxDiscover = iota
	idxDeduplicate
	idxExtract
	idxRecommend
	idxGenerate
)

// execute runs the pipeline to a terminal state. It runs on its own goroutine
// with a background context: the run belongs to the engine, not to the HTTP
// request that triggered it.
func (c *Controller) execute(st *runState) {
	ctx := context.Background()
	snap := st.snapshot()
	runID, userID := snap.ID, snap.UserID

	defer c.release(runID, userID)
	defer func() {
		if r := recover(); r != nil {
			c.failRun(ctx, st, -1, fmt.Sprintf("run panicked: %v", r))
		}
	}()

	settings, err := c.store.GetWorkflowSettings(ctx, userID)
	if err != nil {
		c.failRun(ctx, st, idxDiscover, fmt.Sprintf("failed to load workflow settings: %v", err))
		return
	}
	if settings == nil {
		c.failRun(ctx, st, idxDiscover, "workflow settings not configured")
		return
	}

	postings, ok := c.runDiscover(ctx, st, settings)
	if !ok {
		return
	}
	if st.cancelRequested() {
		c.finishCancelled(ctx, st, -1)
		return
	}

	worklist, ok := c.runDeduplicate(ctx, st, userID, settings, postings)
	if !ok {
		return
	}
	if st.cancelRequested() {
		c.finishCancelled(ctx, st, -1)
		return
	}

	analyzed, ok := c.runExtract(ctx, st, worklist)
	if !ok {
		return
	}
	if st.cancelRequested() {
		c.finishCancelled(ctx, st, -1)
		return
	}

	relevant, ok := c.runRecommend(ctx, st, settings, analyzed)
	if !ok {
		return
	}
	if st.cancelRequested() {
		c.finishCancelled(ctx, st, -1)
		return
	}

	if ok := c.runGenerate(ctx, st, relevant); !ok {
		return
	}

	now := time.Now()
	st.update(func(run *db.WorkflowRun) {
		run.Status = db.RunStatusCompleted
		run.CompletedAt = &now
	})
	c.publish(ctx, st)
}

// runDiscover queries the job source and admits at most maxJobs postings into
// the pipeline. A source failure is structural and fails the run.
func (c *Controller) runDiscover(ctx context.Context, st *runState, settings *db.WorkflowSettings) ([]source.RawPosting, bool) {
	c.startStep(ctx, st, idxDiscover, 0)

	postings, err := c.src.Search(ctx, settings)
	if err != nil {
		if errors.Is(err, source.ErrSourceUnavailable) {
			c.failRun(ctx, st, idxDiscover, fmt.Sprintf("job source unavailable: %v", err))
		} else {
			c.failRun(ctx, st, idxDiscover, fmt.Sprintf("job discovery failed: %v", err))
		}
		return nil, false
	}

	found := len(postings)
	maxJobs := settings.MaxJobs
	if maxJobs <= 0 {
		maxJobs = db.DefaultMaxJobs
	}
	if len(postings) > maxJobs {
		postings = postings[:maxJobs]
	}

	admitted := len(postings)
	st.update(func(run *db.WorkflowRun) {
		run.Stats.JobsFound = found
		run.Steps[idxDiscover].Count = admitted
		run.Steps[idxDiscover].Total = admitted
	})
	c.completeStep(ctx, st, idxDiscover, fmt.Sprintf("found %d postings, admitted %d", found, admitted))
	return postings, true
}

// runDeduplicate upserts every admitted posting into the registry and builds
// the worklist for the analysis steps. Duplicates are excluded from the
// worklist when the owner's settings say to avoid them.
func (c *Controller) runDeduplicate(ctx context.Context, st *runState, userID uuid.UUID, settings *db.WorkflowSettings, postings []source.RawPosting) ([]*db.AutoJobRecord, bool) {
	c.startStep(ctx, st, idxDeduplicate, len(postings))

	var worklist []*db.AutoJobRecord
	for _, posting := range postings {
		if st.cancelRequested() {
			c.finishCancelled(ctx, st, idxDeduplicate)
			return nil, false
		}

		record, isNew, err := c.registry.UpsertDiscovered(ctx, userID, posting)
		if err != nil {
			st.update(func(run *db.WorkflowRun) {
				run.Stats.Errors++
				run.Steps[idxDeduplicate].Count++
			})
			c.publish(ctx, st)
			continue
		}

		st.update(func(run *db.WorkflowRun) {
			if isNew {
				run.Stats.NewJobs++
			} else {
				run.Stats.Duplicates++
			}
			run.Steps[idxDeduplicate].Count++
		})

		if isNew || !settings.AvoidDuplicates {
			worklist = append(worklist, record)
		}
		c.publish(ctx, st)
	}

	snap := st.snapshot()
	c.completeStep(ctx, st, idxDeduplicate,
		fmt.Sprintf("%d new, %d duplicates", snap.Stats.NewJobs, snap.Stats.Duplicates))
	return worklist, true
}

// runExtract pulls structured fields out of each posting with a bounded pool
// of concurrent AI calls. An item failure marks that record and moves on.
func (c *Controller) runExtract(ctx context.Context, st *runState, worklist []*db.AutoJobRecord) ([]*db.AutoJobRecord, bool) {
	c.startStep(ctx, st, idxExtract, len(worklist))

	g := new(errgroup.Group)
	g.SetLimit(c.workers)

	var mu sync.Mutex
	analyzed := make([]*db.AutoJobRecord, 0, len(worklist))

	interrupted := false
	for _, record := range worklist {
		if st.cancelRequested() {
			interrupted = true
			break
		}

		record := record
		g.Go(func() error {
			fields, err := c.adapter.Extract(ctx, record.Description)
			if err != nil {
				c.markItemError(ctx, st, idxExtract, record.ID, fmt.Sprintf("extraction failed: %v", err))
				return nil
			}
			if err := c.registry.MarkAnalyzed(ctx, record.ID, fields); err != nil {
				c.markItemError(ctx, st, idxExtract, record.ID, fmt.Sprintf("failed to store extraction: %v", err))
				return nil
			}

			mu.Lock()
			record.ExtractedData = fields
			analyzed = append(analyzed, record)
			mu.Unlock()

			st.update(func(run *db.WorkflowRun) {
				run.Stats.Analyzed++
				run.Steps[idxExtract].Count++
			})
			c.publish(ctx, st)
			return nil
		})
	}
	_ = g.Wait()

	if interrupted {
		c.finishCancelled(ctx, st, idxExtract)
		return nil, false
	}

	c.completeStep(ctx, st, idxExtract, fmt.Sprintf("analyzed %d postings", len(analyzed)))
	return analyzed, true
}

// runRecommend scores each analyzed job through the recommendation cache.
// Failed entries count as item errors; relevance verdicts are written back to
// the registry.
func (c *Controller) runRecommend(ctx context.Context, st *runState, settings *db.WorkflowSettings, analyzed []*db.AutoJobRecord) ([]*db.AutoJobRecord, bool) {
	c.startStep(ctx, st, idxRecommend, len(analyzed))

	var relevant []*db.AutoJobRecord
	for _, record := range analyzed {
		if st.cancelRequested() {
			c.finishCancelled(ctx, st, idxRecommend)
			return nil, false
		}

		entry, err := c.recs.GetOrCompute(ctx, record, settings.ProfileSummary, false)
		if err != nil {
			c.markItemError(ctx, st, idxRecommend, record.ID, fmt.Sprintf("recommendation failed: %v", err))
			continue
		}
		if entry.Error != "" {
			c.markItemError(ctx, st, idxRecommend, record.ID, entry.Error)
			continue
		}

		if err := c.registry.MarkRelevance(ctx, record.ID, entry.ShouldApply); err != nil {
			c.markItemError(ctx, st, idxRecommend, record.ID, fmt.Sprintf("failed to store verdict: %v", err))
			continue
		}

		st.update(func(run *db.WorkflowRun) {
			if entry.ShouldApply {
				run.Stats.Relevant++
			} else {
				run.Stats.NotRelevant++
			}
			run.Steps[idxRecommend].Count++
		})
		if entry.ShouldApply {
			relevant = append(relevant, record)
		}
		c.publish(ctx, st)
	}

	snap := st.snapshot()
	c.completeStep(ctx, st, idxRecommend,
		fmt.Sprintf("%d relevant, %d not relevant", snap.Stats.Relevant, snap.Stats.NotRelevant))
	return relevant, true
}

// runGenerate invokes the document generator for each relevant job.
func (c *Controller) runGenerate(ctx context.Context, st *runState, relevant []*db.AutoJobRecord) bool {
	c.startStep(ctx, st, idxGenerate, len(relevant))

	generated := 0
	for _, record := range relevant {
		if st.cancelRequested() {
			c.finishCancelled(ctx, st, idxGenerate)
			return false
		}

		if err := c.gen.Generate(ctx, record); err != nil {
			c.markItemError(ctx, st, idxGenerate, record.ID, fmt.Sprintf("generation failed: %v", err))
			continue
		}
		if err := c.registry.MarkGenerated(ctx, record.ID); err != nil {
			log.Printf("Warning: failed to mark job %s generated: %v", record.ID, err)
		}

		generated++
		st.update(func(run *db.WorkflowRun) {
			run.Stats.Generated++
			run.Steps[idxGenerate].Count++
		})
		c.publish(ctx, st)
	}

	c.completeStep(ctx, st, idxGenerate, fmt.Sprintf("generated %d documents", generated))
	return true
}

// -----------------------------------------------------------------------------
// Transition helpers
// -----------------------------------------------------------------------------

// publish persists the current snapshot. Persistence failures are logged, not
// fatal: the in-memory state remains authoritative while the run lives.
func (c *Controller) publish(ctx context.Context, st *runState) {
	if err := c.store.SaveRunState(ctx, st.snapshot()); err != nil {
		log.Printf("Warning: failed to persist run state: %v", err)
	}
}

func (c *Controller) startStep(ctx context.Context, st *runState, idx, total int) {
	now := time.Now()
	st.update(func(run *db.WorkflowRun) {
		step := &run.Steps[idx]
		step.Status = db.StepStatusRunning
		step.Total = total
		step.StartedAt = &now
	})
	c.publish(ctx, st)
}

func (c *Controller) completeStep(ctx context.Context, st *runState, idx int, message string) {
	now := time.Now()
	st.update(func(run *db.WorkflowRun) {
		step := &run.Steps[idx]
		step.Status = db.StepStatusCompleted
		step.Message = message
		step.CompletedAt = &now
	})
	c.publish(ctx, st)
}

// failRun marks the run failed. Step idx (if any) fails with it; steps after
// it stay pending.
func (c *Controller) failRun(ctx context.Context, st *runState, idx int, message string) {
	now := time.Now()
	st.update(func(run *db.WorkflowRun) {
		if idx >= 0 && idx < len(run.Steps) {
			step := &run.Steps[idx]
			if step.Status == db.StepStatusPending || step.Status == db.StepStatusRunning {
				if step.StartedAt == nil {
					step.StartedAt = &now
				}
				step.Status = db.StepStatusFailed
				step.Message = message
				step.CompletedAt = &now
			}
		}
		run.Status = db.RunStatusFailed
		run.ErrorMessage = message
		run.CompletedAt = &now
	})
	c.publish(ctx, st)
}

// finishCancelled finalizes a cancelled run. Stats and records written so far
// are preserved; the in-flight step closes out failed with its partial counts
// and later steps stay pending.
func (c *Controller) finishCancelled(ctx context.Context, st *runState, idx int) {
	now := time.Now()
	st.update(func(run *db.WorkflowRun) {
		if idx >= 0 && idx < len(run.Steps) && run.Steps[idx].Status == db.StepStatusRunning {
			step := &run.Steps[idx]
			step.Status = db.StepStatusFailed
			step.Message = "cancelled"
			step.CompletedAt = &now
		}
		run.Status = db.RunStatusCancelled
		run.CancelRequested = true
		run.CompletedAt = &now
	})
	c.publish(ctx, st)
}

// markItemError records a per-item failure: the job row gets the message, the
// run counts the error, and the step's processed count still advances.
func (c *Controller) markItemError(ctx context.Context, st *runState, idx int, recordID uuid.UUID, message string) {
	if err := c.registry.MarkError(ctx, recordID, message); err != nil {
		log.Printf("Warning: failed to mark job %s errored: %v", recordID, err)
	}
	st.update(func(run *db.WorkflowRun) {
		run.Stats.Errors++
		run.Steps[idx].Count++
	})
	c.publish(ctx, st)
}
