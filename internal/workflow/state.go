package workflow

import (
	"sync"
	"sync/atomic"

	"github.com/jonathan/job-tracker/internal/db"
)

// runState is the live, mutable state of an executing run. All mutation goes
// through update, which recomputes derived progress under the lock; readers
// get deep-copied snapshots and never see a partially applied transition.
type runState struct {
	mu     sync.RWMutex
	run    db.WorkflowRun
	cancel atomic.Bool
}

func newRunState(run *db.WorkflowRun) *runState {
	st := &runState{run: *run}
	st.run.Steps = append([]db.WorkflowStep(nil), run.Steps...)
	if run.CancelRequested {
		st.cancel.Store(true)
	}
	return st
}

// snapshot returns a deep copy safe to hand to callers and the store.
func (s *runState) snapshot() *db.WorkflowRun {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := s.run
	clone.Steps = append([]db.WorkflowStep(nil), s.run.Steps...)
	return &clone
}

// update applies a mutation and recomputes progress atomically.
func (s *runState) update(fn func(run *db.WorkflowRun)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.run)
	s.run.Progress = computeProgress(&s.run)
}

func (s *runState) requestCancel() {
	s.cancel.Store(true)
	s.update(func(run *db.WorkflowRun) {
		run.CancelRequested = true
	})
}

func (s *runState) cancelRequested() bool {
	return s.cancel.Load()
}

// computeProgress derives the progress view from step states. Each step
// contributes an equal share; a running step contributes its item fraction.
func computeProgress(run *db.WorkflowRun) db.RunProgress {
	total := len(run.Steps)
	if total == 0 {
		return db.RunProgress{}
	}

	done := 0
	fraction := 0.0
	index := 0
	for i, step := range run.Steps {
		switch step.Status {
		case db.StepStatusCompleted, db.StepStatusFailed:
			done++
			index = i
		case db.StepStatusRunning:
			index = i
			if step.Total > 0 {
				fraction = float64(step.Count) / float64(step.Total)
			}
		}
	}

	pct := (float64(done) + fraction) / float64(total) * 100
	if run.Status == db.RunStatusCompleted {
		pct = 100
	}
	if pct > 100 {
		pct = 100
	}

	return db.RunProgress{CurrentStepIndex: index, Percentage: pct}
}
