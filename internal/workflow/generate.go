package workflow

import (
	"context"

	"github.com/jonathan/job-tracker/internal/db"
)

// Generator produces an application document for a job that reached the
// generate step.
type Generator interface {
	Generate(ctx context.Context, record *db.AutoJobRecord) error
}

// NoopGenerator satisfies Generator without producing anything. Used when no
// document renderer is configured; the run still records which jobs reached
// generation.
type NoopGenerator struct{}

// Generate does nothing.
func (NoopGenerator) Generate(context.Context, *db.AutoJobRecord) error { return nil }
