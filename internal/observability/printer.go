// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/job-tracker/internal/db"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintRunSummary outputs a human-readable summary of a workflow run.
func (p *Printer) PrintRunSummary(run *db.WorkflowRun) {
	if run == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:      %s\n", run.ID))
	sb.WriteString(fmt.Sprintf("Status:   %s\n", run.Status))
	sb.WriteString(fmt.Sprintf("Progress: %.0f%%\n", run.Progress.Percentage))
	if run.ErrorMessage != "" {
		msg := run.ErrorMessage
		if len(msg) > 45 {
			msg = msg[:42] + "..."
		}
		sb.WriteString(fmt.Sprintf("Error:    %s\n", msg))
	}
	sb.WriteString("\n")

	for _, step := range run.Steps {
		marker := " "
		switch step.Status {
		case db.StepStatusCompleted:
			marker = "✓"
		case db.StepStatusFailed:
			marker = "✗"
		case db.StepStatusRunning:
			marker = "▶"
		}
		sb.WriteString(fmt.Sprintf("%s %-12s %s", marker, step.Name, step.Status))
		if step.Total > 0 {
			sb.WriteString(fmt.Sprintf(" (%d/%d)", step.Count, step.Total))
		}
		sb.WriteString("\n")
	}

	p.printBox("WORKFLOW RUN", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRunStats outputs the run's counters.
func (p *Printer) PrintRunStats(stats db.RunStats) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found:        %d\n", stats.JobsFound))
	sb.WriteString(fmt.Sprintf("New:          %d\n", stats.NewJobs))
	sb.WriteString(fmt.Sprintf("Duplicates:   %d\n", stats.Duplicates))
	sb.WriteString(fmt.Sprintf("Analyzed:     %d\n", stats.Analyzed))
	sb.WriteString(fmt.Sprintf("Relevant:     %d\n", stats.Relevant))
	sb.WriteString(fmt.Sprintf("Not relevant: %d\n", stats.NotRelevant))
	sb.WriteString(fmt.Sprintf("Generated:    %d\n", stats.Generated))
	sb.WriteString(fmt.Sprintf("Errors:       %d", stats.Errors))

	p.printBox("RUN STATS", sb.String())
}

// PrintDiscoveredJobs outputs the first few discovered jobs.
func (p *Printer) PrintDiscoveredJobs(records []db.AutoJobRecord) {
	if len(records) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Discovered %d jobs:\n\n", len(records)))

	count := min(len(records), maxItemsToShow)
	for i := 0; i < count; i++ {
		record := records[i]
		title := record.JobTitle
		if len(title) > 40 {
			title = title[:37] + "..."
		}
		sb.WriteString(fmt.Sprintf("• %s\n", title))
		sb.WriteString(fmt.Sprintf("  %s [%s]\n", record.CompanyName, record.ProcessingStatus))
		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(records) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more jobs", len(records)-maxItemsToShow))
	}

	p.printBox("DISCOVERED JOBS", sb.String())
}

// PrintRecommendation outputs one job's recommendation verdict.
func (p *Printer) PrintRecommendation(record *db.AutoJobRecord, entry *db.RecommendationEntry) {
	if record == nil || entry == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Job:      %s\n", record.JobTitle))
	sb.WriteString(fmt.Sprintf("Company:  %s\n", record.CompanyName))
	sb.WriteString("\n")

	switch {
	case entry.Error != "":
		msg := entry.Error
		if len(msg) > 45 {
			msg = msg[:42] + "..."
		}
		sb.WriteString(fmt.Sprintf("⚠ failed: %s", msg))
	case entry.Score == nil:
		sb.WriteString("… still calculating")
	default:
		verdict := "skip"
		if entry.ShouldApply {
			verdict = "apply"
		}
		sb.WriteString(fmt.Sprintf("Score:    %.2f (%s)\n", *entry.Score, verdict))
		reason := entry.Reason
		if len(reason) > 45 {
			reason = reason[:42] + "..."
		}
		sb.WriteString(fmt.Sprintf("Reason:   %s", reason))
	}

	p.printBox("RECOMMENDATION", sb.String())
}
