package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/job-tracker/internal/analysis"
	"github.com/jonathan/job-tracker/internal/db"
	"github.com/jonathan/job-tracker/internal/jobs"
	"github.com/jonathan/job-tracker/internal/llm"
	"github.com/jonathan/job-tracker/internal/observability"
	"github.com/jonathan/job-tracker/internal/recommend"
	"github.com/jonathan/job-tracker/internal/source"
	"github.com/jonathan/job-tracker/internal/workflow"
)

var (
	runUserID  string
	runVerbose bool
	runBrowser bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one workflow run and wait for it to finish",
	Long:  `Trigger a workflow run for a user and block until it reaches a terminal state, printing progress along the way.`,
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runUserID, "user", "", "User ID to run the workflow for (required)")
	runCmd.Flags().BoolVar(&runVerbose, "verbose", false, "Print progress after every step")
	runCmd.Flags().BoolVar(&runBrowser, "browser", false, "Fall back to headless browser rendering for JS-heavy job boards")
	_ = runCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(runCmd)
}

func runRun(_ *cobra.Command, _ []string) error {
	userID, err := uuid.Parse(runUserID)
	if err != nil {
		return fmt.Errorf("invalid user ID %q: %w", runUserID, err)
	}

	cfg, err := loadServerConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	client, err := llm.NewClient(ctx, llm.DefaultConfig(), cfg.GeminiAPIKey)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	defer client.Close() //nolint:errcheck

	// Runs left running by a dead process block new triggers; fail them first.
	if n, err := database.MarkInterruptedRuns(ctx); err != nil {
		log.Printf("Warning: failed to mark interrupted runs: %v", err)
	} else if n > 0 {
		log.Printf("Marked %d interrupted runs as failed", n)
	}

	adapter := analysis.NewGeminiAdapter(client, 0)
	src := source.NewBoardSource(source.BoardConfig{
		BaseURL:    cfg.BoardURL,
		UseBrowser: runBrowser,
		Verbose:    runVerbose,
	})
	registry := jobs.NewRegistry(database)
	cache := recommend.NewCache(database, adapter, 0)
	ctrl := workflow.NewController(database, registry, src, adapter, cache, workflow.NoopGenerator{}, workflow.Config{})

	run, err := ctrl.Trigger(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	fmt.Printf("Started run %s\n", run.ID)

	printer := observability.NewPrinter(os.Stdout)
	for {
		time.Sleep(time.Second)

		snap, err := ctrl.Snapshot(ctx, run.ID)
		if err != nil {
			return fmt.Errorf("failed to read run state: %w", err)
		}
		if snap.IsTerminal() {
			printer.PrintRunSummary(snap)
			printer.PrintRunStats(snap.Stats)
			if snap.Status != db.RunStatusCompleted {
				return fmt.Errorf("run finished %s: %s", snap.Status, snap.ErrorMessage)
			}
			return nil
		}
		if runVerbose {
			printer.PrintRunSummary(snap)
		}
	}
}
