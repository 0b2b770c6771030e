package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-tracker/internal/db"
	"github.com/jonathan/job-tracker/internal/recommend"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Clear crash leftovers",
	Long:  `Mark interrupted workflow runs as failed and delete stuck recommendation placeholders. The server does this automatically at startup; this command is for one-off maintenance.`,
	RunE:  runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(_ *cobra.Command, _ []string) error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}

	ctx := context.Background()
	database, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	interrupted, err := database.MarkInterruptedRuns(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark interrupted runs: %w", err)
	}

	sweeper := recommend.NewSweeper(database, 0, 0)
	cleared, err := sweeper.SweepOnce(ctx)
	if err != nil {
		return fmt.Errorf("failed to sweep recommendations: %w", err)
	}

	fmt.Printf("Marked %d interrupted runs, cleared %d stuck recommendation entries\n", interrupted, cleared)
	return nil
}
