// Package main provides the entry point for the auto-job workflow engine.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "job_agent",
	Short: "Auto-job workflow engine",
	Long:  "job_agent discovers job postings, deduplicates them against the registry, extracts structured fields, scores match recommendations and generates application documents, as a background workflow per user.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
