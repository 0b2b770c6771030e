package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-tracker/internal/server"
)

var (
	servePort    int
	serveBrowser bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes REST endpoints for triggering and observing workflow runs.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	serveCmd.Flags().BoolVar(&serveBrowser, "browser", false, "Fall back to headless browser rendering for JS-heavy job boards")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadServerConfig()
	if err != nil {
		return err
	}
	cfg.Port = servePort
	cfg.UseBrowser = serveBrowser

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}

// loadServerConfig reads the required environment configuration.
func loadServerConfig() (server.Config, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return server.Config{}, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return server.Config{}, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	boardURL := os.Getenv("JOB_BOARD_URL")
	if boardURL == "" {
		return server.Config{}, fmt.Errorf("JOB_BOARD_URL environment variable is required")
	}

	return server.Config{
		DatabaseURL:  databaseURL,
		GeminiAPIKey: apiKey,
		BoardURL:     boardURL,
	}, nil
}
