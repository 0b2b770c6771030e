// Package server provides the HTTP REST API for the auto-job workflow engine.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/job-tracker/internal/analysis"
	"github.com/jonathan/job-tracker/internal/db"
	"github.com/jonathan/job-tracker/internal/jobs"
	"github.com/jonathan/job-tracker/internal/llm"
	"github.com/jonathan/job-tracker/internal/recommend"
	"github.com/jonathan/job-tracker/internal/source"
	"github.com/jonathan/job-tracker/internal/workflow"
)

// Store is the persistence surface the server and its components share.
// *db.DB satisfies it.
type Store interface {
	workflow.Store
	jobs.Store
	recommend.Store
	UpsertWorkflowSettings(ctx context.Context, s *db.WorkflowSettings) (*db.WorkflowSettings, error)
	MarkInterruptedRuns(ctx context.Context) (int, error)
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	db         *db.DB
	store      Store
	ctrl       *workflow.Controller
	registry   *jobs.Registry
	cache      *recommend.Cache
	sweeper    *recommend.Sweeper
	validate   *validator.Validate
	llm        llm.Client
	stopSweep  context.CancelFunc
}

// Config holds server configuration
type Config struct {
	Port         int
	DatabaseURL  string
	GeminiAPIKey string
	BoardURL     string
	UseBrowser   bool
}

// New creates a new server instance
func New(cfg Config) (*Server, error) {
	database, err := db.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	client, err := llm.NewClient(context.Background(), llm.DefaultConfig(), cfg.GeminiAPIKey)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	adapter := analysis.NewGeminiAdapter(client, 0)
	src := source.NewBoardSource(source.BoardConfig{
		BaseURL:    cfg.BoardURL,
		UseBrowser: cfg.UseBrowser,
	})

	s := newServer(database, src, adapter, cfg.Port)
	s.db = database
	s.llm = client
	return s, nil
}

// newServer wires the server around its collaborators. Tests call this
// directly with fakes.
func newServer(store Store, src source.Source, adapter analysis.Adapter, port int) *Server {
	registry := jobs.NewRegistry(store)
	cache := recommend.NewCache(store, adapter, 0)
	ctrl := workflow.NewController(store, registry, src, adapter, cache, workflow.NoopGenerator{}, workflow.Config{})

	s := &Server{
		store:    store,
		ctrl:     ctrl,
		registry: registry,
		cache:    cache,
		sweeper:  recommend.NewSweeper(store, 0, 0),
		validate: validator.New(),
	}

	// Setup router
	mux := http.NewServeMux()

	// Workflow endpoints
	mux.HandleFunc("POST /workflow/trigger", s.handleTriggerWorkflow)
	mux.HandleFunc("GET /workflow/runs", s.handleListRuns)
	mux.HandleFunc("GET /workflow/runs/{id}", s.handleGetRun)
	mux.HandleFunc("POST /workflow/runs/{id}/cancel", s.handleCancelRun)
	mux.HandleFunc("GET /workflow/runs/{id}/stream", s.handleStreamRun)

	// Auto job endpoints
	mux.HandleFunc("GET /users/{id}/auto-jobs", s.handleListAutoJobs)
	mux.HandleFunc("GET /auto-jobs/{id}", s.handleGetAutoJob)
	mux.HandleFunc("GET /auto-jobs/{id}/recommendation", s.handleGetRecommendation)
	mux.HandleFunc("POST /auto-jobs/{id}/recommendation", s.handleComputeRecommendation)
	mux.HandleFunc("DELETE /auto-jobs/{id}/recommendation", s.handleInvalidateRecommendation)

	// Workflow settings endpoints
	mux.HandleFunc("GET /users/{id}/workflow-settings", s.handleGetSettings)
	mux.HandleFunc("PUT /users/{id}/workflow-settings", s.handlePutSettings)

	mux.HandleFunc("GET /health", s.handleHealth)

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.withLogging(s.withCORS(mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // Long timeout for SSE streams
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening for requests
func (s *Server) Start() error {
	// Runs left in the running state belong to a dead process.
	if n, err := s.store.MarkInterruptedRuns(context.Background()); err != nil {
		log.Printf("Warning: failed to mark interrupted runs: %v", err)
	} else if n > 0 {
		log.Printf("Marked %d interrupted runs as failed", n)
	}

	// Clear stuck recommendation placeholders, then keep sweeping.
	sweepCtx, cancel := context.WithCancel(context.Background())
	s.stopSweep = cancel
	if n, err := s.sweeper.SweepOnce(sweepCtx); err != nil {
		log.Printf("Warning: startup recommendation sweep failed: %v", err)
	} else if n > 0 {
		log.Printf("Startup sweep cleared %d stuck recommendation entries", n)
	}
	go s.sweeper.Run(sweepCtx)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if s.stopSweep != nil {
		s.stopSweep()
	}
	if s.llm != nil {
		if err := s.llm.Close(); err != nil {
			log.Printf("Warning: failed to close LLM client: %v", err)
		}
	}
	if s.db != nil {
		s.db.Close()
	}
	log.Println("Server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// parseQueryInt parses an integer query parameter with a default and an
// optional maximum (0 means no maximum).
func parseQueryInt(r *http.Request, name string, def, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	if max > 0 && v > max {
		return max
	}
	return v
}
