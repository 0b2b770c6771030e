package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/job-tracker/internal/workflow"
)

// TriggerWorkflowRequest represents the request to start a workflow run
type TriggerWorkflowRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

// handleTriggerWorkflow starts a background run for an owner. The run
// executes asynchronously; the response carries the initial snapshot.
func (s *Server) handleTriggerWorkflow(w http.ResponseWriter, r *http.Request) {
	var req TriggerWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "user_id must be a valid UUID")
		return
	}
	userID, _ := uuid.Parse(req.UserID)

	run, err := s.ctrl.Trigger(r.Context(), userID)
	if err != nil {
		if errors.Is(err, workflow.ErrAlreadyRunning) {
			s.errorResponse(w, http.StatusConflict, "A workflow run is already active for this user")
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, "Failed to start workflow: "+err.Error())
		return
	}

	s.jsonResponse(w, http.StatusAccepted, run)
}

// handleGetRun returns a run's current snapshot
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid run ID")
		return
	}

	run, err := s.ctrl.Snapshot(r.Context(), runID)
	if err != nil {
		if errors.Is(err, workflow.ErrRunNotFound) {
			s.errorResponse(w, http.StatusNotFound, "Workflow run not found")
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, run)
}

// handleCancelRun requests cooperative cancellation of a run. The response is
// the snapshot at the time of the request; the run finalizes at its next
// checkpoint.
func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid run ID")
		return
	}

	run, err := s.ctrl.Cancel(r.Context(), runID)
	if err != nil {
		if errors.Is(err, workflow.ErrRunNotFound) {
			s.errorResponse(w, http.StatusNotFound, "Workflow run not found")
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, run)
}

// handleListRuns lists an owner's recent runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	userIDStr := r.URL.Query().Get("user_id")
	if userIDStr == "" {
		s.errorResponse(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid user_id")
		return
	}
	limit := parseQueryInt(r, "limit", 20, 100)

	runs, err := s.ctrl.ListRuns(r.Context(), userID, limit)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// handleStreamRun streams run progress as Server-Sent Events until the run
// reaches a terminal state or the client disconnects.
func (s *Server) handleStreamRun(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid run ID")
		return
	}

	run, err := s.ctrl.Snapshot(r.Context(), runID)
	if err != nil {
		if errors.Is(err, workflow.ErrRunNotFound) {
			s.errorResponse(w, http.StatusNotFound, "Workflow run not found")
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := sse.WriteProgress(run); err != nil {
		return
	}
	if run.IsTerminal() {
		sse.WriteComplete(run.ID.String(), run.Status)
		return
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			run, err := s.ctrl.Snapshot(r.Context(), runID)
			if err != nil {
				sse.WriteError(err.Error())
				return
			}
			if err := sse.WriteProgress(run); err != nil {
				return
			}
			if run.IsTerminal() {
				sse.WriteComplete(run.ID.String(), run.Status)
				return
			}
		}
	}
}
