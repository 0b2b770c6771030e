package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/job-tracker/internal/db"
)

// WorkflowSettingsRequest represents the request to save workflow settings
type WorkflowSettingsRequest struct {
	Keywords        []string          `json:"keywords" validate:"required,min=1,dive,min=1"`
	Location        string            `json:"location"`
	Filters         map[string]string `json:"filters"`
	MaxJobs         int               `json:"max_jobs" validate:"gte=0,lte=200"`
	AvoidDuplicates bool              `json:"avoid_duplicates"`
	ProfileSummary  string            `json:"profile_summary"`
}

// handleGetSettings retrieves an owner's workflow settings
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	settings, err := s.store.GetWorkflowSettings(r.Context(), userID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if settings == nil {
		s.errorResponse(w, http.StatusNotFound, "Workflow settings not configured")
		return
	}

	s.jsonResponse(w, http.StatusOK, settings)
}

// handlePutSettings creates or replaces an owner's workflow settings
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var req WorkflowSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	settings, err := s.store.UpsertWorkflowSettings(r.Context(), &db.WorkflowSettings{
		UserID:          userID,
		Keywords:        req.Keywords,
		Location:        req.Location,
		Filters:         req.Filters,
		MaxJobs:         req.MaxJobs,
		AvoidDuplicates: req.AvoidDuplicates,
		ProfileSummary:  req.ProfileSummary,
	})
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, settings)
}
