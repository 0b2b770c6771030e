package server

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/job-tracker/internal/db"
)

// ListAutoJobsResponse represents the response for listing auto jobs
type ListAutoJobsResponse struct {
	Jobs   []db.AutoJobRecord `json:"jobs"`
	Count  int                `json:"count"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// handleListAutoJobs lists an owner's discovered jobs with optional status
// filter and pagination
func (s *Server) handleListAutoJobs(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	limit := parseQueryInt(r, "limit", 50, 200)
	offset := parseQueryInt(r, "offset", 0, 0)
	opts := db.ListAutoJobsOptions{
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	}

	records, err := s.registry.List(r.Context(), userID, opts)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, ListAutoJobsResponse{
		Jobs:   records,
		Count:  len(records),
		Limit:  limit,
		Offset: offset,
	})
}

// handleGetAutoJob retrieves a discovered job by its ID
func (s *Server) handleGetAutoJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	record, err := s.registry.Get(r.Context(), jobID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if record == nil {
		s.errorResponse(w, http.StatusNotFound, "Job not found")
		return
	}

	s.jsonResponse(w, http.StatusOK, record)
}

// handleGetRecommendation returns a job's cached recommendation. A stuck
// placeholder reads as absent.
func (s *Server) handleGetRecommendation(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	entry, err := s.cache.Get(r.Context(), jobID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if entry == nil {
		s.errorResponse(w, http.StatusNotFound, "No recommendation cached for this job")
		return
	}

	s.jsonResponse(w, http.StatusOK, entry)
}

// handleComputeRecommendation computes (or recomputes with ?refresh=true) a
// job's recommendation using the owner's profile summary.
func (s *Server) handleComputeRecommendation(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	record, err := s.registry.Get(r.Context(), jobID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if record == nil {
		s.errorResponse(w, http.StatusNotFound, "Job not found")
		return
	}

	profile := ""
	settings, err := s.store.GetWorkflowSettings(r.Context(), record.UserID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if settings != nil {
		profile = settings.ProfileSummary
	}

	refresh := r.URL.Query().Get("refresh") == "true"
	entry, err := s.cache.GetOrCompute(r.Context(), record, profile, refresh)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Failed to compute recommendation: "+err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, entry)
}

// handleInvalidateRecommendation clears a job's cached recommendation
func (s *Server) handleInvalidateRecommendation(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	if err := s.cache.Invalidate(r.Context(), jobID); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
