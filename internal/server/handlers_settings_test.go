package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-tracker/internal/db"
)

// TestHandleGetSettings_NotConfigured tests reading settings that were never saved
func TestHandleGetSettings_NotConfigured(t *testing.T) {
	s, _ := newTestServer()
	userID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/users/"+userID.String()+"/workflow-settings", nil)
	req.SetPathValue("id", userID.String())
	w := httptest.NewRecorder()

	s.handleGetSettings(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestHandlePutSettings_EmptyKeywords tests that at least one keyword is required
func TestHandlePutSettings_EmptyKeywords(t *testing.T) {
	s, _ := newTestServer()
	userID := uuid.New()

	req := httptest.NewRequest(http.MethodPut, "/users/"+userID.String()+"/workflow-settings",
		strings.NewReader(`{"keywords": []}`))
	req.SetPathValue("id", userID.String())
	w := httptest.NewRecorder()

	s.handlePutSettings(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Contains(t, resp["error"], "Validation failed")
}

// TestHandlePutSettings_Roundtrip tests saving and reading settings back
func TestHandlePutSettings_Roundtrip(t *testing.T) {
	s, _ := newTestServer()
	userID := uuid.New()

	body := `{
		"keywords": ["golang", "backend"],
		"location": "Remote",
		"filters": {"seniority": "senior"},
		"max_jobs": 10,
		"avoid_duplicates": true,
		"profile_summary": "Go developer, 8 years"
	}`
	req := httptest.NewRequest(http.MethodPut, "/users/"+userID.String()+"/workflow-settings",
		strings.NewReader(body))
	req.SetPathValue("id", userID.String())
	w := httptest.NewRecorder()

	s.handlePutSettings(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var saved db.WorkflowSettings
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	assert.Equal(t, userID, saved.UserID)
	assert.Equal(t, []string{"golang", "backend"}, saved.Keywords)
	assert.Equal(t, 10, saved.MaxJobs)

	req = httptest.NewRequest(http.MethodGet, "/users/"+userID.String()+"/workflow-settings", nil)
	req.SetPathValue("id", userID.String())
	w = httptest.NewRecorder()

	s.handleGetSettings(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var got db.WorkflowSettings
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, saved.Keywords, got.Keywords)
	assert.Equal(t, "Remote", got.Location)
	assert.True(t, got.AvoidDuplicates)
}

// TestHandlePutSettings_DefaultMaxJobs tests that a zero max_jobs gets the default
func TestHandlePutSettings_DefaultMaxJobs(t *testing.T) {
	s, _ := newTestServer()
	userID := uuid.New()

	req := httptest.NewRequest(http.MethodPut, "/users/"+userID.String()+"/workflow-settings",
		strings.NewReader(`{"keywords": ["golang"]}`))
	req.SetPathValue("id", userID.String())
	w := httptest.NewRecorder()

	s.handlePutSettings(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var saved db.WorkflowSettings
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	assert.Equal(t, db.DefaultMaxJobs, saved.MaxJobs)
}

// TestHandlePutSettings_InvalidUserID tests saving with a bad user ID
func TestHandlePutSettings_InvalidUserID(t *testing.T) {
	s, _ := newTestServer()

	req := httptest.NewRequest(http.MethodPut, "/users/not-a-uuid/workflow-settings",
		strings.NewReader(`{"keywords": ["golang"]}`))
	req.SetPathValue("id", "not-a-uuid")
	w := httptest.NewRecorder()

	s.handlePutSettings(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
