package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/jonathan/job-tracker/internal/db"
)

const boardHTML = `<html><body>
<div class="results">
  <div class="job-card" data-job-id="eng-101">
    <h2 class="job-title">Senior Go Engineer</h2>
    <span class="company">Acme Corp</span>
    <p class="description">Build distributed systems.</p>
    <a href="/jobs/eng-101">View</a>
  </div>
  <div class="job-card" data-job-id="eng-102">
    <h2 class="job-title">Platform Engineer</h2>
    <span class="company">Globex</span>
    <a href="/jobs/eng-102">View</a>
  </div>
</div>
</body></html>`

func testSettings() *db.WorkflowSettings {
	return &db.WorkflowSettings{
		UserID:   uuid.New(),
		Keywords: []string{"go", "backend"},
		Location: "Remote",
		MaxJobs:  10,
	}
}

func TestBoardSourceSearch(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(boardHTML))
	}))
	defer server.Close()

	src := NewBoardSource(BoardConfig{BaseURL: server.URL + "/search"})
	postings, err := src.Search(context.Background(), testSettings())
	if err != nil {
		t.Fatalf("Search() returned error: %v", err)
	}

	if len(postings) != 2 {
		t.Fatalf("expected 2 postings, got %d", len(postings))
	}

	first := postings[0]
	if first.ExternalID != "eng-101" {
		t.Errorf("expected external ID eng-101, got %s", first.ExternalID)
	}
	if first.Title != "Senior Go Engineer" {
		t.Errorf("expected title, got %q", first.Title)
	}
	if first.Company != "Acme Corp" {
		t.Errorf("expected company, got %q", first.Company)
	}
	if first.URL != server.URL+"/jobs/eng-101" {
		t.Errorf("expected absolute URL, got %q", first.URL)
	}

	if gotQuery == "" {
		t.Error("expected search query parameters to be sent")
	}
}

func TestBoardSourceSearch_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	src := NewBoardSource(BoardConfig{BaseURL: server.URL})
	_, err := src.Search(context.Background(), testSettings())
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestParseListings_NoCards(t *testing.T) {
	postings, err := parseListings("<html><body><p>Nothing here</p></body></html>", "https://example.com")
	if err != nil {
		t.Fatalf("parseListings() returned error: %v", err)
	}
	if len(postings) != 0 {
		t.Errorf("expected no postings, got %d", len(postings))
	}
}

func TestExternalIDFromURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{"path segment", "https://board.example.com/jobs/abc-123", "abc-123"},
		{"trailing slash", "https://board.example.com/jobs/abc-123/", "abc-123"},
		{"empty path", "https://board.example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := externalIDFromURL(tt.url); got != tt.expected {
				t.Errorf("externalIDFromURL(%q) = %q, expected %q", tt.url, got, tt.expected)
			}
		})
	}
}
