package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonathan/job-tracker/internal/db"
	"github.com/jonathan/job-tracker/internal/llm"
)

// Adapter is the AI adapter consumed by the workflow engine.
type Adapter interface {
	// Extract pulls structured fields out of raw posting text.
	Extract(ctx context.Context, text string) (map[string]any, error)
	// Recommend scores a posting against the candidate profile.
	Recommend(ctx context.Context, record *db.AutoJobRecord, profile string) (*Recommendation, error)
}

// GeminiAdapter implements Adapter over the shared llm.Client.
type GeminiAdapter struct {
	client      llm.Client
	callTimeout time.Duration
}

// NewGeminiAdapter creates an adapter with the given per-call timeout.
// A zero timeout uses DefaultCallTimeout.
func NewGeminiAdapter(client llm.Client, callTimeout time.Duration) *GeminiAdapter {
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	return &GeminiAdapter{client: client, callTimeout: callTimeout}
}

// Extract pulls requirements, responsibilities and admin fields out of
// posting text. The response is schema-validated before it is returned.
func (a *GeminiAdapter) Extract(ctx context.Context, text string) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	prompt := BuildExtractionPrompt(JobFieldsSchema(), text)

	raw, err := a.client.GenerateJSON(ctx, prompt, llm.TierLite)
	if err != nil {
		return nil, &AdapterError{Op: "extract", Message: "generation failed", Cause: err}
	}

	if err := validateJSON(extractedFieldsSchema, raw); err != nil {
		return nil, &AdapterError{Op: "extract", Message: "malformed response", Cause: err}
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, &AdapterError{Op: "extract", Message: "malformed response", Cause: err}
	}

	return fields, nil
}

// Recommend scores the posting against the candidate profile and returns the
// "should I apply" verdict.
func (a *GeminiAdapter) Recommend(ctx context.Context, record *db.AutoJobRecord, profile string) (*Recommendation, error) {
	ctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	prompt := buildRecommendPrompt(record, profile)

	raw, err := a.client.GenerateJSON(ctx, prompt, llm.TierStandard)
	if err != nil {
		return nil, &AdapterError{Op: "recommend", Message: "generation failed", Cause: err}
	}

	if err := validateJSON(recommendationSchema, raw); err != nil {
		return nil, &AdapterError{Op: "recommend", Message: "malformed response", Cause: err}
	}

	var rec Recommendation
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, &AdapterError{Op: "recommend", Message: "malformed response", Cause: err}
	}

	return &rec, nil
}

// buildRecommendPrompt assembles the match-scoring prompt from the posting
// and the candidate profile.
func buildRecommendPrompt(record *db.AutoJobRecord, profile string) string {
	var extracted string
	if record.ExtractedData != nil {
		if b, err := json.Marshal(record.ExtractedData); err == nil {
			extracted = string(b)
		}
	}

	return fmt.Sprintf(`You are a career advisor. Score how well the candidate matches the job posting.

Return ONLY valid JSON matching this exact structure:
{
  "score": number,        // match score between 0.0 and 1.0
  "should_apply": bool,   // whether the candidate should apply
  "reason": "string"      // one or two sentences explaining the verdict
}

Job posting:
Title: %s
Company: %s
Description:
"""
%s
"""
Extracted fields: %s

Candidate profile:
"""
%s
"""
`, record.JobTitle, record.CompanyName, record.Description, extracted, profile)
}
