package db

import (
	"testing"
	"time"
)

func floatPtr(f float64) *float64 { return &f }

func TestRecommendationEntryIsPlaceholder(t *testing.T) {
	tests := []struct {
		name        string
		entry       RecommendationEntry
		placeholder bool
	}{
		{"in-flight placeholder", RecommendationEntry{Reason: PlaceholderReason}, true},
		{"scored entry", RecommendationEntry{Score: floatPtr(0.8), Reason: "strong match"}, false},
		{"error entry", RecommendationEntry{Error: "adapter timeout"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.entry.IsPlaceholder() != tt.placeholder {
				t.Errorf("IsPlaceholder() = %v, expected %v", tt.entry.IsPlaceholder(), tt.placeholder)
			}
		})
	}
}

func TestRecommendationEntryIsStuck(t *testing.T) {
	now := time.Now()
	window := 2 * time.Minute

	tests := []struct {
		name  string
		entry RecommendationEntry
		stuck bool
	}{
		{"fresh placeholder", RecommendationEntry{Reason: PlaceholderReason, CachedAt: now.Add(-30 * time.Second)}, false},
		{"stale placeholder", RecommendationEntry{Reason: PlaceholderReason, CachedAt: now.Add(-10 * time.Minute)}, true},
		{"stale scored entry", RecommendationEntry{Score: floatPtr(0.5), CachedAt: now.Add(-10 * time.Minute)}, false},
		{"stale error entry", RecommendationEntry{Error: "boom", CachedAt: now.Add(-10 * time.Minute)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.entry.IsStuck(now, window) != tt.stuck {
				t.Errorf("IsStuck() = %v, expected %v", tt.entry.IsStuck(now, window), tt.stuck)
			}
		})
	}
}
