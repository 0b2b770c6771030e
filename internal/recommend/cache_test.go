package recommend

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/job-tracker/internal/analysis"
	"github.com/jonathan/job-tracker/internal/db"
)

// memStore is an in-memory Store for tests.
type memStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*db.RecommendationEntry

	getErr      error
	finalizeErr error
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[uuid.UUID]*db.RecommendationEntry)}
}

func (s *memStore) GetRecommendation(_ context.Context, id uuid.UUID) (*db.RecommendationEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	entry, ok := s.entries[id]
	if !ok {
		return nil, nil
	}
	clone := *entry
	return &clone, nil
}

func (s *memStore) PutRecommendationPlaceholder(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = &db.RecommendationEntry{
		AutoJobID: id,
		Reason:    db.PlaceholderReason,
		CachedAt:  time.Now(),
	}
	return nil
}

func (s *memStore) FinalizeRecommendation(_ context.Context, entry *db.RecommendationEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalizeErr != nil {
		return s.finalizeErr
	}
	clone := *entry
	s.entries[entry.AutoJobID] = &clone
	return nil
}

func (s *memStore) DeleteRecommendation(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

func (s *memStore) DeleteStuckRecommendations(_ context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cleared := 0
	now := time.Now()
	for id, entry := range s.entries {
		if entry.IsStuck(now, olderThan) {
			delete(s.entries, id)
			cleared++
		}
	}
	return cleared, nil
}

// fakeAdapter counts Recommend calls and returns a canned result.
type fakeAdapter struct {
	mu     sync.Mutex
	calls  int
	result *analysis.Recommendation
	err    error
	block  chan struct{}
	panic  bool
}

func (a *fakeAdapter) Extract(_ context.Context, _ string) (map[string]any, error) {
	return nil, errors.New("not implemented")
}

func (a *fakeAdapter) Recommend(_ context.Context, _ *db.AutoJobRecord, _ string) (*analysis.Recommendation, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	if a.block != nil {
		<-a.block
	}
	if a.panic {
		panic("adapter panicked")
	}
	return a.result, a.err
}

func (a *fakeAdapter) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func record() *db.AutoJobRecord {
	return &db.AutoJobRecord{ID: uuid.New(), JobTitle: "Go Engineer"}
}

func TestGetOrCompute_ComputesAndCaches(t *testing.T) {
	store := newMemStore()
	adapter := &fakeAdapter{result: &analysis.Recommendation{Score: 0.8, ShouldApply: true, Reason: "good fit"}}
	cache := NewCache(store, adapter, 0)
	rec := record()

	entry, err := cache.GetOrCompute(context.Background(), rec, "profile", false)
	if err != nil {
		t.Fatalf("GetOrCompute() returned error: %v", err)
	}
	if entry.Score == nil || *entry.Score != 0.8 {
		t.Errorf("expected score 0.8, got %v", entry.Score)
	}
	if !entry.ShouldApply {
		t.Error("expected should_apply true")
	}

	// Second read is served from the store.
	if _, err := cache.GetOrCompute(context.Background(), rec, "profile", false); err != nil {
		t.Fatalf("second GetOrCompute() returned error: %v", err)
	}
	if adapter.callCount() != 1 {
		t.Errorf("expected 1 adapter call, got %d", adapter.callCount())
	}
}

func TestGetOrCompute_AdapterErrorIsData(t *testing.T) {
	store := newMemStore()
	adapter := &fakeAdapter{err: errors.New("rate limited")}
	cache := NewCache(store, adapter, 0)
	rec := record()

	entry, err := cache.GetOrCompute(context.Background(), rec, "profile", false)
	if err != nil {
		t.Fatalf("expected nil error for adapter failure, got %v", err)
	}
	if entry.Score != nil {
		t.Error("expected nil score on failed entry")
	}
	if entry.Error == "" {
		t.Error("expected error message on failed entry")
	}

	// The error entry is cached; no retry without forceRefresh.
	if _, err := cache.GetOrCompute(context.Background(), rec, "profile", false); err != nil {
		t.Fatalf("GetOrCompute() returned error: %v", err)
	}
	if adapter.callCount() != 1 {
		t.Errorf("expected 1 adapter call, got %d", adapter.callCount())
	}
}

func TestGetOrCompute_ForceRefresh(t *testing.T) {
	store := newMemStore()
	adapter := &fakeAdapter{result: &analysis.Recommendation{Score: 0.4, ShouldApply: false, Reason: "weak match"}}
	cache := NewCache(store, adapter, 0)
	rec := record()

	if _, err := cache.GetOrCompute(context.Background(), rec, "profile", false); err != nil {
		t.Fatalf("GetOrCompute() returned error: %v", err)
	}
	if _, err := cache.GetOrCompute(context.Background(), rec, "profile", true); err != nil {
		t.Fatalf("forced GetOrCompute() returned error: %v", err)
	}
	if adapter.callCount() != 2 {
		t.Errorf("expected 2 adapter calls, got %d", adapter.callCount())
	}
}

func TestGetOrCompute_ConcurrentCallsCollapse(t *testing.T) {
	store := newMemStore()
	adapter := &fakeAdapter{
		result: &analysis.Recommendation{Score: 0.9, ShouldApply: true, Reason: "strong"},
		block:  make(chan struct{}),
	}
	cache := NewCache(store, adapter, 0)
	rec := record()

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*db.RecommendationEntry, callers)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			entry, err := cache.GetOrCompute(context.Background(), rec, "profile", false)
			if err != nil {
				t.Errorf("GetOrCompute() returned error: %v", err)
				return
			}
			results[i] = entry
		}(i)
	}

	// Let the callers pile up before releasing the adapter.
	time.Sleep(50 * time.Millisecond)
	close(adapter.block)
	wg.Wait()

	if adapter.callCount() != 1 {
		t.Errorf("expected 1 adapter call for %d concurrent callers, got %d", callers, adapter.callCount())
	}
	for i, entry := range results {
		if entry == nil || entry.Score == nil || *entry.Score != 0.9 {
			t.Errorf("caller %d got unexpected entry %+v", i, entry)
		}
	}
}

func TestCompute_PanicFinalizesErrorEntry(t *testing.T) {
	store := newMemStore()
	adapter := &fakeAdapter{panic: true}
	cache := NewCache(store, adapter, 0)
	rec := record()

	func() {
		defer func() { _ = recover() }()
		_, _ = cache.GetOrCompute(context.Background(), rec, "profile", false)
	}()

	entry, err := store.GetRecommendation(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetRecommendation() returned error: %v", err)
	}
	if entry == nil {
		t.Fatal("expected an entry after panic")
	}
	if entry.IsPlaceholder() {
		t.Error("placeholder survived a panicking computation")
	}
	if entry.Error == "" {
		t.Error("expected error entry after panic")
	}
}

func TestGet_HidesStuckPlaceholder(t *testing.T) {
	store := newMemStore()
	cache := NewCache(store, &fakeAdapter{}, time.Minute)
	id := uuid.New()

	if err := store.PutRecommendationPlaceholder(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	store.mu.Lock()
	store.entries[id].CachedAt = time.Now().Add(-2 * time.Minute)
	store.mu.Unlock()

	entry, err := cache.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}
	if entry != nil {
		t.Errorf("expected stuck placeholder to read as absent, got %+v", entry)
	}
}

func TestSweeper_ClearsOnlyStuckPlaceholders(t *testing.T) {
	store := newMemStore()
	sweeper := NewSweeper(store, time.Minute, 0)
	ctx := context.Background()

	stuck := uuid.New()
	fresh := uuid.New()
	final := uuid.New()

	_ = store.PutRecommendationPlaceholder(ctx, stuck)
	store.mu.Lock()
	store.entries[stuck].CachedAt = time.Now().Add(-5 * time.Minute)
	store.mu.Unlock()

	_ = store.PutRecommendationPlaceholder(ctx, fresh)

	score := 0.7
	_ = store.FinalizeRecommendation(ctx, &db.RecommendationEntry{
		AutoJobID: final, Score: &score, Reason: "done", CachedAt: time.Now().Add(-time.Hour),
	})

	cleared, err := sweeper.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("SweepOnce() returned error: %v", err)
	}
	if cleared != 1 {
		t.Errorf("expected 1 cleared entry, got %d", cleared)
	}
	if entry, _ := store.GetRecommendation(ctx, stuck); entry != nil {
		t.Error("stuck placeholder was not cleared")
	}
	if entry, _ := store.GetRecommendation(ctx, fresh); entry == nil {
		t.Error("fresh placeholder must survive the sweep")
	}
	if entry, _ := store.GetRecommendation(ctx, final); entry == nil {
		t.Error("finalized entry must survive the sweep")
	}
}
