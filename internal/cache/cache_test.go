package cache

import (
	"context"
	"sync"
	"testing"

	"github.com/profitscan/profitscan/internal/domain"
	"github.com/profitscan/profitscan/internal/logger"
)

func TestIdentifierCache_MissThenHit(t *testing.T) {
	c := New(NewMemoryStore(), logger.NewNop())
	ctx := context.Background()

	records, err := c.ResolveBatch(ctx, []string{"012345678905"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected miss, got %d records", len(records))
	}

	err = c.Store(ctx, &domain.ResolutionRecord{
		InputCode:    "012345678905",
		ResolvedCode: "CAT-100",
		Status:       domain.ResolutionFound,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err = c.ResolveBatch(ctx, []string{"012345678905"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, ok := records["012345678905"]
	if !ok {
		t.Fatal("expected cache hit after store")
	}
	if rec.ResolvedCode != "CAT-100" || rec.Status != domain.ResolutionFound {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestIdentifierCache_RepeatLookupsOnlyBumpCounter(t *testing.T) {
	c := New(NewMemoryStore(), logger.NewNop())
	ctx := context.Background()

	if err := c.Store(ctx, &domain.ResolutionRecord{
		InputCode: "042100005264",
		Status:    domain.ResolutionNotFound,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, err := c.ResolveBatch(ctx, []string{"042100005264"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := c.ResolveBatch(ctx, []string{"042100005264"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, b := first["042100005264"], second["042100005264"]
	if b.LookupCount != a.LookupCount+1 {
		t.Errorf("expected lookup count to increment by one: %d -> %d", a.LookupCount, b.LookupCount)
	}

	// Everything but the counter is byte-identical between lookups.
	a.LookupCount, b.LookupCount = 0, 0
	if a.InputCode != b.InputCode || a.ResolvedCode != b.ResolvedCode ||
		a.Status != b.Status || !a.ResolvedAt.Equal(b.ResolvedAt) {
		t.Errorf("records differ beyond lookup count: %+v vs %+v", a, b)
	}
}

func TestIdentifierCache_ConcurrentLookupsCountMonotonically(t *testing.T) {
	c := New(NewMemoryStore(), logger.NewNop())
	ctx := context.Background()

	if err := c.Store(ctx, &domain.ResolutionRecord{
		InputCode:    "036000291452",
		ResolvedCode: "CAT-7",
		Status:       domain.ResolutionFound,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	const lookups = 50
	var wg sync.WaitGroup
	for range lookups {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.ResolveBatch(ctx, []string{"036000291452"}); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	records, err := c.ResolveBatch(ctx, []string{"036000291452"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Initial store seeds the counter at 1; 50 concurrent lookups plus
	// this one land at 52 with no lost increments.
	if got := records["036000291452"].LookupCount; got != lookups+2 {
		t.Errorf("expected lookup count %d, got %d", lookups+2, got)
	}
}

func TestIdentifierCache_MultipleCandidates(t *testing.T) {
	c := New(NewMemoryStore(), logger.NewNop())
	ctx := context.Background()

	if err := c.Store(ctx, &domain.ResolutionRecord{
		InputCode:  "079400066603",
		Status:     domain.ResolutionMultiple,
		Candidates: []string{"CAT-1", "CAT-2", "CAT-3"},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := c.ResolveBatch(ctx, []string{"079400066603"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := records["079400066603"]
	if rec.Status != domain.ResolutionMultiple {
		t.Errorf("expected multiple status, got %s", rec.Status)
	}
	if len(rec.Candidates) != 3 {
		t.Errorf("expected 3 candidates, got %d", len(rec.Candidates))
	}
	if rec.ResolvedCode != "" {
		t.Errorf("resolved code must be empty unless status is found, got %q", rec.ResolvedCode)
	}
}
