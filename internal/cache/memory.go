package cache

import (
	"context"
	"sync"
	"time"

	"github.com/profitscan/profitscan/internal/domain"
)

// MemoryStore is an in-process Store with the same atomicity contract as
// the Postgres repository. Used by tests and single-process setups.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*domain.ResolutionRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*domain.ResolutionRecord),
	}
}

// FetchAndTouch returns copies of stored records, incrementing each hit's
// lookup counter under the lock.
func (s *MemoryStore) FetchAndTouch(_ context.Context, codes []string) (map[string]*domain.ResolutionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]*domain.ResolutionRecord)
	for _, code := range codes {
		rec, ok := s.records[code]
		if !ok {
			continue
		}
		rec.LookupCount++

		cp := *rec
		cp.Candidates = append([]string(nil), rec.Candidates...)
		out[code] = &cp
	}

	return out, nil
}

// Upsert stores a copy of the record, preserving any existing lookup count.
func (s *MemoryStore) Upsert(_ context.Context, rec *domain.ResolutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	cp.Candidates = append([]string(nil), rec.Candidates...)
	if cp.ResolvedAt.IsZero() {
		cp.ResolvedAt = time.Now().UTC()
	}

	if existing, ok := s.records[rec.InputCode]; ok {
		cp.LookupCount = existing.LookupCount
	} else if cp.LookupCount == 0 {
		cp.LookupCount = 1
	}

	s.records[rec.InputCode] = &cp
	return nil
}
