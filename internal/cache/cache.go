// Package cache implements the identifier cache: a persistent map from
// universal product code to its resolved catalog code, so repeat lookups
// never spend provider budget twice.
package cache

import (
	"context"
	"fmt"

	"github.com/profitscan/profitscan/internal/domain"
	"github.com/profitscan/profitscan/internal/logger"
)

// Store is the persistence behind the cache. The production implementation
// is database.ResolutionRepository; tests use MemoryStore.
type Store interface {
	// FetchAndTouch returns stored records for the given codes, atomically
	// incrementing each hit's lookup counter.
	FetchAndTouch(ctx context.Context, codes []string) (map[string]*domain.ResolutionRecord, error)
	// Upsert stores a resolution outcome, last-write-wins, leaving the
	// lookup counter untouched.
	Upsert(ctx context.Context, rec *domain.ResolutionRecord) error
}

// IdentifierCache resolves universal product codes against the persistent
// store. It never performs external lookups itself; on a miss the caller
// resolves through the pricing provider and calls Store with the outcome.
type IdentifierCache struct {
	store  Store
	logger logger.Logger
}

// New creates an identifier cache over the given store.
func New(store Store, log logger.Logger) *IdentifierCache {
	return &IdentifierCache{
		store:  store,
		logger: log,
	}
}

// ResolveBatch returns the cached records for the given codes. Codes absent
// from the result are cache misses the caller must resolve externally.
// Every hit's lookup count is incremented as a side effect.
func (c *IdentifierCache) ResolveBatch(ctx context.Context, codes []string) (map[string]*domain.ResolutionRecord, error) {
	records, err := c.store.FetchAndTouch(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("resolve batch: %w", err)
	}

	c.logger.Debug("Identifier cache lookup",
		logger.Int("requested", len(codes)),
		logger.Int("hits", len(records)),
	)

	return records, nil
}

// Store persists a resolution outcome for a code. Entries are never
// deleted; later stores simply overwrite the resolution fields.
func (c *IdentifierCache) Store(ctx context.Context, rec *domain.ResolutionRecord) error {
	if err := c.store.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("store resolution: %w", err)
	}
	return nil
}
