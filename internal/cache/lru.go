// Package cache keeps recently used runs in memory.
package cache

import (
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/usestring/shapescan/internal/store"
)

// DefaultMaxItems is the run cache size used when none is configured.
const DefaultMaxItems = 64

// RunCache provides thread-safe LRU caching for decoded runs. Cached runs
// are shared; callers must not modify them.
type RunCache struct {
	cache *lru.Cache[uuid.UUID, *store.Run]
}

// NewRunCache creates a new LRU cache with the specified maximum number of items.
func NewRunCache(maxItems int) (*RunCache, error) {
	c, err := lru.New[uuid.UUID, *store.Run](maxItems)
	if err != nil {
		return nil, err
	}
	return &RunCache{cache: c}, nil
}

// Get retrieves a run from the cache by its ID.
func (c *RunCache) Get(id uuid.UUID) (*store.Run, bool) {
	return c.cache.Get(id)
}

// Put adds or updates a run in the cache.
func (c *RunCache) Put(run *store.Run) {
	c.cache.Add(run.ID, run)
}

// Len returns the current number of items in the cache.
func (c *RunCache) Len() int {
	return c.cache.Len()
}
