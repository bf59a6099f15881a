// Package runfetch loads stored runs through the run cache.
package runfetch

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/usestring/shapescan/internal/cache"
	"github.com/usestring/shapescan/internal/store"
)

// FetchRun retrieves a run by ID, checking the cache first.
// If not cached, it loads the run from the store and caches the result.
// rc may be nil.
func FetchRun(st *store.Store, rc *cache.RunCache, id uuid.UUID) (*store.Run, error) {
	if rc != nil {
		if cached, ok := rc.Get(id); ok {
			return cached, nil
		}
	}

	run, err := st.Get(id)
	if err != nil {
		return nil, err
	}

	if rc != nil {
		rc.Put(run)
	}
	return run, nil
}

// ParseID parses a run ID as given by a user.
func ParseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid run id %q: %w", s, err)
	}
	return id, nil
}
