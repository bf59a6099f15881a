package tools

import (
	"github.com/google/uuid"

	"github.com/usestring/shapescan/internal/cache"
	"github.com/usestring/shapescan/internal/config"
	"github.com/usestring/shapescan/internal/runfetch"
	"github.com/usestring/shapescan/internal/runner"
	"github.com/usestring/shapescan/internal/store"
)

// Deps contains all dependencies needed by tool handlers.
type Deps struct {
	Config *config.Config
	Runner *runner.Runner
	Store  *store.Store
	Cache  *cache.RunCache
}

// FetchRun retrieves a run by ID, checking the cache first.
func (d *Deps) FetchRun(id uuid.UUID) (*store.Run, error) {
	return runfetch.FetchRun(d.Store, d.Cache, id)
}
