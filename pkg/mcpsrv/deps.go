package mcpsrv

import (
	"github.com/usestring/shapescan/internal/cache"
	"github.com/usestring/shapescan/internal/config"
	"github.com/usestring/shapescan/internal/metrics"
	"github.com/usestring/shapescan/internal/runner"
	"github.com/usestring/shapescan/internal/store"
)

// Deps contains all dependencies available to custom tools.
// This gives custom tools access to the same infrastructure as builtin tools.
type Deps struct {
	Config  *config.Config
	Runner  *runner.Runner
	Store   *store.Store
	Cache   *cache.RunCache
	Metrics *metrics.Metrics
}
