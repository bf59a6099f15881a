// Package runner executes complete inference runs: it opens the source,
// folds it through the pipeline and records the run in the store.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/usestring/shapescan/internal/cache"
	"github.com/usestring/shapescan/internal/filter"
	"github.com/usestring/shapescan/internal/metrics"
	"github.com/usestring/shapescan/internal/pipeline"
	"github.com/usestring/shapescan/internal/store"
	"github.com/usestring/shapescan/pkg/source"
)

// OpenFunc opens a record source.
type OpenFunc func(ctx context.Context, cfg source.Config) (source.Source, error)

// Runner runs inference and persists the results. Store and Cache are
// optional.
type Runner struct {
	Store   *store.Store
	Cache   *cache.RunCache
	Metrics *metrics.Metrics
	Open    OpenFunc
}

// Request describes one run.
type Request struct {
	Source source.Config
	// Filter is a jq expression applied to every record.
	Filter string
	// Options carries progress, flush and rate settings. Filter and Metrics
	// are set by the runner.
	Options pipeline.Options
}

// Infer folds the source of req into acc. The returned run is stored even
// when the pipeline fails part way; it then carries the error and whatever
// was accumulated before it. Errors that prevent the run from starting
// return a nil run.
func (r *Runner) Infer(ctx context.Context, req Request, acc *pipeline.Accumulator) (*store.Run, error) {
	var f *filter.Filter
	if req.Filter != "" {
		var err error
		if f, err = filter.Compile(req.Filter); err != nil {
			return nil, err
		}
	}

	open := r.Open
	if open == nil {
		open = source.Open
	}
	src, err := open(ctx, req.Source)
	if err != nil {
		return nil, fmt.Errorf("opening source: %w", err)
	}
	defer src.Close()

	run, err := store.NewRun(req.Source.Describe())
	if err != nil {
		return nil, err
	}
	run.Filter = req.Filter

	done := r.Metrics.RunStarted()
	defer done()

	opts := req.Options
	opts.Filter = f
	opts.Metrics = r.Metrics

	slog.Info("inference started",
		slog.String("run_id", run.ID.String()),
		slog.String("source", run.Source),
	)
	stats, runErr := pipeline.Run(ctx, src, acc, opts)

	run.FinishedAt = time.Now().UTC()
	run.Stats = stats
	run.Shapes = acc.Set()
	if runErr != nil {
		run.Error = runErr.Error()
	}

	r.save(run)

	slog.Info("inference finished",
		slog.String("run_id", run.ID.String()),
		slog.Int64("read", stats.Read),
		slog.Int("shapes", stats.Shapes),
		slog.Duration("duration", stats.Duration),
	)
	return run, runErr
}

func (r *Runner) save(run *store.Run) {
	if r.Store == nil {
		return
	}
	if err := r.Store.Put(run); err != nil {
		slog.Warn("failed to store run",
			slog.String("run_id", run.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	if r.Cache != nil {
		r.Cache.Put(run)
	}
}
