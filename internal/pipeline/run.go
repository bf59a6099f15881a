package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/time/rate"

	"github.com/usestring/shapescan/internal/filter"
	"github.com/usestring/shapescan/internal/metrics"
	"github.com/usestring/shapescan/pkg/shape"
	"github.com/usestring/shapescan/pkg/source"
)

// DefaultProgressEvery is how often progress is logged, in records.
const DefaultProgressEvery = 100000

var printer = message.NewPrinter(language.English)

// FlushFunc writes the current state of acc. It runs on the consumer
// goroutine, so the set does not change while it runs.
type FlushFunc func(ctx context.Context, acc *Accumulator) error

// Options configures Run.
type Options struct {
	// Filter, when set, is applied to every record before inference.
	Filter *filter.Filter
	// Rate limits reads from the source in records per second. Zero means
	// unlimited.
	Rate float64
	// ProgressEvery logs progress every N records. Zero uses the default;
	// negative disables progress logging.
	ProgressEvery int64
	// FlushEvery calls Flush every N records. Zero disables periodic
	// flushing; Run never calls Flush for the final state.
	FlushEvery int64
	Flush      FlushFunc
	// Buffer is the capacity of the channel between reader and folder.
	Buffer  int
	Metrics *metrics.Metrics
}

// Stats summarises a run.
type Stats struct {
	Read     int64            `json:"read"`
	Skipped  int64            `json:"skipped"`
	Dropped  int64            `json:"dropped"`
	Inserted int64            `json:"inserted"`
	Shapes   int              `json:"shapes"`
	Actions  map[string]int64 `json:"actions"`
	Duration time.Duration    `json:"duration_ns"`
}

type item struct {
	ordinal uint32
	doc     bson.Raw
}

// Run reads src to exhaustion on one goroutine and folds every record into
// acc on another. It stops at the first source or flush error, or when ctx
// is done; acc keeps whatever was folded before that.
func Run(ctx context.Context, src source.Source, acc *Accumulator, opts Options) (Stats, error) {
	start := time.Now()
	if opts.ProgressEvery == 0 {
		opts.ProgressEvery = DefaultProgressEvery
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}

	var read, skipped, dropped, inserted atomic.Int64
	items := make(chan item, opts.Buffer)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(items)

		var limiter *rate.Limiter
		if opts.Rate > 0 {
			limiter = rate.NewLimiter(rate.Limit(opts.Rate), int(math.Max(1, opts.Rate)))
		}

		for ordinal := uint32(0); ; ordinal++ {
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
			}

			doc, err := src.Next(gctx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil && !source.IsRecordError(err) {
				return fmt.Errorf("reading source: %w", err)
			}
			read.Add(1)
			opts.Metrics.Record()
			if err != nil {
				skipped.Add(1)
				opts.Metrics.Skip("decode")
				slog.Warn("skipping undecodable record", slog.String("error", err.Error()))
				continue
			}

			docs := []bson.Raw{doc}
			if opts.Filter != nil {
				docs, err = opts.Filter.Apply(doc)
				if err != nil {
					skipped.Add(1)
					opts.Metrics.Skip("filter")
					slog.Debug("filter failed on record",
						slog.Int64("record", int64(ordinal)+1),
						slog.String("error", err.Error()),
					)
					continue
				}
				if len(docs) == 0 {
					dropped.Add(1)
					continue
				}
			}

			for _, d := range docs {
				select {
				case items <- item{ordinal: ordinal, doc: d}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		}
	})

	g.Go(func() error {
		var processed int64
		for it := range items {
			schema, err := shape.Build(it.doc)
			if err != nil {
				skipped.Add(1)
				opts.Metrics.Skip("build")
				slog.Warn("skipping invalid document",
					slog.Int64("record", int64(it.ordinal)+1),
					slog.String("error", err.Error()),
				)
				continue
			}

			out := acc.Add(it.ordinal, schema)
			inserted.Add(1)
			processed++
			opts.Metrics.Outcome(out.Action.String(), acc.Len())

			if opts.ProgressEvery > 0 && processed%opts.ProgressEvery == 0 {
				slog.Info("inference progress",
					slog.String("processed", printer.Sprintf("%d", processed)),
					slog.Int("shapes", acc.Len()),
					slog.Int64("skipped", skipped.Load()),
				)
			}

			if opts.Flush != nil && opts.FlushEvery > 0 && processed%opts.FlushEvery == 0 {
				flushStart := time.Now()
				if err := opts.Flush(gctx, acc); err != nil {
					return fmt.Errorf("flushing results: %w", err)
				}
				opts.Metrics.Flushed(time.Since(flushStart).Seconds())
			}
		}
		return nil
	})

	err := g.Wait()
	stats := Stats{
		Read:     read.Load(),
		Skipped:  skipped.Load(),
		Dropped:  dropped.Load(),
		Inserted: inserted.Load(),
		Shapes:   acc.Len(),
		Actions:  acc.Actions(),
		Duration: time.Since(start),
	}
	if err != nil {
		return stats, err
	}
	return stats, ctx.Err()
}

// Summary formats the closing line of a run.
func (s Stats) Summary() string {
	return printer.Sprintf("Number of schemas for %d docs = %d", s.Read, s.Shapes)
}
