package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/usestring/shapescan/internal/cache"
	"github.com/usestring/shapescan/internal/config"
	"github.com/usestring/shapescan/internal/httpapi"
	"github.com/usestring/shapescan/internal/logging"
	"github.com/usestring/shapescan/internal/metrics"
	"github.com/usestring/shapescan/internal/pipeline"
	"github.com/usestring/shapescan/internal/runner"
	"github.com/usestring/shapescan/internal/sink"
	"github.com/usestring/shapescan/internal/store"
	"github.com/usestring/shapescan/pkg/openapi"
	"github.com/usestring/shapescan/pkg/shape"
)

func newInferCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Infer the shapes of a collection or file and write them out",
		Example: `  shapescan infer --uri mongodb://localhost:27017 --db app --collection users --output users.json
  shapescan infer --file dump.ndjson --filter '.payload' --format jsonschema
  mongoexport -d app -c users | shapescan infer --file - --format yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfer(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.URI, "uri", cfg.URI, "MongoDB connection string, or a file path")
	f.StringVar(&cfg.Database, "db", cfg.Database, "database name")
	f.StringVar(&cfg.Collection, "collection", cfg.Collection, "collection name")
	f.StringVar(&cfg.File, "file", cfg.File, `document file to read instead of a database ("-" for stdin)`)
	f.StringVar(&cfg.InputFormat, "input-format", cfg.InputFormat, "file format: ndjson, json, yaml, bson (default: detect)")
	f.Int64Var(&cfg.Limit, "limit", cfg.Limit, "maximum records to read (0 reads all)")
	f.StringVar(&cfg.Filter, "filter", cfg.Filter, "jq expression applied to every record before inference")
	f.StringVar(&cfg.Format, "format", cfg.Format, "output format: json, yaml, jsonschema, openapi")
	f.StringVarP(&cfg.Output, "output", "o", cfg.Output, "output file (default: stdout)")
	f.Int64Var(&cfg.FlushEvery, "flush-every", cfg.FlushEvery, "rewrite the output file every N records (0 writes once at the end)")
	f.Int64Var(&cfg.ProgressEvery, "progress-every", cfg.ProgressEvery, "log progress every N records (negative disables)")
	f.Float64Var(&cfg.Rate, "rate", cfg.Rate, "read at most N records per second (0 is unlimited)")
	f.StringVar(&cfg.Listen, "listen", cfg.Listen, "serve status, current shapes and metrics on this address")
	f.StringVar(&cfg.ResumeFrom, "resume-from", cfg.ResumeFrom, "start from the shapes of a previous json or yaml result")
	f.StringVar(&cfg.StoreDir, "store-dir", cfg.StoreDir, "record the run in this directory")
	return cmd
}

// runInfer runs one inference and writes its result. The result is written
// even when the run stops early; the error is returned afterwards.
func runInfer(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cleanup, err := logging.Setup(cfg.Logging())
	if err != nil {
		return err
	}
	defer cleanup()

	format, err := sink.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}
	srcCfg := cfg.Source()
	w := sink.New(cfg.Output, format, openapi.Info{Title: srcCfg.Describe()})
	w.SetStdout(stdout)

	acc := pipeline.NewAccumulator()
	if cfg.ResumeFrom != "" {
		previous, err := sink.ReadSet(cfg.ResumeFrom)
		if err != nil {
			return fmt.Errorf("resuming: %w", err)
		}
		acc.Seed(previous)
		slog.Info("resuming from previous result",
			slog.String("path", cfg.ResumeFrom),
			slog.Int("shapes", previous.Len()),
		)
	}

	m := metrics.New()
	r := &runner.Runner{Metrics: m}
	if cfg.StoreDir != "" {
		st, err := store.Open(store.Config{Dir: cfg.StoreDir, Logger: slog.Default()})
		if err != nil {
			return err
		}
		defer st.Close()
		rc, err := cache.NewRunCache(cfg.RunCacheMaxItems)
		if err != nil {
			return err
		}
		r.Store, r.Cache = st, rc
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if cfg.Listen != "" {
		status := httpapi.New(httpapi.Options{
			Snapshot: acc.Snapshot,
			Metrics:  m,
			Store:    r.Store,
			Cache:    r.Cache,
		})
		ln, err := status.Listen(cfg.Listen)
		if err != nil {
			return err
		}
		go func() {
			if err := status.Serve(ctx, ln); err != nil {
				slog.Error("status server failed", slog.String("error", err.Error()))
			}
		}()
	}

	opts := pipeline.Options{
		Rate:          cfg.Rate,
		ProgressEvery: cfg.ProgressEvery,
	}
	if w.ToFile() && cfg.FlushEvery > 0 {
		opts.FlushEvery = cfg.FlushEvery
		opts.Flush = func(ctx context.Context, acc *pipeline.Accumulator) error {
			return w.Write(ctx, acc.Set())
		}
	}

	run, runErr := r.Infer(ctx, runner.Request{Source: srcCfg, Filter: cfg.Filter, Options: opts}, acc)
	if run == nil {
		return runErr
	}

	// The final write uses a fresh context so a cancelled run still leaves
	// its partial result behind.
	if err := writeResult(context.WithoutCancel(ctx), w, run.Shapes, m); err != nil {
		return err
	}

	summaryOut := stdout
	if !w.ToFile() {
		summaryOut = stderr
	}
	fmt.Fprintln(summaryOut, run.Stats.Summary())
	if run.Stats.Skipped > 0 {
		fmt.Fprintf(summaryOut, "Skipped records: %d\n", run.Stats.Skipped)
	}
	if r.Store != nil {
		fmt.Fprintf(summaryOut, "Run ID: %s\n", run.ID)
	}
	return runErr
}

// writeResult writes the final set and counts it as a flush.
func writeResult(ctx context.Context, w *sink.Writer, set *shape.Set, m *metrics.Metrics) error {
	start := time.Now()
	if err := w.Write(ctx, set); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	m.Flushed(time.Since(start).Seconds())
	return nil
}
