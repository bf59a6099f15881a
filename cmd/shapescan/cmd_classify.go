package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/usestring/shapescan/internal/config"
	"github.com/usestring/shapescan/internal/logging"
	"github.com/usestring/shapescan/pkg/shape"
	"github.com/usestring/shapescan/pkg/source"
)

func newClassifyCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <file>",
		Short: "Print the shape of every document in a file, one per line",
		Long: `classify prints the compact shape of each document without deduplicating,
which shows exactly how a document will be represented. Undecodable records
are logged and skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cleanup, err := logging.Setup(cfg.Logging())
			if err != nil {
				return err
			}
			defer cleanup()

			format, err := source.ParseFormat(cfg.InputFormat)
			if err != nil {
				return err
			}
			src, err := source.OpenFile(args[0], format)
			if err != nil {
				return err
			}
			defer src.Close()

			return classify(cmd.Context(), src, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&cfg.InputFormat, "input-format", cfg.InputFormat, "file format: ndjson, json, yaml, bson (default: detect)")
	return cmd
}

func classify(ctx context.Context, src source.Source, out io.Writer) error {
	for {
		doc, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if source.IsRecordError(err) {
			slog.Warn("skipping undecodable record", slog.String("error", err.Error()))
			continue
		}
		if err != nil {
			return err
		}

		s, err := shape.Build(doc)
		if err != nil {
			slog.Warn("skipping invalid document", slog.String("error", err.Error()))
			continue
		}
		if _, err := fmt.Fprintln(out, s.String()); err != nil {
			return err
		}
	}
}
