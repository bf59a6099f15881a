package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/usestring/shapescan/internal/config"
	"github.com/usestring/shapescan/pkg/mcpsrv"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `serve exposes the shapes_* tools to an MCP client over stdin/stdout.
The source flags and variables set the default source of shapes_infer.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := mcpsrv.NewServer(mcpsrv.WithConfig(cfg))
			if err != nil {
				return err
			}
			defer server.Close()

			slog.Info("starting shapescan MCP server on stdio")
			if err := server.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			slog.Info("server stopped")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.URI, "uri", cfg.URI, "default MongoDB connection string")
	f.StringVar(&cfg.Database, "db", cfg.Database, "default database name")
	f.StringVar(&cfg.Collection, "collection", cfg.Collection, "default collection name")
	f.StringVar(&cfg.StoreDir, "store-dir", cfg.StoreDir, "persist runs in this directory (default: in memory)")
	return cmd
}
