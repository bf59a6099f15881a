package main

import (
	"github.com/spf13/cobra"

	"github.com/usestring/shapescan/internal/config"
)

// newRootCmd builds the command tree. Flags write into cfg, which already
// holds the environment values, so a flag overrides its variable.
func newRootCmd(cfg *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "shapescan",
		Short: "Infer the distinct document shapes of a MongoDB collection",
		Long: `shapescan reads every document of a collection or a document file,
classifies its structure, and keeps the distinct shapes: documents that only
differ by an empty array where another has a typed one collapse into one.`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	pf.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text, json, auto")
	pf.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "also write logs to this rotated file")

	rootCmd.AddCommand(
		newInferCmd(cfg),
		newClassifyCmd(cfg),
		newServeCmd(cfg),
	)
	return rootCmd
}
