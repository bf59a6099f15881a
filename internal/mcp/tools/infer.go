package tools

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/usestring/shapescan/internal/filter"
	"github.com/usestring/shapescan/internal/pipeline"
	"github.com/usestring/shapescan/internal/runner"
	"github.com/usestring/shapescan/pkg/source"
	"github.com/usestring/shapescan/pkg/types"
)

const (
	defaultSamples = 3
	maxSamples     = 50
)

// InferInput is the input for shapes_infer.
type InferInput struct {
	URI        string `json:"uri,omitempty" jsonschema:"MongoDB connection string (mongodb:// or mongodb+srv://). Default: SHAPESCAN_URI"`
	Path       string `json:"path,omitempty" jsonschema:"File to read instead of a database (ndjson, json array, yaml or bson dump)"`
	Database   string `json:"db,omitempty" jsonschema:"Database name, required with a MongoDB uri"`
	Collection string `json:"collection,omitempty" jsonschema:"Collection name, required with a MongoDB uri"`
	Format     string `json:"format,omitempty" jsonschema:"File format: ndjson, json, yaml or bson (default: detect)"`
	Limit      int64  `json:"limit,omitempty" jsonschema:"Maximum records to read (default: all)"`
	Filter     string `json:"filter,omitempty" jsonschema:"jq expression applied to every record before inference, e.g. '.payload'"`
	Samples    int    `json:"samples,omitempty" jsonschema:"Record ordinals to list per shape (default: 3, max: 50)"`
}

// ToolInfer runs inference over a source and stores the run.
func ToolInfer(d *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input InferInput) (*sdkmcp.CallToolResult, types.RunOutput, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input InferInput) (*sdkmcp.CallToolResult, types.RunOutput, error) {
		cfg, err := d.sourceConfig(input)
		if err != nil {
			return nil, types.RunOutput{}, err
		}

		samples := input.Samples
		if samples <= 0 {
			samples = defaultSamples
		}
		if samples > maxSamples {
			samples = maxSamples
		}

		filterExpr := input.Filter
		if filterExpr == "" && d.Config != nil {
			filterExpr = d.Config.Filter
		}
		if filterExpr != "" {
			if _, err := filter.Compile(filterExpr); err != nil {
				return nil, types.RunOutput{}, ErrInvalidInput(err.Error())
			}
		}

		acc := pipeline.NewAccumulator()
		run, err := d.Runner.Infer(ctx, runner.Request{
			Source: cfg,
			Filter: filterExpr,
			Options: pipeline.Options{
				ProgressEvery: -1,
				Rate:          d.rate(),
			},
		}, acc)
		if run == nil {
			return nil, types.RunOutput{}, WrapSourceError(err)
		}

		snap := acc.Snapshot(samples)
		output, convErr := types.NewRunOutput(run, &snap)
		if convErr != nil {
			return nil, types.RunOutput{}, convErr
		}
		if d.Store != nil {
			output.Resource = types.NewRunResource(output.RunID)
		}
		// A failed run still returns what was folded before the failure.
		return nil, output, nil
	}
}

// sourceConfig merges tool input over the configured defaults.
func (d *Deps) sourceConfig(input InferInput) (source.Config, error) {
	var cfg source.Config
	if d.Config != nil {
		cfg = d.Config.Source()
	}

	if input.Path != "" {
		cfg.Path = input.Path
		cfg.URI = ""
	} else if input.URI != "" {
		cfg.URI = input.URI
		cfg.Path = ""
	}
	if input.Database != "" {
		cfg.Database = input.Database
	}
	if input.Collection != "" {
		cfg.Collection = input.Collection
	}
	if input.Limit < 0 {
		return source.Config{}, ErrInvalidInput("limit must not be negative")
	}
	if input.Limit > 0 {
		cfg.Limit = input.Limit
	}
	if input.Format != "" {
		f, err := source.ParseFormat(input.Format)
		if err != nil {
			return source.Config{}, ErrInvalidInput(err.Error())
		}
		cfg.Format = f
	}

	if cfg.Path == "" && cfg.URI == "" {
		return source.Config{}, ErrInvalidInput("either uri or path is required")
	}
	if source.IsMongoURI(cfg.URI) && cfg.Path == "" && (cfg.Database == "" || cfg.Collection == "") {
		return source.Config{}, ErrInvalidInput("db and collection are required with a MongoDB uri")
	}
	return cfg, nil
}

func (d *Deps) rate() float64 {
	if d.Config == nil {
		return 0
	}
	return d.Config.Rate
}
