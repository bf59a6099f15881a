package tools

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/usestring/shapescan/internal/runfetch"
	"github.com/usestring/shapescan/internal/sink"
	"github.com/usestring/shapescan/pkg/openapi"
	"github.com/usestring/shapescan/pkg/types"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// RunsListInput is the input for shapes_runs_list.
type RunsListInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum runs to return, newest first (default: 20, max: 200)"`
}

// RunsListOutput is the output for shapes_runs_list.
type RunsListOutput struct {
	Runs []types.RunSummary `json:"runs,omitempty"`
}

// RunGetInput is the input for shapes_run_get.
type RunGetInput struct {
	RunID  string `json:"run_id" jsonschema:"Run ID from shapes_infer or shapes_runs_list"`
	Export string `json:"export,omitempty" jsonschema:"Also render the shapes as json, yaml, jsonschema or openapi"`
}

// RunGetOutput is the output for shapes_run_get.
type RunGetOutput struct {
	Run    types.RunOutput `json:"run"`
	Export string          `json:"export,omitempty"`
}

// ToolRunsList lists stored runs.
func ToolRunsList(d *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input RunsListInput) (*sdkmcp.CallToolResult, RunsListOutput, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input RunsListInput) (*sdkmcp.CallToolResult, RunsListOutput, error) {
		if d.Store == nil {
			return nil, RunsListOutput{}, nil
		}

		limit := input.Limit
		if limit <= 0 {
			limit = defaultRunsLimit
		}
		if limit > maxRunsLimit {
			limit = maxRunsLimit
		}

		summaries, err := d.Store.List(limit)
		if err != nil {
			return nil, RunsListOutput{}, err
		}

		output := RunsListOutput{Runs: make([]types.RunSummary, len(summaries))}
		for i, s := range summaries {
			output.Runs[i] = types.NewRunSummary(s)
		}
		return nil, output, nil
	}
}

// ToolRunGet fetches a stored run, optionally rendering it in an export format.
func ToolRunGet(d *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input RunGetInput) (*sdkmcp.CallToolResult, RunGetOutput, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input RunGetInput) (*sdkmcp.CallToolResult, RunGetOutput, error) {
		if d.Store == nil {
			return nil, RunGetOutput{}, ErrNotFound("run", input.RunID)
		}
		id, err := runfetch.ParseID(input.RunID)
		if err != nil {
			return nil, RunGetOutput{}, ErrInvalidInput(err.Error())
		}

		var format sink.Format
		if input.Export != "" {
			if format, err = sink.ParseFormat(input.Export); err != nil {
				return nil, RunGetOutput{}, ErrInvalidInput(err.Error())
			}
		}

		run, err := d.FetchRun(id)
		if err != nil {
			return nil, RunGetOutput{}, WrapStoreError(err, input.RunID)
		}

		out, err := types.NewRunOutput(run, nil)
		if err != nil {
			return nil, RunGetOutput{}, err
		}
		output := RunGetOutput{Run: out}

		if input.Export != "" {
			data, err := sink.Encode(ctx, run.Shapes, format, openapi.Info{Title: run.Source})
			if err != nil {
				return nil, RunGetOutput{}, err
			}
			output.Export = string(data)
		}
		return nil, output, nil
	}
}
