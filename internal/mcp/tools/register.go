package tools

import (
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Register registers all tools with the MCP server.
func Register(srv *sdkmcp.Server, d *Deps) {
	// Tool 1: shapes_infer
	AddTool(srv, &sdkmcp.Tool{
		Name:        "shapes_infer",
		Description: "Infer the distinct document shapes of a MongoDB collection or a document file. Reads every record (or up to limit), optionally reshaped by a jq filter, and folds their shapes into a deduplicated set where an untyped empty array is replaced by a typed one. Returns {run_id, summary, stats, shapes: [{index, title, schema, records, samples}], fields: [{path, types, bsonTypes, frequency, required}], resource}. The run is stored; fetch it again with shapes_run_get.",
	}, ToolInfer(d))

	// Tool 2: shapes_classify
	AddTool(srv, &sdkmcp.Tool{
		Name:        "shapes_classify",
		Description: "Classify a single JSON or Extended JSON document. Returns its shape as {field: [descriptor, ...]}, the compact encoding, and an equivalent JSON Schema (draft 2020-12). Use this to see how one document will be represented before running shapes_infer.",
	}, ToolClassify(d))

	// Tool 3: shapes_compare
	AddTool(srv, &sdkmcp.Tool{
		Name:        "shapes_compare",
		Description: "Explain how two documents are deduplicated. Reports the action taken when document_b is inserted into a set holding document_a (noop: same shape, push: distinct shapes, keep: a is more informative, take: b replaces a), the action with the roles swapped, the resulting set, and a per-field breakdown of shared fields.",
	}, ToolCompare(d))

	// Tool 4: shapes_runs_list
	AddTool(srv, &sdkmcp.Tool{
		Name:        "shapes_runs_list",
		Description: "List stored inference runs, newest first. Returns run_id, source, timestamps, records read and shape count.",
	}, ToolRunsList(d))

	// Tool 5: shapes_run_get
	AddTool(srv, &sdkmcp.Tool{
		Name:        "shapes_run_get",
		Description: "Get a stored inference run by run_id with its shapes, stats and field statistics. Set export to json, yaml, jsonschema or openapi to also receive the shapes rendered in that format.",
	}, ToolRunGet(d))
}
