package prompts

import (
	"context"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// HandleSurveyCollection implements the shape survey workflow.
func HandleSurveyCollection(cfg *Config) func(ctx context.Context, req *sdkmcp.GetPromptRequest) (*sdkmcp.GetPromptResult, error) {
	return func(ctx context.Context, req *sdkmcp.GetPromptRequest) (*sdkmcp.GetPromptResult, error) {
		var src, filter string
		if req != nil && req.Params != nil && req.Params.Arguments != nil {
			src = req.Params.Arguments["source"]
			filter = req.Params.Arguments["filter"]
		}
		if src == "" {
			src = cfg.DefaultSource
		}

		var sb strings.Builder

		sb.WriteString("# Survey Document Shapes\n\n")
		sb.WriteString("You are a data engineer auditing a schema-less collection. ")
		sb.WriteString("Your goal is to list the distinct document shapes, say which fields are stable, and point out drift.\n\n")

		sb.WriteString("## How Shapes Are Deduplicated\n\n")
		sb.WriteString("- Each document becomes a shape: every field maps to the set of BSON types seen for it\n")
		sb.WriteString("- Field order does not matter; a shape equal to a retained one is ignored\n")
		sb.WriteString("- An empty array carries no element type, so `{tags: []}` is absorbed by `{tags: [String]}` (action `keep`) ")
		sb.WriteString("and replaced when the typed form arrives later (action `take`)\n")
		sb.WriteString("- Any other difference keeps both shapes (action `push`)\n\n")

		sb.WriteString("## Workflow Steps\n\n")
		sb.WriteString("1. **Infer** - run shapes_infer on the source\n")
		sb.WriteString("   - Use `limit` for a first pass over large collections\n")
		sb.WriteString("   - Use `filter` to survey an embedded document instead of the whole record\n")
		sb.WriteString("2. **Read the field table** - `fields` lists every path with its types and frequency\n")
		sb.WriteString("   - `required: false` marks fields missing from some shapes\n")
		sb.WriteString("   - More than one entry in `bsonTypes` marks type drift\n")
		sb.WriteString("3. **Explain surprises** - pass two sample documents to shapes_compare to see why they were kept apart\n")
		sb.WriteString("4. **Export** - shapes_run_get with `export: jsonschema` or `export: openapi` for a machine-readable result\n\n")

		sb.WriteString("## Suggested Tools\n\n")
		sb.WriteString("```\n")
		var args []string
		switch {
		case src == "":
			args = append(args, `uri="<mongodb uri>"`, `db="<db>"`, `collection="<collection>"`)
		case strings.HasPrefix(src, "mongodb"):
			args = append(args, fmt.Sprintf("uri=%q", src), `db="<db>"`, `collection="<collection>"`)
		default:
			args = append(args, fmt.Sprintf("path=%q", src))
		}
		if filter != "" {
			args = append(args, fmt.Sprintf("filter=%q", filter))
		}
		sb.WriteString(fmt.Sprintf("shapes_infer(%s, limit=10000)\n", strings.Join(args, ", ")))
		sb.WriteString("shapes_compare(document_a=\"<sample A>\", document_b=\"<sample B>\")\n")
		sb.WriteString("shapes_run_get(run_id=\"<run_id>\", export=\"jsonschema\")\n")
		sb.WriteString("```\n\n")

		sb.WriteString("## Expected Output Format\n\n")
		sb.WriteString("1. **Overview**: records read, shapes found, records skipped\n")
		sb.WriteString("2. **Stable fields**: required fields with a single type\n")
		sb.WriteString("3. **Drift**: optional fields and fields with several types, with the shapes that carry them\n")
		sb.WriteString("4. **Recommendation**: a target schema and the migrations it implies\n\n")

		sb.WriteString("## If Things Go Wrong\n\n")
		sb.WriteString("- **SOURCE_ERROR?** Check the URI, database and collection names\n")
		sb.WriteString("- **TIMEOUT?** Retry with a smaller `limit`\n")
		sb.WriteString("- **Many skipped records?** The filter failed on them or they were not objects\n")
		if !cfg.StoreEnabled {
			sb.WriteString("\nRuns are kept in memory only; they are lost when the server stops.\n")
		}

		return &sdkmcp.GetPromptResult{
			Description: "Guide for surveying document shapes",
			Messages: []*sdkmcp.PromptMessage{
				{
					Role:    "user",
					Content: &sdkmcp.TextContent{Text: sb.String()},
				},
			},
		}, nil
	}
}
