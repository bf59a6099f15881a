// Package mcpsrv provides an extensible MCP server for shapescan.
//
// The server exposes shape inference over schema-less document collections:
// shapes_infer runs a source through the pipeline and stores the run,
// shapes_classify and shapes_compare explain how single documents are
// represented and deduplicated, and shapes_runs_list and shapes_run_get read
// stored runs back. Stored runs are also served as shapes://run/{id}
// resources.
//
// # Basic Usage
//
//	server, err := mcpsrv.NewServer()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer server.Close()
//	server.Run(ctx)
//
// # Extension
//
// Add custom tools using MCP SDK types directly. Tools built with
// WithDepsTool can run inference through Deps.Runner:
//
//	mcpsrv.WithDepsTool(
//	    &mcp.Tool{Name: "count_shapes", Description: "Count the shapes of a file"},
//	    func(d *mcpsrv.Deps) func(ctx context.Context, req *mcp.CallToolRequest, in CountInput) (*mcp.CallToolResult, CountOutput, error) {
//	        return func(ctx context.Context, req *mcp.CallToolRequest, in CountInput) (*mcp.CallToolResult, CountOutput, error) {
//	            acc := pipeline.NewAccumulator()
//	            run, err := d.Runner.Infer(ctx, runner.Request{Source: source.Config{Path: in.Path}}, acc)
//	            if err != nil {
//	                return nil, CountOutput{}, err
//	            }
//	            return nil, CountOutput{Shapes: run.Shapes.Len()}, nil
//	        }
//	    },
//	)
//
// # Configuration
//
// Configuration comes from the environment (see internal/config) and can be
// overridden:
//
//	server, err := mcpsrv.NewServer(
//	    mcpsrv.WithLogLevel("debug"),
//	    mcpsrv.WithLogFile("/var/log/shapescan.log"),
//	    mcpsrv.WithStoreDir("/var/lib/shapescan"),
//	)
package mcpsrv
