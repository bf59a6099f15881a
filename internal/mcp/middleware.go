package mcp

import (
	"context"
	"log/slog"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// LoggingMiddleware returns middleware that logs every incoming method call.
// Tool calls also carry the tool name, and a result flagged IsError is logged
// as a warning since the SDK reports handler failures that way.
func LoggingMiddleware() sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			start := time.Now()

			result, err := next(ctx, method, req)

			attrs := []slog.Attr{
				slog.String("method", method),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			}
			if name := callName(req); name != "" {
				attrs = append(attrs, slog.String("name", name))
			}

			switch {
			case err != nil:
				attrs = append(attrs, slog.String("error", err.Error()))
				slog.LogAttrs(ctx, slog.LevelError, "method call failed", attrs...)
			case toolFailed(result):
				slog.LogAttrs(ctx, slog.LevelWarn, "tool returned an error", attrs...)
			default:
				slog.LogAttrs(ctx, slog.LevelInfo, "method call completed", attrs...)
			}

			return result, err
		}
	}
}

func callName(req sdkmcp.Request) string {
	switch r := req.(type) {
	case *sdkmcp.CallToolRequest:
		if r.Params != nil {
			return r.Params.Name
		}
	case *sdkmcp.GetPromptRequest:
		if r.Params != nil {
			return r.Params.Name
		}
	case *sdkmcp.ReadResourceRequest:
		if r.Params != nil {
			return r.Params.URI
		}
	}
	return ""
}

func toolFailed(result sdkmcp.Result) bool {
	r, ok := result.(*sdkmcp.CallToolResult)
	return ok && r != nil && r.IsError
}
