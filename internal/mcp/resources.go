package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/usestring/shapescan/internal/mcp/tools"
	"github.com/usestring/shapescan/internal/runfetch"
	"github.com/usestring/shapescan/internal/store"
	"github.com/usestring/shapescan/pkg/types"
)

// Resource URI scheme: shapes://
// Supported URIs:
//   shapes://run/{id}

const uriScheme = "shapes://"

// registerResources registers resource templates and handlers.
func (s *Server) registerResources() {
	s.mcpServer.AddResourceTemplate(&sdkmcp.ResourceTemplate{
		URITemplate: types.RunURIPrefix + "{id}",
		Name:        "Inference Run",
		Description: "A stored inference run with every retained shape and its field statistics. shapes_infer already returns the same data; read this to fetch a run again later.",
		MIMEType:    tools.MimeJSON,
		Annotations: &sdkmcp.Annotations{
			Audience: []sdkmcp.Role{"assistant"},
			Priority: 0.5,
		},
	}, s.handleResourceRun)
}

func (s *Server) handleResourceRun(ctx context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
	params, err := parseResourceURI(req.Params.URI)
	if err != nil {
		return nil, err
	}
	id, err := runfetch.ParseID(params["id"])
	if err != nil {
		return nil, tools.ErrInvalidInput(err.Error())
	}
	if s.deps.Store == nil {
		return nil, sdkmcp.ResourceNotFoundError(req.Params.URI)
	}

	run, err := s.deps.FetchRun(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, sdkmcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, err
	}

	out, err := types.NewRunOutput(run, nil)
	if err != nil {
		return nil, err
	}
	return toResourceResult(req.Params.URI, out)
}

// parseResourceURI extracts parameters from a shapes:// URI.
func parseResourceURI(uri string) (map[string]string, error) {
	if !strings.HasPrefix(uri, uriScheme) {
		return nil, tools.ErrInvalidInput("invalid URI scheme: expected " + uriScheme)
	}

	parts := strings.Split(strings.TrimPrefix(uri, uriScheme), "/")
	params := make(map[string]string)

	switch resourceType := parts[0]; resourceType {
	case "run":
		if len(parts) < 2 || parts[1] == "" {
			return nil, tools.ErrInvalidInput("run URI requires a run ID")
		}
		params["id"] = parts[1]
	case "":
		return nil, tools.ErrInvalidInput("empty resource path")
	default:
		return nil, tools.ErrInvalidInput(fmt.Sprintf("unknown resource type: %s", resourceType))
	}

	return params, nil
}

// toResourceResult serializes content to a ReadResourceResult.
func toResourceResult(uri string, content any) (*sdkmcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serializing resource: %w", err)
	}

	return &sdkmcp.ReadResourceResult{
		Contents: []*sdkmcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: tools.MimeJSON,
				Text:     string(data),
			},
		},
	}, nil
}
