package prompts

import (
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Register registers all prompts with the MCP server.
func Register(srv *sdkmcp.Server, cfg *Config) {
	srv.AddPrompt(&sdkmcp.Prompt{
		Name:        "survey_collection",
		Description: "RECOMMENDED: Survey the document shapes of a collection or file and explain its schema drift. Start here - provides workflow guidance for shapes_infer, shapes_compare and shapes_run_get.",
		Arguments: []*sdkmcp.PromptArgument{
			{
				Name:        "source",
				Description: "MongoDB URI with db/collection, or a file path",
				Required:    false,
			},
			{
				Name:        "filter",
				Description: "jq expression selecting the part of each document to survey (e.g. '.payload')",
				Required:    false,
			},
		},
	}, HandleSurveyCollection(cfg))
}
