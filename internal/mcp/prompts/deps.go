// Package prompts contains MCP prompt implementations for shapescan.
package prompts

// Config holds configuration needed by prompts.
type Config struct {
	// DefaultSource describes the source shapes_infer reads when the call
	// names none; empty when nothing is configured.
	DefaultSource string
	// StoreEnabled reports whether runs survive the server process.
	StoreEnabled bool
}
