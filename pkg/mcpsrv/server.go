package mcpsrv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/usestring/shapescan/internal/cache"
	"github.com/usestring/shapescan/internal/config"
	"github.com/usestring/shapescan/internal/logging"
	"github.com/usestring/shapescan/internal/mcp"
	"github.com/usestring/shapescan/internal/mcp/tools"
	"github.com/usestring/shapescan/internal/metrics"
	"github.com/usestring/shapescan/internal/runner"
	"github.com/usestring/shapescan/internal/store"
)

// storeGCInterval is how often a persistent run store reclaims space.
const storeGCInterval = 10 * time.Minute

// Server is the shapescan MCP server.
// It wraps the internal implementation and provides extension points.
type Server struct {
	internal   *mcp.Server
	deps       *Deps
	logCleanup func() error
}

// NewServer creates a new MCP server with the builtin shapes_* tools.
//
// Configuration is read from the environment unless WithConfig is given.
// Use functional options to configure logging, add custom tools, etc.
func NewServer(opts ...Option) (*Server, error) {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.config == nil {
		cfg.config = config.Load()
	}
	if cfg.storeDir != nil {
		cfg.config.StoreDir = *cfg.storeDir
	}
	if err := cfg.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logCfg := cfg.config.Logging()
	if cfg.logLevel != "" {
		logCfg.Level = cfg.logLevel
	}
	if cfg.logFile != "" {
		logCfg.FilePath = cfg.logFile
	}
	logCleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}

	st, err := store.Open(store.Config{
		Dir:        cfg.config.StoreDir,
		GCInterval: storeGCInterval,
		Logger:     slog.Default(),
	})
	if err != nil {
		logCleanup()
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	runCache, err := cache.NewRunCache(cfg.config.RunCacheMaxItems)
	if err != nil {
		st.Close()
		logCleanup()
		return nil, fmt.Errorf("failed to create run cache: %w", err)
	}

	deps := &Deps{
		Config:  cfg.config,
		Store:   st,
		Cache:   runCache,
		Metrics: metrics.New(),
	}
	deps.Runner = &runner.Runner{
		Store:   deps.Store,
		Cache:   deps.Cache,
		Metrics: deps.Metrics,
		Open:    cfg.open,
	}
	toolDeps := &tools.Deps{
		Config: deps.Config,
		Runner: deps.Runner,
		Store:  deps.Store,
		Cache:  deps.Cache,
	}

	var internalOpts []mcp.ServerOption
	if !cfg.disableBuiltinTools {
		internalOpts = append(internalOpts, mcp.WithBuiltinTools())
	}
	if !cfg.disableBuiltinPrompts {
		internalOpts = append(internalOpts, mcp.WithBuiltinPrompts())
	}
	for _, fn := range cfg.toolRegistrations {
		internalOpts = append(internalOpts, mcp.WithCustomRegistration(fn))
	}
	for _, fn := range cfg.promptRegistrations {
		internalOpts = append(internalOpts, mcp.WithCustomRegistration(fn))
	}
	for _, fn := range cfg.resourceRegistrations {
		internalOpts = append(internalOpts, mcp.WithCustomRegistration(fn))
	}
	for _, fn := range cfg.deferredToolRegistrations {
		internalOpts = append(internalOpts, mcp.WithCustomRegistration(func(srv *sdkmcp.Server) {
			fn(srv, deps)
		}))
	}

	internal, err := mcp.NewServer(toolDeps, internalOpts...)
	if err != nil {
		st.Close()
		logCleanup()
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return &Server{
		internal:   internal,
		deps:       deps,
		logCleanup: logCleanup,
	}, nil
}

// Run starts the MCP server with stdio transport.
// The server runs until the context is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.internal.Run(ctx)
}

// MCPServer returns the underlying MCP server, e.g. to connect another
// transport.
func (s *Server) MCPServer() *sdkmcp.Server {
	return s.internal.MCPServer()
}

// Close closes the run store and flushes logs.
func (s *Server) Close() error {
	var errs []error
	if err := s.deps.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing run store: %w", err))
	}
	if s.logCleanup != nil {
		if err := s.logCleanup(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Deps returns the dependencies for building custom tools.
func (s *Server) Deps() *Deps {
	return s.deps
}
