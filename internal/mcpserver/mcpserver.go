// Package mcpserver exposes the analyzer to MCP clients over stdio.
package mcpserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/pyaudit/pkg/analyzer"
	"github.com/panbanda/pyaudit/pkg/config"
)

// Server wraps the MCP server and the engine its tools share.
type Server struct {
	server *mcp.Server
	engine *analyzer.Engine
	cfg    *config.Config
	logger *slog.Logger
}

// NewServer creates an MCP server with the analysis tools and prompts
// registered. A nil cfg uses the defaults.
func NewServer(version string, cfg *config.Config, logger *slog.Logger) *Server {
	if version == "" {
		version = "dev"
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "pyaudit",
			Version: version,
		},
		nil,
	)

	s := &Server{
		server: server,
		engine: analyzer.FromConfig(cfg, logger),
		cfg:    cfg,
		logger: logger,
	}
	s.registerTools()
	s.registerPrompts()
	return s
}

// Run serves over stdio until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	defer s.engine.Close()
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_source",
		Description: describeAnalyzeSource(),
	}, s.handleAnalyzeSource)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_paths",
		Description: describeAnalyzePaths(),
	}, s.handleAnalyzePaths)
}
