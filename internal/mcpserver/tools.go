package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/pyaudit/internal/output"
	"github.com/panbanda/pyaudit/internal/scanner"
)

// SourceInput is the input of analyze_source.
type SourceInput struct {
	Source string `json:"source" jsonschema:"Python source text to analyze."`
	Path   string `json:"path,omitempty" jsonschema:"Name reported for the source. Defaults to <input>."`
	Format string `json:"format,omitempty" jsonschema:"Output format: toon (default) or json."`
}

// PathsInput is the input of analyze_paths.
type PathsInput struct {
	Paths  []string `json:"paths,omitempty" jsonschema:"Files or directories to analyze. Defaults to current directory if empty."`
	Format string   `json:"format,omitempty" jsonschema:"Output format: toon (default) or json."`
}

func getPaths(paths []string) []string {
	if len(paths) == 0 {
		return []string{"."}
	}
	return paths
}

func getFormat(format string) output.Format {
	if output.ParseFormat(format) == output.FormatJSON {
		return output.FormatJSON
	}
	return output.FormatTOON
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := output.Marshal(format, data)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

func (s *Server) handleAnalyzeSource(ctx context.Context, _ *mcp.CallToolRequest, input SourceInput) (*mcp.CallToolResult, any, error) {
	path := input.Path
	if path == "" {
		path = "<input>"
	}

	r, err := s.engine.AnalyzeSource(ctx, path, []byte(input.Source))
	if err != nil {
		s.logger.Debug("analyze_source failed", "path", path, "error", err)
		return toolError(err.Error())
	}
	return toolResult(r, getFormat(input.Format))
}

func (s *Server) handleAnalyzePaths(ctx context.Context, _ *mcp.CallToolRequest, input PathsInput) (*mcp.CallToolResult, any, error) {
	files, err := scanner.NewScanner(s.cfg).ScanPaths(getPaths(input.Paths))
	if err != nil {
		return toolError(err.Error())
	}
	if len(files) == 0 {
		return toolError("no Python files found")
	}

	outcomes, err := s.engine.Analyze(ctx, files)
	if err != nil {
		return toolError(fmt.Sprintf("analysis interrupted: %v", err))
	}
	return toolResult(output.NewAnalysis("", outcomes).RenderData(), getFormat(input.Format))
}
