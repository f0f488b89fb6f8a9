package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/pyaudit/internal/output"
	"github.com/panbanda/pyaudit/pkg/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer("1.0.0-test", config.DefaultConfig(), nil)
	if s == nil || s.server == nil || s.engine == nil {
		t.Fatal("NewServer() returned an incomplete server")
	}
	t.Cleanup(s.engine.Close)
	return s
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content is not TextContent: %T", result.Content[0])
	}
	return text.Text
}

func TestServerCreationDefaults(t *testing.T) {
	s := NewServer("", nil, nil)
	defer s.engine.Close()
	if s.cfg == nil || s.logger == nil {
		t.Error("nil config and logger should fall back to defaults")
	}
}

func TestToolDescriptions(t *testing.T) {
	descriptions := map[string]func() string{
		"analyze_source": describeAnalyzeSource,
		"analyze_paths":  describeAnalyzePaths,
	}

	for name, fn := range descriptions {
		t.Run(name, func(t *testing.T) {
			desc := fn()
			for _, section := range []string{"USE WHEN:", "INTERPRETING RESULTS:", "METRICS RETURNED:"} {
				if !strings.Contains(desc, section) {
					t.Errorf("%s description missing %s section", name, section)
				}
			}
		})
	}
}

func TestGetPaths(t *testing.T) {
	if got := getPaths(nil); len(got) != 1 || got[0] != "." {
		t.Errorf("getPaths(nil) = %v, want [.]", got)
	}
	if got := getPaths([]string{"a", "b"}); len(got) != 2 {
		t.Errorf("getPaths() = %v", got)
	}
}

func TestGetFormat(t *testing.T) {
	tests := []struct {
		input string
		want  output.Format
	}{
		{"", output.FormatTOON},
		{"toon", output.FormatTOON},
		{"json", output.FormatJSON},
		{"markdown", output.FormatTOON},
		{"text", output.FormatTOON},
	}
	for _, tt := range tests {
		if got := getFormat(tt.input); got != tt.want {
			t.Errorf("getFormat(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestToolError(t *testing.T) {
	result, _, err := toolError("boom")
	if err != nil {
		t.Fatalf("toolError returned error: %v", err)
	}
	if !result.IsError {
		t.Error("IsError should be true")
	}
	if got := resultText(t, result); got != "Error: boom" {
		t.Errorf("text = %q", got)
	}
}

func TestHandleAnalyzeSource(t *testing.T) {
	s := newTestServer(t)
	input := SourceInput{
		Source: "def f(x):\n    if x > 0:\n        return 1 / x\n    return 0\n",
		Format: "json",
	}

	result, _, err := s.handleAnalyzeSource(context.Background(), nil, input)
	if err != nil {
		t.Fatalf("handleAnalyzeSource returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", resultText(t, result))
	}

	var got struct {
		Path      string `json:"path"`
		Functions []struct {
			Complexity int `json:"complexity"`
		} `json:"functions"`
		Issues []struct {
			Kind string `json:"kind"`
			Line int    `json:"line"`
		} `json:"issues"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &got); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if got.Path != "<input>" {
		t.Errorf("path = %q, want <input>", got.Path)
	}
	if len(got.Functions) != 1 || got.Functions[0].Complexity != 2 {
		t.Errorf("functions = %+v", got.Functions)
	}
	if len(got.Issues) != 1 || got.Issues[0].Kind != "possible_zero_divisor" || got.Issues[0].Line != 3 {
		t.Errorf("issues = %+v", got.Issues)
	}
}

func TestHandleAnalyzeSourceParseError(t *testing.T) {
	s := newTestServer(t)

	result, _, err := s.handleAnalyzeSource(context.Background(), nil, SourceInput{Source: "def (:\n", Path: "bad.py"})
	if err != nil {
		t.Fatalf("handleAnalyzeSource returned error: %v", err)
	}
	if !result.IsError {
		t.Error("unparseable source should be a tool error")
	}
}

func TestHandleAnalyzePaths(t *testing.T) {
	s := newTestServer(t)
	dir := t.TempDir()
	files := map[string]string{
		"calc.py":   "def div(a):\n    return a / 0\n",
		"broken.py": "def (:\n",
		"notes.txt": "not python\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	result, _, err := s.handleAnalyzePaths(context.Background(), nil, PathsInput{Paths: []string{dir}, Format: "json"})
	if err != nil {
		t.Fatalf("handleAnalyzePaths returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", resultText(t, result))
	}

	var got struct {
		Reports  []json.RawMessage `json:"reports"`
		Failures []struct {
			Path string `json:"path"`
		} `json:"failures"`
		Summary struct {
			Files        int            `json:"files"`
			IssuesByKind map[string]int `json:"issues_by_kind"`
		} `json:"summary"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &got); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if got.Summary.Files != 2 {
		t.Errorf("files = %d, want 2", got.Summary.Files)
	}
	if len(got.Reports) != 1 || len(got.Failures) != 1 {
		t.Errorf("reports = %d, failures = %d", len(got.Reports), len(got.Failures))
	}
	if got.Summary.IssuesByKind["certain_zero_divisor"] != 1 {
		t.Errorf("issues by kind = %v", got.Summary.IssuesByKind)
	}
}

func TestHandleAnalyzePathsTOON(t *testing.T) {
	s := newTestServer(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.py"), []byte("def f():\n    pass\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, _, err := s.handleAnalyzePaths(context.Background(), nil, PathsInput{Paths: []string{dir}})
	if err != nil {
		t.Fatalf("handleAnalyzePaths returned error: %v", err)
	}
	if text := resultText(t, result); !strings.Contains(text, "summary") {
		t.Errorf("TOON output missing summary: %s", text)
	}
}

func TestHandleAnalyzePathsEmpty(t *testing.T) {
	s := newTestServer(t)

	result, _, err := s.handleAnalyzePaths(context.Background(), nil, PathsInput{Paths: []string{t.TempDir()}})
	if err != nil {
		t.Fatalf("handleAnalyzePaths returned error: %v", err)
	}
	if !result.IsError {
		t.Error("a directory without Python files should be a tool error")
	}
}

func TestLoadPrompts(t *testing.T) {
	defs, err := loadPrompts()
	if err != nil {
		t.Fatalf("loadPrompts() error: %v", err)
	}
	if len(defs) == 0 {
		t.Fatal("no prompts embedded")
	}
	for _, def := range defs {
		t.Run(def.Name, func(t *testing.T) {
			if def.Description == "" {
				t.Error("prompt description is empty")
			}
			if strings.HasPrefix(def.Body, "---") {
				t.Error("frontmatter was not stripped")
			}
			for _, arg := range def.Arguments {
				if !strings.Contains(def.Body, "{{"+arg.Name+"}}") {
					t.Errorf("argument %s is never used", arg.Name)
				}
			}
		})
	}
}

func TestPromptHandler(t *testing.T) {
	defs, err := loadPrompts()
	if err != nil {
		t.Fatal(err)
	}
	for _, def := range defs {
		t.Run(def.Name, func(t *testing.T) {
			req := &mcp.GetPromptRequest{
				Params: &mcp.GetPromptParams{Name: def.Name, Arguments: map[string]string{}},
			}
			result, err := makePromptHandler(def)(context.Background(), req)
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if len(result.Messages) != 1 || result.Messages[0].Role != "user" {
				t.Fatalf("messages = %+v", result.Messages)
			}
			text := result.Messages[0].Content.(*mcp.TextContent).Text
			if strings.Contains(text, "{{") {
				t.Errorf("unsubstituted placeholder in %q", text)
			}
		})
	}
}

func TestPromptHandlerWithArgs(t *testing.T) {
	defs, err := loadPrompts()
	if err != nil {
		t.Fatal(err)
	}
	var def promptDefinition
	for _, d := range defs {
		if d.Name == "refactoring-priority" {
			def = d
		}
	}
	if def.Name == "" {
		t.Fatal("refactoring-priority prompt not found")
	}

	req := &mcp.GetPromptRequest{
		Params: &mcp.GetPromptParams{
			Name:      def.Name,
			Arguments: map[string]string{"top": "25", "paths": "src/app"},
		},
	}
	result, err := makePromptHandler(def)(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	text := result.Messages[0].Content.(*mcp.TextContent).Text
	if !strings.Contains(text, "25") || !strings.Contains(text, "src/app") {
		t.Errorf("arguments not substituted: %q", text)
	}
}

func TestSubstituteArg(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		args       map[string]string
		defaultVal string
		expected   string
	}{
		{"use provided value", "top {{top}} items", map[string]string{"top": "50"}, "30", "top 50 items"},
		{"use default when missing", "top {{top}} items", map[string]string{}, "30", "top 30 items"},
		{"use default when empty", "top {{top}} items", map[string]string{"top": ""}, "30", "top 30 items"},
		{"no placeholder unchanged", "no placeholder here", map[string]string{"top": "50"}, "30", "no placeholder here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := substituteArg(tt.text, "top", tt.args, tt.defaultVal); got != tt.expected {
				t.Errorf("substituteArg() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestParseFrontmatter(t *testing.T) {
	fm, body := parseFrontmatter([]byte("---\ndescription: d\narguments:\n  - name: x\n    default: \"1\"\n---\nbody {{x}}\n"))
	if fm.Description != "d" || len(fm.Arguments) != 1 || fm.Arguments[0].Default != "1" {
		t.Errorf("frontmatter = %+v", fm)
	}
	if body != "body {{x}}\n" {
		t.Errorf("body = %q", body)
	}

	fm, body = parseFrontmatter([]byte("no frontmatter"))
	if fm.Description != "" || body != "no frontmatter" {
		t.Errorf("plain content mangled: %+v %q", fm, body)
	}
}

func TestGenerateManifest(t *testing.T) {
	data, err := GenerateManifest("1.2.3")
	if err != nil {
		t.Fatalf("GenerateManifest() error: %v", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m.Version != "1.2.3" || m.Name != "io.github.panbanda/pyaudit" {
		t.Errorf("manifest = %+v", m)
	}
	if len(m.Packages) != 1 || m.Packages[0].Identifier != "ghcr.io/panbanda/pyaudit:1.2.3" {
		t.Errorf("packages = %+v", m.Packages)
	}

	data, _ = GenerateManifest("")
	if !strings.Contains(string(data), `"version": "0.0.0"`) {
		t.Error("empty version should default to 0.0.0")
	}
}
