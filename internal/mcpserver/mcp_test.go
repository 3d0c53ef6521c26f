package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/howitworks/internal/cache"
	"github.com/panbanda/howitworks/internal/output"
	"github.com/panbanda/howitworks/internal/testutil"
	"github.com/panbanda/howitworks/pkg/config"
)

var sampleApp = map[string]string{
	"app/__init__.py": "",
	"app/cli.py":      "import os\nfrom app import util\n\ndef main():\n    util.run()\n    util.run()\n\nmain()\n",
	"app/util.py":     "def run():\n    print('running')\n",
}

func newTestServer(t *testing.T, files map[string]string, opts ...Option) (*Server, string) {
	t.Helper()
	root := testutil.PythonTree(t, files)
	cfg := config.DefaultConfig()
	cfg.Analysis.Root = root
	return NewServer("test", append([]Option{WithConfig(cfg)}, opts...)...), root
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestNewServer(t *testing.T) {
	s := NewServer("")
	assert.NotNil(t, s.server)
	assert.NotNil(t, s.config)
	assert.Nil(t, s.cache)
}

func TestHandleCallGraph(t *testing.T) {
	s, _ := newTestServer(t, sampleApp)

	result, _, err := s.handleCallGraph(context.Background(), nil, CallGraphInput{
		AnalyzeInput: AnalyzeInput{Entry: "app.cli", Format: "json"},
	})
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var data output.GraphData
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &data))
	assert.Contains(t, data.Nodes, "app.cli.main")
	assert.Contains(t, data.Nodes, "app.util.run")
	assert.Nil(t, data.Metrics)
}

func TestHandleCallGraph_Metrics(t *testing.T) {
	s, _ := newTestServer(t, sampleApp)

	result, _, err := s.handleCallGraph(context.Background(), nil, CallGraphInput{
		AnalyzeInput:   AnalyzeInput{Entry: "app.cli"},
		IncludeMetrics: true,
	})
	require.NoError(t, err)
	require.False(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, text, "pagerank")
	assert.Contains(t, text, "app.util.run")
}

func TestHandleCallGraph_PruneThreshold(t *testing.T) {
	s, _ := newTestServer(t, sampleApp)
	one := 1

	result, _, err := s.handleCallGraph(context.Background(), nil, CallGraphInput{
		AnalyzeInput:   AnalyzeInput{Entry: "app.cli", Format: "json"},
		PruneThreshold: &one,
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	var data output.GraphData
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &data))
	assert.Contains(t, data.Removed, "app.util.run")
	assert.NotContains(t, data.Nodes, "app.util.run")

	// The server configuration is not modified by tool inputs.
	assert.Equal(t, 5, s.config.Analysis.PruneThreshold)
}

func TestHandleCallGraph_Errors(t *testing.T) {
	s, _ := newTestServer(t, sampleApp)

	tests := []struct {
		name  string
		input CallGraphInput
		want  string
	}{
		{"missing entry", CallGraphInput{}, "entry is required"},
		{"unknown entry", CallGraphInput{AnalyzeInput: AnalyzeInput{Entry: "app.nothing"}}, "app.nothing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, _, err := s.handleCallGraph(context.Background(), nil, tt.input)
			require.NoError(t, err)
			assert.True(t, result.IsError)
			text := resultText(t, result)
			assert.True(t, strings.HasPrefix(text, "Error: "))
			assert.Contains(t, text, tt.want)
		})
	}
}

func TestHandleCallees(t *testing.T) {
	s, _ := newTestServer(t, sampleApp)

	result, _, err := s.handleCallees(context.Background(), nil, CalleesInput{
		AnalyzeInput: AnalyzeInput{Entry: "app.cli", Format: "json"},
		Name:         "app.cli.main",
	})
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var got CalleesResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &got))
	assert.Equal(t, []string{"app.util.run"}, got.Callees)
	assert.Equal(t, 1, got.OutDegree)
	assert.Equal(t, 1, got.InDegree)
}

func TestHandleCallees_Callers(t *testing.T) {
	s, _ := newTestServer(t, sampleApp)

	result, _, err := s.handleCallees(context.Background(), nil, CalleesInput{
		AnalyzeInput: AnalyzeInput{Entry: "app.cli", Format: "json"},
		Name:         "app.util.run",
		Callers:      true,
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	var got CalleesResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &got))
	assert.Equal(t, []string{"app.cli.main"}, got.Callers)
	assert.Empty(t, got.Callees)
}

func TestHandleCallees_Errors(t *testing.T) {
	s, _ := newTestServer(t, sampleApp)

	result, _, err := s.handleCallees(context.Background(), nil, CalleesInput{
		AnalyzeInput: AnalyzeInput{Entry: "app.cli"},
	})
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "name is required")

	result, _, err = s.handleCallees(context.Background(), nil, CalleesInput{
		AnalyzeInput: AnalyzeInput{Entry: "app.cli"},
		Name:         "app.cli.nope",
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "app.cli.nope")
}

func TestHandleModules(t *testing.T) {
	s, _ := newTestServer(t, sampleApp)

	result, _, err := s.handleModules(context.Background(), nil, ModulesInput{
		AnalyzeInput: AnalyzeInput{Entry: "app.cli", Format: "json"},
	})
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var got struct {
		Entry   string `json:"entry"`
		Modules []struct {
			Name   string `json:"name"`
			State  string `json:"state"`
			Reason string `json:"reason"`
		} `json:"modules"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &got))
	assert.Equal(t, "app.cli", got.Entry)

	states := map[string]string{}
	for _, m := range got.Modules {
		states[m.Name] = m.State
	}
	assert.Equal(t, "completed", states["app.cli"])
	assert.Equal(t, "completed", states["app.util"])
	assert.Equal(t, "unresolvable", states["os"])
}

func TestHandleModules_StateFilter(t *testing.T) {
	s, _ := newTestServer(t, sampleApp)

	result, _, err := s.handleModules(context.Background(), nil, ModulesInput{
		AnalyzeInput: AnalyzeInput{Entry: "app.cli"},
		State:        "unresolvable",
	})
	require.NoError(t, err)
	require.False(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, text, "os")
	assert.NotContains(t, text, "app.util")

	result, _, err = s.handleModules(context.Background(), nil, ModulesInput{
		AnalyzeInput: AnalyzeInput{Entry: "app.cli"},
		State:        "sleeping",
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandlers_SharedCache(t *testing.T) {
	c, err := cache.New(t.TempDir(), 24, true)
	require.NoError(t, err)
	s, _ := newTestServer(t, sampleApp, WithCache(c))

	for range 2 {
		result, _, err := s.handleCallGraph(context.Background(), nil, CallGraphInput{
			AnalyzeInput: AnalyzeInput{Entry: "app.cli"},
		})
		require.NoError(t, err)
		require.False(t, result.IsError)
	}

	stats, err := c.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Entries)
}

func TestFormatOutput(t *testing.T) {
	data := CalleesResult{Name: "m.f", Callees: []string{"m.g"}, OutDegree: 1}

	tests := []struct {
		format output.Format
		want   string
	}{
		{output.FormatTOON, "name: m.f"},
		{output.FormatJSON, `"name": "m.f"`},
		{output.FormatMarkdown, "```\n"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			out, err := formatOutput(data, tt.format)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestGetFormat(t *testing.T) {
	assert.Equal(t, output.FormatJSON, getFormat(AnalyzeInput{Format: "json"}))
	assert.Equal(t, output.FormatMarkdown, getFormat(AnalyzeInput{Format: "md"}))
	assert.Equal(t, output.FormatTOON, getFormat(AnalyzeInput{}))
}

func TestToolDescriptions(t *testing.T) {
	for name, desc := range map[string]string{
		"callgraph": describeCallGraph(),
		"callees":   describeCallees(),
		"modules":   describeModules(),
	} {
		t.Run(name, func(t *testing.T) {
			assert.Contains(t, desc, "USE WHEN:")
			assert.Contains(t, desc, "INTERPRETING RESULTS:")
			assert.Contains(t, desc, "METRICS RETURNED:")
		})
	}
}

func TestParseFrontmatter(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantDesc string
		wantBody string
	}{
		{"with frontmatter", "---\ndescription: Trace it\n---\nBody text\n", "Trace it", "Body text\n"},
		{"blank line after", "---\ndescription: x\n---\n\nBody\n", "x", "Body\n"},
		{"no frontmatter", "Just a body\n", "", "Just a body\n"},
		{"unterminated", "---\ndescription: x\nBody\n", "", "---\ndescription: x\nBody\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, body := parseFrontmatter([]byte(tt.content))
			assert.Equal(t, tt.wantDesc, desc)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestPromptFiles(t *testing.T) {
	entries, err := promptFiles.ReadDir("prompts")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for _, e := range entries {
		content, err := promptFiles.ReadFile("prompts/" + e.Name())
		require.NoError(t, err)
		desc, body := parseFrontmatter(content)
		assert.NotEmpty(t, desc, e.Name())
		assert.NotEmpty(t, body, e.Name())
	}
}

func TestMakePromptHandler(t *testing.T) {
	handler := makePromptHandler("desc", "body")
	result, err := handler(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "desc", result.Description)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "body", result.Messages[0].Content.(*mcp.TextContent).Text)
}

func TestGenerateManifest(t *testing.T) {
	data, err := GenerateManifest("1.2.3")
	require.NoError(t, err)

	var m Manifest
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "io.github.panbanda/howitworks", m.Name)
	assert.Equal(t, "1.2.3", m.Version)
	require.Len(t, m.Packages, 1)
	assert.Equal(t, "ghcr.io/panbanda/howitworks:1.2.3", m.Packages[0].Identifier)
	assert.Equal(t, "stdio", m.Packages[0].Transport.Type)

	data, err = GenerateManifest("")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version": "0.0.0"`)
}
