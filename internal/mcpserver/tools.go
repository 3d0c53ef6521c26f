package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	toon "github.com/toon-format/toon-go"

	"github.com/panbanda/howitworks/internal/output"
	"github.com/panbanda/howitworks/internal/service/analysis"
	"github.com/panbanda/howitworks/pkg/analyzer/callgraph"
	"github.com/panbanda/howitworks/pkg/analyzer/graph"
)

// AnalyzeInput is the base input for all tools.
type AnalyzeInput struct {
	Entry       string   `json:"entry" jsonschema:"Entry point: a dotted module name (app.main) or a path to a .py file, relative to root."`
	Root        string   `json:"root,omitempty" jsonschema:"Project root that dotted names resolve against. Defaults to the configured root."`
	SearchPaths []string `json:"search_paths,omitempty" jsonschema:"Extra directories searched after the root, in order."`
	MaxDepth    int      `json:"max_depth,omitempty" jsonschema:"Stop following imports this many hops from the entry. 0 means unlimited."`
	Ref         string   `json:"ref,omitempty" jsonschema:"Git revision to read sources from instead of the working tree."`
	Format      string   `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or markdown."`
}

// CallGraphInput adds graph options.
type CallGraphInput struct {
	AnalyzeInput
	PruneThreshold *int `json:"prune_threshold,omitempty" jsonschema:"Remove nodes with at least this many callers. Default 5, 0 disables pruning."`
	IncludeMetrics bool `json:"include_metrics,omitempty" jsonschema:"Include PageRank, degrees and recursion cycles."`
}

// CalleesInput names the node to inspect.
type CalleesInput struct {
	AnalyzeInput
	Name    string `json:"name" jsonschema:"Fully qualified name to look up (app.loader.load)."`
	Callers bool   `json:"callers,omitempty" jsonschema:"List callers instead of callees."`
}

// ModulesInput adds module filters.
type ModulesInput struct {
	AnalyzeInput
	State string `json:"state,omitempty" jsonschema:"Only list modules in this state: completed, failed, unresolvable or depth-limited."`
}

// CalleesResult is the neighborhood of one node.
type CalleesResult struct {
	Name      string   `json:"name" toon:"name"`
	Callees   []string `json:"callees,omitempty" toon:"callees,omitempty"`
	Callers   []string `json:"callers,omitempty" toon:"callers,omitempty"`
	InDegree  int      `json:"in_degree" toon:"in_degree"`
	OutDegree int      `json:"out_degree" toon:"out_degree"`
}

func getFormat(input AnalyzeInput) output.Format {
	switch input.Format {
	case "json":
		return output.FormatJSON
	case "markdown", "md":
		return output.FormatMarkdown
	default:
		return output.FormatTOON
	}
}

func formatOutput(data any, format output.Format) (string, error) {
	switch format {
	case output.FormatJSON:
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", err
		}
		return string(out), nil
	case output.FormatMarkdown:
		out, err := toon.Marshal(data, toon.WithIndent(2))
		if err != nil {
			return "", err
		}
		return "```\n" + string(out) + "\n```", nil
	default:
		out, err := toon.Marshal(data, toon.WithIndent(2))
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := formatOutput(data, format)
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

// service builds an analysis service for one tool call. Input fields
// override a copy of the server configuration.
func (s *Server) service(input AnalyzeInput, prune *int) *analysis.Service {
	cfg := *s.config
	cfg.Analysis.SearchPaths = append([]string(nil), s.config.Analysis.SearchPaths...)
	if input.Root != "" {
		cfg.Analysis.Root = input.Root
	}
	if len(input.SearchPaths) > 0 {
		cfg.Analysis.SearchPaths = input.SearchPaths
	}
	if input.MaxDepth > 0 {
		cfg.Analysis.MaxDepth = input.MaxDepth
	}
	if input.Ref != "" {
		cfg.Analysis.Ref = input.Ref
	}
	if prune != nil {
		cfg.Analysis.PruneThreshold = *prune
	}

	opts := []analysis.Option{analysis.WithConfig(&cfg)}
	if s.cache != nil {
		opts = append(opts, analysis.WithCache(s.cache))
	}
	return analysis.New(opts...)
}

func (s *Server) analyze(ctx context.Context, input AnalyzeInput, prune *int) (*analysis.Report, error) {
	return s.service(input, prune).Analyze(ctx, analysis.Request{Entry: input.Entry})
}

func (s *Server) handleCallGraph(ctx context.Context, req *mcp.CallToolRequest, input CallGraphInput) (*mcp.CallToolResult, any, error) {
	if input.Entry == "" {
		return toolError("entry is required")
	}
	report, err := s.analyze(ctx, input.AnalyzeInput, input.PruneThreshold)
	if err != nil {
		return toolError(err.Error())
	}

	data := output.GraphData{
		Nodes:   report.Graph.Nodes(),
		Edges:   report.Graph.Edges(),
		Removed: report.Removed,
	}
	if input.IncludeMetrics {
		data.Metrics = graph.CalculateMetrics(report.Graph)
	}
	return toolResult(data, getFormat(input.AnalyzeInput))
}

func (s *Server) handleCallees(ctx context.Context, req *mcp.CallToolRequest, input CalleesInput) (*mcp.CallToolResult, any, error) {
	if input.Entry == "" {
		return toolError("entry is required")
	}
	if input.Name == "" {
		return toolError("name is required")
	}
	report, err := s.analyze(ctx, input.AnalyzeInput, nil)
	if err != nil {
		return toolError(err.Error())
	}

	g := report.Full
	if !g.HasNode(input.Name) {
		return toolError("no call graph node named " + input.Name)
	}
	result := CalleesResult{
		Name:      input.Name,
		InDegree:  g.InDegree(input.Name),
		OutDegree: g.OutDegree(input.Name),
	}
	if input.Callers {
		result.Callers = g.Predecessors(input.Name)
	} else {
		result.Callees = g.Successors(input.Name)
	}
	return toolResult(result, getFormat(input.AnalyzeInput))
}

func (s *Server) handleModules(ctx context.Context, req *mcp.CallToolRequest, input ModulesInput) (*mcp.CallToolResult, any, error) {
	if input.Entry == "" {
		return toolError("entry is required")
	}
	var want callgraph.State
	if input.State != "" {
		if err := want.UnmarshalText([]byte(input.State)); err != nil {
			return toolError(err.Error())
		}
	}

	report, err := s.analyze(ctx, input.AnalyzeInput, nil)
	if err != nil {
		return toolError(err.Error())
	}

	mods := report.Result.Modules
	if input.State != "" {
		mods = make([]*callgraph.Module, 0, len(report.Result.Modules))
		for _, m := range report.Result.Modules {
			if m.State == want {
				mods = append(mods, m)
			}
		}
	}

	out := struct {
		Entry   string              `json:"entry" toon:"entry"`
		Modules []*callgraph.Module `json:"modules" toon:"modules"`
	}{report.Result.Entry, mods}
	return toolResult(out, getFormat(input.AnalyzeInput))
}
