package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	toon "github.com/toon-format/toon-go"

	"github.com/panbanda/howitworks/pkg/analyzer/callgraph"
	"github.com/panbanda/howitworks/pkg/analyzer/graph"
)

// GraphFormat selects a call graph renderer.
type GraphFormat string

const (
	GraphDOT     GraphFormat = "dot"
	GraphHTML    GraphFormat = "html"
	GraphJSON    GraphFormat = "json"
	GraphMermaid GraphFormat = "mermaid"
	GraphTOON    GraphFormat = "toon"
	GraphText    GraphFormat = "text"
)

// GraphFormats lists every supported renderer.
var GraphFormats = []GraphFormat{GraphDOT, GraphHTML, GraphJSON, GraphMermaid, GraphTOON, GraphText}

// ParseGraphFormat converts a string to a GraphFormat.
func ParseGraphFormat(s string) (GraphFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dot", "gv", "graphviz":
		return GraphDOT, nil
	case "html":
		return GraphHTML, nil
	case "json":
		return GraphJSON, nil
	case "mermaid", "mmd":
		return GraphMermaid, nil
	case "toon":
		return GraphTOON, nil
	case "text", "txt":
		return GraphText, nil
	}
	return "", fmt.Errorf("unknown graph format %q (want one of %s)", s, joinFormats())
}

func joinFormats() string {
	names := make([]string, len(GraphFormats))
	for i, f := range GraphFormats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// GraphOptions tunes graph rendering.
type GraphOptions struct {
	Title   string
	Colored bool
	// Removed lists hub nodes dropped by pruning, reported by text output.
	Removed []string
	// Metrics adds PageRank and cycle tables to text output.
	Metrics *graph.Metrics
}

// RenderGraph writes g in the requested format.
func RenderGraph(w io.Writer, g *graph.CallGraph, format GraphFormat, opts GraphOptions) error {
	switch format {
	case GraphDOT:
		return WriteDOT(w, g, opts.Title)
	case GraphHTML:
		return WriteHTML(w, g, opts.Title)
	case GraphJSON:
		return graph.WriteAdjacency(w, g)
	case GraphMermaid:
		_, err := io.WriteString(w, g.ToMermaid())
		return err
	case GraphTOON:
		out, err := toon.Marshal(graphData(g, opts), toon.WithIndent(2))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	case GraphText:
		return GraphReport(g, opts).RenderText(w, opts.Colored)
	}
	return fmt.Errorf("unknown graph format %q", format)
}

// GraphData is the serializable form of a call graph.
type GraphData struct {
	Nodes   []string       `json:"nodes" toon:"nodes"`
	Edges   []graph.Edge   `json:"edges" toon:"edges"`
	Removed []string       `json:"removed,omitempty" toon:"removed,omitempty"`
	Metrics *graph.Metrics `json:"metrics,omitempty" toon:"metrics,omitempty"`
}

func graphData(g *graph.CallGraph, opts GraphOptions) GraphData {
	return GraphData{
		Nodes:   g.Nodes(),
		Edges:   g.Edges(),
		Removed: opts.Removed,
		Metrics: opts.Metrics,
	}
}

// WriteDOT writes g as a Graphviz digraph. Nodes without edges are listed
// on their own so they are not lost.
func WriteDOT(w io.Writer, g *graph.CallGraph, name string) error {
	if name == "" {
		name = "callgraph"
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "digraph %s {\n", strconv.Quote(name))

	for _, n := range g.Nodes() {
		if g.OutDegree(n) == 0 && g.InDegree(n) == 0 {
			fmt.Fprintf(bw, "  %s;\n", strconv.Quote(n))
		}
	}
	for _, e := range g.Edges() {
		fmt.Fprintf(bw, "  %s -> %s;\n", strconv.Quote(e.From), strconv.Quote(e.To))
	}

	bw.WriteString("}\n")
	return bw.Flush()
}

// GraphReport summarizes g as text tables.
func GraphReport(g *graph.CallGraph, opts GraphOptions) *Report {
	title := opts.Title
	if title == "" {
		title = "Call Graph"
	}

	summary := &Section{
		Title: "Summary",
		Content: fmt.Sprintf("Nodes: %d\nEdges: %d\nPruned hubs: %d",
			g.NodeCount(), g.EdgeCount(), len(opts.Removed)),
	}
	if len(opts.Removed) > 0 {
		summary.Sections = append(summary.Sections, Section{
			Title:   "Pruned",
			Content: strings.Join(opts.Removed, "\n"),
		})
	}

	rows := make([][]string, 0, g.NodeCount())
	for _, n := range g.Nodes() {
		rows = append(rows, []string{
			n,
			strconv.Itoa(g.InDegree(n)),
			strconv.Itoa(g.OutDegree(n)),
			strings.Join(g.Successors(n), ", "),
		})
	}
	edges := NewTable("Nodes", []string{"Node", "Callers", "Callees", "Calls"}, rows,
		[]string{"", "", "", fmt.Sprintf("%d edges", g.EdgeCount())}, graphData(g, opts))

	report := &Report{
		Title:    title,
		Sections: []Renderable{summary, edges},
		Data:     graphData(g, opts),
	}
	if opts.Metrics != nil {
		report.Sections = append(report.Sections, MetricsTable(opts.Metrics))
	}
	return report
}

// MetricsTable lists nodes by PageRank with their degrees and the detected
// recursion cycles in the footer.
func MetricsTable(m *graph.Metrics) *Table {
	rows := make([][]string, 0, len(m.Nodes))
	for _, n := range m.Nodes {
		rows = append(rows, []string{
			n.Name,
			strconv.FormatFloat(n.PageRank, 'f', 4, 64),
			strconv.Itoa(n.InDegree),
			strconv.Itoa(n.OutDegree),
		})
	}
	footer := []string{fmt.Sprintf("%d cycles", m.Summary.CycleCount), "", "", ""}
	return NewTable("Metrics", []string{"Node", "PageRank", "In", "Out"}, rows, footer, m)
}

// ModulesTable lists the module records of an analysis.
func ModulesTable(mods []*callgraph.Module, colored bool) *Table {
	rows := make([][]string, 0, len(mods))
	var visited, lowConfidence int
	for _, m := range mods {
		state := m.State.String()
		if m.Visited() {
			visited++
		}
		resolution := "exact"
		if m.LowConfidence() {
			lowConfidence++
			resolution = "low-confidence"
		}
		reason := string(m.Reason)
		if m.Error != "" {
			reason = m.Error
		}
		if colored {
			state = StateColor(state, state)
			if m.LowConfidence() {
				resolution = StateColor(resolution, resolution)
			}
		}
		rows = append(rows, []string{
			m.Name,
			state,
			strconv.Itoa(m.Depth),
			strconv.Itoa(len(m.Calls)),
			resolution,
			reason,
		})
	}
	footer := []string{
		fmt.Sprintf("%d modules", len(mods)),
		fmt.Sprintf("%d visited", visited),
		"", "",
		fmt.Sprintf("%d low-confidence", lowConfidence),
		"",
	}
	return NewTable("Modules", []string{"Module", "State", "Depth", "Calls", "Resolution", "Reason"},
		rows, footer, mods)
}
