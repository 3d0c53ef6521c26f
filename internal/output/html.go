package output

import (
	"html/template"
	"io"
	"math"
	"strings"

	"github.com/panbanda/howitworks/pkg/analyzer/graph"
)

const (
	baseNodeSize = 5.0
	loosen       = 2.0
)

// nodeColors is matched in order against node names; the first keyword
// contained in the name wins.
var nodeColors = []struct {
	keyword string
	color   string
}{
	{"menus", "red"},
	{"loader", "purple"},
	{"forms", "darkblue"},
	{"popups", "blue"},
}

const defaultNodeColor = "black"

// NodeColor returns the display color for a node name.
func NodeColor(name string) string {
	for _, c := range nodeColors {
		if strings.Contains(name, c.keyword) {
			return c.color
		}
	}
	return defaultNodeColor
}

type htmlNode struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Size  float64 `json:"size"`
	Mass  float64 `json:"mass"`
	Color string  `json:"color"`
}

type htmlEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type htmlPage struct {
	Title string
	Nodes []htmlNode
	Edges []htmlEdge
}

// htmlNodes derives radius and physics mass from each node's size
// (1 + in-degree).
func htmlNodes(g *graph.CallGraph) []htmlNode {
	sizes := g.Sizes()
	nodes := make([]htmlNode, 0, g.NodeCount())
	for _, n := range g.Nodes() {
		size := float64(sizes[n])
		nodes = append(nodes, htmlNode{
			ID:    n,
			Label: n,
			Size:  baseNodeSize * math.Sqrt(size),
			Mass:  size / (loosen * baseNodeSize),
			Color: NodeColor(n),
		})
	}
	return nodes
}

var pageTemplate = template.Must(template.New("callgraph").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script src="https://unpkg.com/vis-network/standalone/umd/vis-network.min.js"></script>
<style>
  body { margin: 0; font-family: sans-serif; }
  #graph { width: 1200px; height: 800px; border: 1px solid lightgray; }
</style>
</head>
<body>
<h3>{{.Title}}</h3>
<div id="graph"></div>
<script>
  var nodes = new vis.DataSet({{.Nodes}});
  var edges = new vis.DataSet({{.Edges}});
  var network = new vis.Network(document.getElementById("graph"), {nodes: nodes, edges: edges}, {
    nodes: {shape: "dot"},
    edges: {arrows: "to"},
    physics: {solver: "forceAtlas2Based"},
    configure: {filter: "physics"}
  });
</script>
</body>
</html>
`))

// WriteHTML writes g as a standalone interactive vis-network page.
func WriteHTML(w io.Writer, g *graph.CallGraph, title string) error {
	if title == "" {
		title = "Call Graph"
	}
	page := htmlPage{Title: title, Nodes: htmlNodes(g)}
	for _, e := range g.Edges() {
		page.Edges = append(page.Edges, htmlEdge{From: e.From, To: e.To})
	}
	if page.Edges == nil {
		page.Edges = []htmlEdge{}
	}
	return pageTemplate.Execute(w, page)
}
