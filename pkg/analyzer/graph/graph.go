// Package graph models call graphs: construction from call edges,
// hub suppression, metrics, and the JSON adjacency-map format.
package graph

import (
	"gonum.org/v1/gonum/graph/simple"

	"github.com/panbanda/howitworks/pkg/analyzer/callgraph"
)

// DefaultPruneThreshold is the in-degree at which a node counts as a hub.
const DefaultPruneThreshold = 5

// Edge is a directed edge between two named nodes.
type Edge struct {
	From string `json:"from" toon:"from"`
	To   string `json:"to" toon:"to"`
}

// CallGraph is a directed graph over node names. Nodes and each node's
// successors keep insertion order; repeated edges are no-ops.
//
// Structure queries go through a gonum directed graph. gonum rejects
// self-edges, so those are tracked beside it.
type CallGraph struct {
	directed  *simple.DirectedGraph
	ids       map[string]int64
	names     []string
	out       [][]int64
	selfLoops map[int64]bool
	edges     int
}

// New creates an empty graph.
func New() *CallGraph {
	return &CallGraph{
		directed:  simple.NewDirectedGraph(),
		ids:       make(map[string]int64),
		selfLoops: make(map[int64]bool),
	}
}

// Build creates a graph with one edge per call.
func Build(calls []callgraph.Call) *CallGraph {
	g := New()
	for _, c := range calls {
		g.AddEdge(c.Context, c.Target)
	}
	return g
}

// AddNode inserts name if absent and returns its id.
func (g *CallGraph) AddNode(name string) int64 {
	if id, ok := g.ids[name]; ok {
		return id
	}
	id := int64(len(g.names))
	g.ids[name] = id
	g.names = append(g.names, name)
	g.out = append(g.out, nil)
	g.directed.AddNode(simple.Node(id))
	return id
}

// AddEdge inserts both endpoints and the edge between them.
func (g *CallGraph) AddEdge(from, to string) {
	f := g.AddNode(from)
	t := g.AddNode(to)
	if g.HasEdge(from, to) {
		return
	}

	if f == t {
		g.selfLoops[f] = true
	} else {
		g.directed.SetEdge(simple.Edge{F: simple.Node(f), T: simple.Node(t)})
	}
	g.out[f] = append(g.out[f], t)
	g.edges++
}

// HasNode reports whether name is a node.
func (g *CallGraph) HasNode(name string) bool {
	_, ok := g.ids[name]
	return ok
}

// HasEdge reports whether the edge from -> to exists.
func (g *CallGraph) HasEdge(from, to string) bool {
	f, ok := g.ids[from]
	if !ok {
		return false
	}
	t, ok := g.ids[to]
	if !ok {
		return false
	}
	if f == t {
		return g.selfLoops[f]
	}
	return g.directed.HasEdgeFromTo(f, t)
}

// Nodes returns node names in insertion order.
func (g *CallGraph) Nodes() []string {
	return append([]string(nil), g.names...)
}

// Successors returns the targets of name's outgoing edges in insertion order.
func (g *CallGraph) Successors(name string) []string {
	id, ok := g.ids[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.out[id]))
	for _, t := range g.out[id] {
		out = append(out, g.names[t])
	}
	return out
}

// Predecessors returns the distinct sources of edges into name, in node
// insertion order.
func (g *CallGraph) Predecessors(name string) []string {
	id, ok := g.ids[name]
	if !ok {
		return nil
	}
	var preds []string
	for i, n := range g.names {
		from := int64(i)
		if from == id {
			if g.selfLoops[id] {
				preds = append(preds, n)
			}
			continue
		}
		if g.directed.HasEdgeFromTo(from, id) {
			preds = append(preds, n)
		}
	}
	return preds
}

// Edges returns all edges grouped by source in insertion order.
func (g *CallGraph) Edges() []Edge {
	edges := make([]Edge, 0, g.edges)
	for f, targets := range g.out {
		for _, t := range targets {
			edges = append(edges, Edge{From: g.names[f], To: g.names[t]})
		}
	}
	return edges
}

// NodeCount returns the number of nodes.
func (g *CallGraph) NodeCount() int {
	return len(g.names)
}

// EdgeCount returns the number of distinct edges.
func (g *CallGraph) EdgeCount() int {
	return g.edges
}

// InDegree returns the number of distinct direct predecessors of name.
// A self-loop counts the node as its own predecessor.
func (g *CallGraph) InDegree(name string) int {
	id, ok := g.ids[name]
	if !ok {
		return 0
	}
	n := g.directed.To(id).Len()
	if g.selfLoops[id] {
		n++
	}
	return n
}

// OutDegree returns the number of distinct successors of name.
func (g *CallGraph) OutDegree(name string) int {
	id, ok := g.ids[name]
	if !ok {
		return 0
	}
	return len(g.out[id])
}

// InDegrees computes the in-degree of every node in one pass.
func (g *CallGraph) InDegrees() map[string]int {
	deg := make(map[string]int, len(g.names))
	for _, n := range g.names {
		deg[n] = 0
	}
	for _, targets := range g.out {
		for _, t := range targets {
			deg[g.names[t]]++
		}
	}
	return deg
}

// Sizes returns the rendering weight of each node: 1 + in-degree.
func (g *CallGraph) Sizes() map[string]int {
	sizes := g.InDegrees()
	for n := range sizes {
		sizes[n]++
	}
	return sizes
}

// SelfLoops returns nodes with an edge to themselves, in insertion order.
func (g *CallGraph) SelfLoops() []string {
	var out []string
	for i, n := range g.names {
		if g.selfLoops[int64(i)] {
			out = append(out, n)
		}
	}
	return out
}

// Adjacency returns the graph as an ordered adjacency list.
func (g *CallGraph) Adjacency() []AdjacencyEntry {
	entries := make([]AdjacencyEntry, 0, len(g.names))
	for _, n := range g.names {
		entries = append(entries, AdjacencyEntry{Node: n, Targets: g.Successors(n)})
	}
	return entries
}
