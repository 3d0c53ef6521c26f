package graph

import (
	"cmp"
	"slices"

	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/topo"
)

// NodeMetric holds computed metrics for a single node.
type NodeMetric struct {
	Name      string  `json:"name" toon:"name"`
	PageRank  float64 `json:"pagerank" toon:"pagerank"`
	InDegree  int     `json:"in_degree" toon:"in_degree"`
	OutDegree int     `json:"out_degree" toon:"out_degree"`
}

// Summary provides aggregate graph statistics.
type Summary struct {
	TotalNodes int     `json:"total_nodes" toon:"total_nodes"`
	TotalEdges int     `json:"total_edges" toon:"total_edges"`
	AvgDegree  float64 `json:"avg_degree" toon:"avg_degree"`
	Density    float64 `json:"density" toon:"density"`
	SelfLoops  int     `json:"self_loops" toon:"self_loops"`
	CycleCount int     `json:"cycle_count" toon:"cycle_count"`
	IsCyclic   bool    `json:"is_cyclic" toon:"is_cyclic"`
}

// Metrics represents ranking and cycle information for a call graph.
type Metrics struct {
	Nodes   []NodeMetric `json:"nodes" toon:"nodes"`
	Cycles  [][]string   `json:"cycles,omitempty" toon:"cycles,omitempty"`
	Summary Summary      `json:"summary" toon:"summary"`
}

// CalculateMetrics ranks nodes by PageRank (highest first) and finds
// recursion: strongly connected components with more than one node plus
// direct self-calls.
func CalculateMetrics(g *CallGraph) *Metrics {
	m := &Metrics{Nodes: make([]NodeMetric, 0, g.NodeCount())}
	n := g.NodeCount()
	m.Summary.TotalNodes = n
	m.Summary.TotalEdges = g.EdgeCount()
	if n == 0 {
		return m
	}

	m.Summary.AvgDegree = float64(g.EdgeCount()) / float64(n)
	if n > 1 {
		m.Summary.Density = float64(g.EdgeCount()) / float64(n*(n-1))
	}

	ranks := network.PageRank(g.directed, 0.85, 1e-6)
	for i, name := range g.names {
		m.Nodes = append(m.Nodes, NodeMetric{
			Name:      name,
			PageRank:  ranks[int64(i)],
			InDegree:  g.InDegree(name),
			OutDegree: g.OutDegree(name),
		})
	}
	slices.SortStableFunc(m.Nodes, func(a, b NodeMetric) int {
		return cmp.Compare(b.PageRank, a.PageRank)
	})

	m.Cycles = DetectCycles(g)
	m.Summary.SelfLoops = len(g.selfLoops)
	m.Summary.CycleCount = len(m.Cycles)
	m.Summary.IsCyclic = len(m.Cycles) > 0
	return m
}

// DetectCycles uses gonum's Tarjan SCC to find mutually recursive groups,
// then appends self-recursive nodes as single-node cycles. Members of each
// cycle are in node insertion order.
func DetectCycles(g *CallGraph) [][]string {
	var cycles [][]string
	for _, scc := range topo.TarjanSCC(g.directed) {
		if len(scc) < 2 {
			continue
		}
		ids := make([]int64, 0, len(scc))
		for _, node := range scc {
			ids = append(ids, node.ID())
		}
		slices.Sort(ids)
		names := make([]string, 0, len(ids))
		for _, id := range ids {
			names = append(names, g.names[id])
		}
		cycles = append(cycles, names)
	}
	slices.SortFunc(cycles, func(a, b []string) int {
		return cmp.Compare(g.ids[a[0]], g.ids[b[0]])
	})

	for _, n := range g.SelfLoops() {
		cycles = append(cycles, []string{n})
	}
	return cycles
}
