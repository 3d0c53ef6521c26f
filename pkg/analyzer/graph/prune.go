package graph

// Prune removes hub nodes: every node whose in-degree, measured once on g,
// is at least threshold. All edges touching a removed node go with it.
// Nodes whose in-degree drops below the threshold as a result are not
// re-examined. A threshold <= 0 disables pruning.
//
// Prune returns a new graph and the removed node names in insertion order;
// g is not modified.
func Prune(g *CallGraph, threshold int) (*CallGraph, []string) {
	if threshold <= 0 {
		return g, nil
	}

	degrees := g.InDegrees()
	drop := make(map[string]bool)
	var removed []string
	for _, n := range g.names {
		if degrees[n] >= threshold {
			drop[n] = true
			removed = append(removed, n)
		}
	}
	if len(removed) == 0 {
		return g, nil
	}

	pruned := New()
	for _, n := range g.names {
		if !drop[n] {
			pruned.AddNode(n)
		}
	}
	for _, n := range g.names {
		if drop[n] {
			continue
		}
		for _, t := range g.Successors(n) {
			if !drop[t] {
				pruned.AddEdge(n, t)
			}
		}
	}
	return pruned, removed
}
