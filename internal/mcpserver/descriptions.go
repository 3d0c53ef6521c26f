package mcpserver

// Tool descriptions with interpretation guidance for LLMs.

func describeCallGraph() string {
	return `Extracts the static call graph reachable from a Python entry point.

USE WHEN:
- Explaining how a program works starting from its main module
- Finding which functions a feature actually reaches
- Locating recursion (cycles) and heavily shared helpers

INTERPRETING RESULTS:
- Each edge is context -> target; context is the module, class or function whose body contains the call
- Targets that are not qualified by a project module (print, len, menu.show) were not resolved to a definition
- Functions appear only when something calls them; unreferenced definitions are absent
- Hubs with in-degree at or above prune_threshold are removed and listed under removed
- Cycles list mutually recursive functions; a single-node cycle is direct recursion

METRICS RETURNED:
- nodes, edges (in discovery order), removed hubs
- metrics (when include_metrics): PageRank, in/out degree, cycles, density`
}

func describeCallees() string {
	return `Lists the direct callees (or callers) of one qualified name in the call graph.

USE WHEN:
- Drilling into a single function after reviewing the full graph
- Answering "what does X call?" or "who calls X?" without the whole graph

INTERPRETING RESULTS:
- Names are fully qualified (package.module.Class.method)
- The lookup runs on the unpruned graph so hubs are still visible
- An empty list means the name was reached but makes no calls, or nothing calls it

METRICS RETURNED:
- name, callees or callers, in_degree, out_degree`
}

func describeModules() string {
	return `Lists every module referenced while analyzing an entry point, with its resolution state.

USE WHEN:
- Checking why a call target was not expanded
- Finding imports that did not resolve (builtins, native extensions, missing files)
- Spotting low-confidence resolutions where trailing name segments were stripped

INTERPRETING RESULTS:
- completed: source traversed; failed: unreadable or unparsable
- unresolvable: reason is builtin, native-extension, not-found or entry-marker
- depth-limited: beyond max_depth from the entry
- stripped: requested names that only resolved after dropping segments

METRICS RETURNED:
- name, path, state, reason, depth, stripped, digest`
}
