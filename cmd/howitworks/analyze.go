package main

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/howitworks/internal/output"
	"github.com/panbanda/howitworks/internal/progress"
	"github.com/panbanda/howitworks/internal/service/analysis"
	scannersvc "github.com/panbanda/howitworks/internal/service/scanner"
	"github.com/panbanda/howitworks/pkg/analyzer/callgraph"
	"github.com/panbanda/howitworks/pkg/analyzer/graph"
	"github.com/panbanda/howitworks/pkg/config"
)

func analyzeCmd() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Aliases:   []string{"a"},
		Usage:     "Extract the call graph reachable from an entry point",
		ArgsUsage: "<module.name | path/to/file.py>",
		Description: `Starts at the entry module, follows every import that resolves to a
source file under the root or a search path, and renders the calls found.
Nodes with at least --prune-threshold callers are removed before rendering.

Examples:
  howitworks analyze app.main
  howitworks analyze --dry-run app.main
  howitworks -f html -o graph.html analyze --root src app/main.py
  howitworks -f text analyze --metrics --prune-threshold 0 app.main`,
		Flags: append(analysisFlags(),
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "Include PageRank, degrees and recursion cycles (text, toon)",
			},
			&cli.BoolFlag{
				Name:  "unpruned",
				Usage: "Render the full graph, ignoring the prune threshold",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Analyze and report counts without rendering anything",
			},
		),
		Action: runAnalyzeCmd,
	}
}

func runAnalyzeCmd(c *cli.Context) error {
	entry, err := requireArg(c, "entry point")
	if err != nil {
		return err
	}
	cfg, _, err := loadConfig(c)
	if err != nil {
		return err
	}

	report, err := runAnalysis(c, cfg, entry)
	if err != nil {
		return err
	}
	if c.Bool("dry-run") {
		statusFormatter(c.App.ErrWriter).Info("Dry run: %d modules, %d calls, %d nodes, %d edges (%d pruned)",
			len(report.Result.Modules), len(report.Result.Calls),
			report.Graph.NodeCount(), report.Graph.EdgeCount(), len(report.Removed))
		return nil
	}

	out, err := newOutput(c, cfg)
	if err != nil {
		return err
	}
	defer out.Close()

	g := report.Graph
	opts := output.GraphOptions{Title: report.Result.Entry, Removed: report.Removed}
	if c.Bool("unpruned") {
		g = report.Full
		opts.Removed = nil
	}
	if c.Bool("metrics") {
		opts.Metrics = graph.CalculateMetrics(g)
	}
	return out.WriteGraph(g, opts)
}

// runAnalysis runs one analysis with a spinner that follows module visits.
func runAnalysis(c *cli.Context, cfg *config.Config, entry string) (*analysis.Report, error) {
	svc, err := newService(c, cfg)
	if err != nil {
		return nil, err
	}

	req := analysis.Request{Entry: entryArg(entry), NoCache: c.Bool("no-cache")}
	var tracker *progress.Tracker
	if showProgress(c, cfg) {
		tracker = progress.NewSpinner("Analyzing")
		req.OnVisit = func(m *callgraph.Module) { tracker.Visit(m.Name) }
	}

	report, err := svc.Analyze(c.Context, req)
	if tracker != nil {
		if err != nil {
			tracker.FinishError(err)
		} else {
			tracker.FinishSuccess()
		}
	}
	return report, err
}

func modulesCmd() *cli.Command {
	return &cli.Command{
		Name:      "modules",
		Usage:     "List every module referenced from an entry point and how it resolved",
		ArgsUsage: "<module.name | path/to/file.py>",
		Flags: append(analysisFlags(),
			&cli.BoolFlag{
				Name:  "unresolved",
				Usage: "Only list modules that were not traversed",
			},
		),
		Action: runModulesCmd,
	}
}

func runModulesCmd(c *cli.Context) error {
	entry, err := requireArg(c, "entry point")
	if err != nil {
		return err
	}
	cfg, _, err := loadConfig(c)
	if err != nil {
		return err
	}
	report, err := runAnalysis(c, cfg, entry)
	if err != nil {
		return err
	}

	mods := report.Result.Modules
	if c.Bool("unresolved") {
		mods = nil
		for _, m := range report.Result.Modules {
			if !m.Visited() {
				mods = append(mods, m)
			}
		}
	}

	out, err := newOutput(c, cfg)
	if err != nil {
		return err
	}
	defer out.Close()
	return out.WriteTable(output.ModulesTable(mods, out.Colored()))
}

func renderCmd() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Prune and render a saved JSON adjacency graph without analyzing",
		ArgsUsage: "<graph.json>",
		Description: `Reads a graph written by "howitworks -f json analyze" (or any JSON object
mapping node names to arrays of target names), prunes hubs and renders it.

Example:
  howitworks -f html -o graph.html render graph.json`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "prune-threshold",
				Usage: "Remove nodes with at least this many callers (0 disables pruning)",
			},
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "Include PageRank, degrees and recursion cycles (text, toon)",
			},
		},
		Action: runRenderCmd,
	}
}

func runRenderCmd(c *cli.Context) error {
	path, err := requireArg(c, "graph file")
	if err != nil {
		return err
	}
	cfg, _, err := loadConfig(c)
	if err != nil {
		return err
	}

	report, err := analysis.New(analysis.WithConfig(cfg)).Render(path)
	if err != nil {
		return err
	}

	out, err := newOutput(c, cfg)
	if err != nil {
		return err
	}
	defer out.Close()

	opts := output.GraphOptions{
		Title:   filepath.Base(path),
		Removed: report.Removed,
	}
	if c.Bool("metrics") {
		opts.Metrics = graph.CalculateMetrics(report.Graph)
	}
	return out.WriteGraph(report.Graph, opts)
}

func entriesCmd() *cli.Command {
	return &cli.Command{
		Name:      "entries",
		Usage:     "Find modules that look like program entry points",
		ArgsUsage: "[root]",
		Description: `Lists modules with a top-level if __name__ == "__main__": block and
package __main__.py files. Any of them can be passed to analyze.`,
		Action: runEntriesCmd,
	}
}

func runEntriesCmd(c *cli.Context) error {
	cfg, _, err := loadConfig(c)
	if err != nil {
		return err
	}
	root := cfg.Analysis.Root
	if c.NArg() > 0 {
		root = c.Args().First()
	}
	entries, err := scannersvc.New(scannersvc.WithConfig(cfg)).FindEntries(root)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		statusFormatter(c.App.ErrWriter).Warning("No entry points found")
		return nil
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	if resolved, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = resolved
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		path := e.Path
		if rel, err := filepath.Rel(absRoot, e.Path); err == nil {
			path = rel
		}
		kind := "__main__ guard"
		if e.Main {
			kind = "package __main__"
		}
		rows = append(rows, []string{e.Module, path, kind})
	}

	out, err := newOutput(c, cfg)
	if err != nil {
		return err
	}
	defer out.Close()
	table := output.NewTable("Entry Points", []string{"Module", "Path", "Kind"}, rows,
		[]string{fmt.Sprintf("%d entries", len(entries)), "", ""}, entries)
	return out.WriteTable(table)
}
