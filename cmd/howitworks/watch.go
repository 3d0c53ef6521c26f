package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/howitworks/internal/output"
	"github.com/panbanda/howitworks/internal/service/analysis"
	"github.com/panbanda/howitworks/pkg/analyzer/callgraph"
	"github.com/panbanda/howitworks/pkg/watch"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Re-extract the call graph whenever a Python file changes",
		ArgsUsage: "<module.name | path/to/file.py>",
		Description: `Analyzes once, then watches the root for .py changes and analyzes again
after edits settle. The graph is rewritten only when it changed.

Example:
  howitworks -f html -o graph.html watch app.main`,
		Flags: append(analysisFlags(),
			&cli.DurationFlag{
				Name:  "debounce",
				Value: watch.DefaultDebounce,
				Usage: "Wait this long after the last change before analyzing",
			},
		),
		Action: runWatchCmd,
	}
}

func runWatchCmd(c *cli.Context) error {
	entry, err := requireArg(c, "entry point")
	if err != nil {
		return err
	}
	cfg, _, err := loadConfig(c)
	if err != nil {
		return err
	}
	svc, err := newService(c, cfg)
	if err != nil {
		return err
	}
	root, err := svc.Root()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	entry = entryArg(entry)
	status := statusFormatter(c.App.ErrWriter)
	var last *analysis.Report
	rerun := watch.NewRerunner(func() (*callgraph.Result, error) {
		report, err := svc.Analyze(ctx, analysis.Request{Entry: entry, NoCache: true})
		if err != nil {
			return nil, err
		}
		last = report
		return report.Result, nil
	})

	emit := func() error {
		_, err := rerun.Run()
		switch {
		case errors.Is(err, watch.ErrUnchanged):
			status.Warning("Call graph unchanged")
			return nil
		case err != nil:
			status.Error("Analysis failed: %v", err)
			return err
		}

		out, err := newOutput(c, cfg)
		if err != nil {
			return err
		}
		defer out.Close()
		if err := out.WriteGraph(last.Graph, output.GraphOptions{Title: last.Result.Entry, Removed: last.Removed}); err != nil {
			return err
		}
		status.Success("Call graph updated: %d nodes, %d edges",
			last.Graph.NodeCount(), last.Graph.EdgeCount())
		return nil
	}

	// The entry point must be analyzable before watching starts.
	if err := emit(); err != nil {
		return err
	}

	watcher, err := watch.NewWatcher(root, cfg, c.Duration("debounce"))
	if err != nil {
		return err
	}
	defer watcher.Stop()
	watcher.SetOutput(c.App.ErrWriter)
	watcher.SetCallback(func(paths []string) {
		status.Info("%d file(s) changed", len(paths))
		_ = emit()
	})

	if err := watcher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
