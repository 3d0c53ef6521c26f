package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/howitworks/internal/cache"
	"github.com/panbanda/howitworks/internal/logging"
	"github.com/panbanda/howitworks/internal/output"
	"github.com/panbanda/howitworks/internal/service/analysis"
	outputsvc "github.com/panbanda/howitworks/internal/service/output"
	"github.com/panbanda/howitworks/pkg/analyzer/callgraph"
	"github.com/panbanda/howitworks/pkg/config"
	"github.com/panbanda/howitworks/pkg/parser"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		color.Red("Error: %v", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps a command error to the process exit status: 2 when the
// entry point itself could not be analyzed, 1 for anything else.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, callgraph.ErrEntryPoint):
		return 2
	default:
		return 1
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "howitworks",
		Usage:   "Static call graph extraction for Python programs",
		Version: version,
		Description: `howitworks follows a Python program from its entry module through every
import it can resolve, records which function or module calls which name,
and renders the result as a graph. Heavily shared helpers are pruned so
the structure of the program stays readable.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"HOWITWORKS_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: dot, html, json, mermaid, toon, text (tables also accept markdown)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Disable caching",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Trace every module entered and left",
			},
			&cli.BoolFlag{
				Name:  "log-json",
				Usage: "Write logs as JSON",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Hide the progress spinner",
			},
		},
		Commands: []*cli.Command{
			analyzeCmd(),
			modulesCmd(),
			renderCmd(),
			entriesCmd(),
			watchCmd(),
			mcpCmd(),
			configCmd(),
			cacheCmd(),
		},
		// Errors are reported once by main with the mapped exit code.
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

// analysisFlags are shared by every command that runs an analysis.
func analysisFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "root",
			Usage: "Source root dotted module names resolve against",
		},
		&cli.StringSliceFlag{
			Name:  "search-path",
			Usage: "Additional directory searched after the root (repeatable)",
		},
		&cli.IntFlag{
			Name:  "max-depth",
			Usage: "Stop following imports this many hops from the entry (0 = unlimited)",
		},
		&cli.StringFlag{
			Name:  "ref",
			Usage: "Read sources from this git revision instead of the working tree",
		},
		&cli.IntFlag{
			Name:  "prune-threshold",
			Usage: "Remove nodes with at least this many callers (0 disables pruning)",
		},
	}
}

// loadConfig reads the config file named by --config, or the first one
// found in the working directory, then applies command-line overrides.
func loadConfig(c *cli.Context) (*config.Config, string, error) {
	cfg, source, err := loadConfigFile(c)
	if err != nil {
		return nil, "", err
	}

	if c.IsSet("root") {
		cfg.Analysis.Root = c.String("root")
	}
	if c.IsSet("search-path") {
		cfg.Analysis.SearchPaths = c.StringSlice("search-path")
	}
	if c.IsSet("max-depth") {
		cfg.Analysis.MaxDepth = c.Int("max-depth")
	}
	if c.IsSet("ref") {
		cfg.Analysis.Ref = c.String("ref")
	}
	if c.IsSet("prune-threshold") {
		cfg.Analysis.PruneThreshold = c.Int("prune-threshold")
	}
	if c.IsSet("format") {
		cfg.Output.Format = c.String("format")
	}
	if c.Bool("verbose") {
		cfg.Output.Verbose = true
	}
	if c.Bool("no-cache") {
		cfg.Cache.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, source, nil
}

func newLogger(c *cli.Context, cfg *config.Config) *slog.Logger {
	return logging.New(c.App.ErrWriter, logging.Options{
		Verbose: cfg.Output.Verbose,
		JSON:    c.Bool("log-json"),
	})
}

// cacheDir returns the result cache directory. A relative directory lives
// under the analysis root.
func cacheDir(cfg *config.Config) string {
	if filepath.IsAbs(cfg.Cache.Dir) {
		return cfg.Cache.Dir
	}
	return filepath.Join(cfg.Analysis.Root, cfg.Cache.Dir)
}

// openCache opens the result cache.
func openCache(cfg *config.Config) (*cache.Cache, error) {
	dir := cacheDir(cfg)
	c, err := cache.New(dir, cfg.Cache.TTL, cfg.Cache.Enabled)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", dir, err)
	}
	return c, nil
}

func newService(c *cli.Context, cfg *config.Config) (*analysis.Service, error) {
	opts := []analysis.Option{
		analysis.WithConfig(cfg),
		analysis.WithLogger(newLogger(c, cfg)),
	}
	if cfg.Cache.Enabled {
		ch, err := openCache(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, analysis.WithCache(ch))
	}
	return analysis.New(opts...), nil
}

func newOutput(c *cli.Context, cfg *config.Config) (*outputsvc.Service, error) {
	return outputsvc.New(
		outputsvc.WithFormat(cfg.Output.Format),
		outputsvc.WithWriter(c.App.Writer),
		outputsvc.WithColor(cfg.Output.Color && !color.NoColor),
		outputsvc.WithFile(c.String("output")),
	)
}

// statusFormatter writes colored status lines, plain when color is off.
func statusFormatter(w io.Writer) *output.Formatter {
	return output.NewWriterFormatter(output.FormatText, w, !color.NoColor)
}

func showProgress(c *cli.Context, cfg *config.Config) bool {
	return !c.Bool("quiet") && !cfg.Output.Verbose
}

// entryArg makes a relative .py argument absolute against the working
// directory, where the shell resolved it. Dotted names pass through.
func entryArg(entry string) string {
	if parser.IsPythonSource(entry) && !filepath.IsAbs(entry) {
		if abs, err := filepath.Abs(entry); err == nil {
			return abs
		}
	}
	return entry
}

func requireArg(c *cli.Context, name string) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("%s requires exactly one %s argument", c.Command.Name, name)
	}
	return c.Args().First(), nil
}
