// Package analysis wires the locator, session, cache and graph stages into
// the single operation shared by the CLI, the watcher and the MCP server.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/panbanda/howitworks/internal/cache"
	"github.com/panbanda/howitworks/internal/locator"
	"github.com/panbanda/howitworks/internal/vcs"
	"github.com/panbanda/howitworks/pkg/analyzer/callgraph"
	"github.com/panbanda/howitworks/pkg/analyzer/graph"
	"github.com/panbanda/howitworks/pkg/config"
	"github.com/panbanda/howitworks/pkg/parser"
	"github.com/panbanda/howitworks/pkg/source"
)

// Service orchestrates call graph analysis.
type Service struct {
	config *config.Config
	opener vcs.Opener
	cache  *cache.Cache
	logger *slog.Logger
	src    source.ContentSource
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets the configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

// WithOpener sets the VCS opener used for analysis at a git revision.
func WithOpener(opener vcs.Opener) Option {
	return func(s *Service) {
		s.opener = opener
	}
}

// WithCache enables result caching.
func WithCache(c *cache.Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithLogger sets the logger that receives the module trace.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithSource overrides where module files are read from. It takes
// precedence over the configured git revision.
func WithSource(src source.ContentSource) Option {
	return func(s *Service) {
		s.src = src
	}
}

// New creates a new analysis service.
func New(opts ...Option) *Service {
	s := &Service{
		config: config.DefaultConfig(),
		opener: vcs.DefaultOpener(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the configuration in use.
func (s *Service) Config() *config.Config {
	return s.config
}

// Request describes one analysis.
type Request struct {
	// Entry is a dotted module name or a .py path. Relative paths are
	// taken from the analysis root.
	Entry string
	// OnVisit is called as each module record settles. It is not called
	// for results served from the cache.
	OnVisit func(*callgraph.Module)
	NoCache bool
}

// Report is the outcome of an analysis.
type Report struct {
	Result *callgraph.Result
	// Full is the graph of every extracted call.
	Full *graph.CallGraph
	// Graph is Full with hubs pruned.
	Graph   *graph.CallGraph
	Removed []string
	Cached  bool
}

// Root returns the absolute analysis root.
func (s *Service) Root() (string, error) {
	root := s.config.Analysis.Root
	if root == "" {
		root = "."
	}
	return filepath.Abs(root)
}

// Locator builds the module locator for the configured root, search paths
// and revision.
func (s *Service) Locator() (*locator.Locator, error) {
	root, err := s.Root()
	if err != nil {
		return nil, err
	}

	src, err := s.source(root)
	if err != nil {
		return nil, err
	}

	opts := []locator.Option{locator.WithSource(src)}
	for _, p := range s.config.Analysis.SearchPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		opts = append(opts, locator.WithSearchPaths(abs))
	}
	if len(s.config.Analysis.Builtins) > 0 {
		opts = append(opts, locator.WithBuiltins(s.config.Analysis.Builtins...))
	}
	return locator.New(root, opts...), nil
}

func (s *Service) source(root string) (source.ContentSource, error) {
	if s.src != nil {
		return s.src, nil
	}
	ref := s.config.Analysis.Ref
	if ref == "" {
		return source.NewFilesystem(), nil
	}
	repo, err := s.opener.PlainOpenWithDetect(root)
	if err != nil {
		return nil, fmt.Errorf("open repository at %s: %w", root, err)
	}
	tree, err := repo.TreeAt(ref)
	if err != nil {
		return nil, err
	}
	return source.NewTree(tree, repo.Root()), nil
}

// Analyze runs one fresh session over req.Entry, then builds and prunes
// the call graph. Cached results are reused when every visited module is
// unchanged.
func (s *Service) Analyze(ctx context.Context, req Request) (*Report, error) {
	loc, err := s.Locator()
	if err != nil {
		return nil, err
	}

	entry := req.Entry
	if parser.IsPythonSource(entry) && !filepath.IsAbs(entry) {
		root, err := s.Root()
		if err != nil {
			return nil, err
		}
		entry = filepath.Join(root, entry)
	}

	key := s.cacheKey(loc, entry)
	useCache := s.cache != nil && !req.NoCache
	if useCache {
		if res, ok := s.cache.GetResult(ctx, key, loc); ok {
			s.logger.Debug("cache hit", "entry", entry, "modules", len(res.Modules))
			report := s.report(res)
			report.Cached = true
			return report, nil
		}
	}

	opts := []callgraph.Option{
		callgraph.WithMaxDepth(s.config.Analysis.MaxDepth),
		callgraph.WithLogger(s.logger),
	}
	if req.OnVisit != nil {
		opts = append(opts, callgraph.WithVisitHook(req.OnVisit))
	}
	session := callgraph.New(loc, opts...)
	defer session.Close()

	res, err := session.Analyze(entry)
	if err != nil {
		return nil, err
	}

	if useCache {
		if err := s.cache.PutResult(key, res); err != nil {
			s.logger.Warn("cache write failed", "error", err)
		}
	}
	return s.report(res), nil
}

func (s *Service) cacheKey(loc *locator.Locator, entry string) string {
	roots := loc.Roots()
	return cache.Key(entry, roots[0], s.config.Analysis.Ref, s.config.Analysis.MaxDepth, roots[1:])
}

func (s *Service) report(res *callgraph.Result) *Report {
	full := graph.Build(res.Calls)
	pruned, removed := graph.Prune(full, s.config.Analysis.PruneThreshold)
	return &Report{
		Result:  res,
		Full:    full,
		Graph:   pruned,
		Removed: removed,
	}
}

// Render reads a JSON adjacency document and prunes it, without analysis.
func (s *Service) Render(path string) (*Report, error) {
	g, err := graph.ReadAdjacencyFile(path)
	if err != nil {
		return nil, err
	}
	pruned, removed := graph.Prune(g, s.config.Analysis.PruneThreshold)
	return &Report{Full: g, Graph: pruned, Removed: removed}, nil
}
