// Package scanner discovers Python files and likely entry points under a
// source root.
package scanner

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/sourcegraph/conc/iter"

	"github.com/panbanda/howitworks/internal/locator"
	"github.com/panbanda/howitworks/internal/scanner"
	"github.com/panbanda/howitworks/internal/vcs"
	"github.com/panbanda/howitworks/pkg/config"
	"github.com/panbanda/howitworks/pkg/parser"
)

// ScanResult contains the result of a file scan.
type ScanResult struct {
	Files    []string
	RepoRoot string
}

// Entry is a module that can be run directly.
type Entry struct {
	Module string `json:"module" toon:"module"`
	Path   string `json:"path" toon:"path"`
	// Guarded is set when the module has a top-level
	// `if __name__ == "__main__":` block.
	Guarded bool `json:"guarded" toon:"guarded"`
	// Main is set for a package's __main__.py.
	Main bool `json:"main" toon:"main"`
}

// Service provides file scanning functionality.
type Service struct {
	config *config.Config
	opener vcs.Opener
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets the configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

// WithOpener sets the VCS opener (for testing).
func WithOpener(opener vcs.Opener) Option {
	return func(s *Service) {
		s.opener = opener
	}
}

// New creates a new scanner service.
func New(opts ...Option) *Service {
	s := &Service{
		config: config.DefaultConfig(),
		opener: vcs.DefaultOpener(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScanPaths scans multiple paths and returns all found Python files.
func (s *Service) ScanPaths(paths []string) (*ScanResult, error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}

	scan := scanner.NewScanner(s.config)
	var files []string

	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, &PathError{Path: path, Err: err}
		}
		found, err := scan.ScanDir(absPath)
		if err != nil {
			return nil, &ScanError{Path: path, Err: err}
		}
		files = append(files, found...)
	}

	result := &ScanResult{Files: files}
	if repo, err := s.opener.PlainOpenWithDetect(paths[0]); err == nil {
		result.RepoRoot = repo.Root()
	}
	return result, nil
}

// FindEntries lists the modules under root that look like program entry
// points, in path order. Files that do not parse are skipped.
func (s *Service) FindEntries(root string) ([]Entry, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, &PathError{Path: root, Err: err}
	}
	result, err := s.ScanPaths([]string{absRoot})
	if err != nil {
		return nil, err
	}

	// Scanned paths have symlinks resolved; names are derived against the
	// resolved root too.
	if resolved, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = resolved
	}
	loc := locator.New(absRoot)

	candidates := iter.Map(result.Files, func(path *string) *Entry {
		return inspect(loc, *path)
	})

	var entries []Entry
	for _, e := range candidates {
		if e != nil {
			entries = append(entries, *e)
		}
	}
	return entries, nil
}

func inspect(loc *locator.Locator, path string) *Entry {
	name, err := loc.ModuleName(path)
	if err != nil {
		return nil
	}
	entry := &Entry{
		Module: name,
		Path:   path,
		Main:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) == locator.EntryMarker,
	}

	p := parser.New()
	defer p.Close()
	tree, err := p.ParseFile(path)
	if err != nil {
		return nil
	}
	defer tree.Close()

	for _, stmt := range parser.FindNodesByType(tree.Root(), tree.Source, parser.NodeIf) {
		if stmt.Parent().Type() != parser.NodeModule {
			continue
		}
		if isMainGuard(stmt.ChildByFieldName("condition"), tree.Source) {
			entry.Guarded = true
			break
		}
	}

	if !entry.Guarded && !entry.Main {
		return nil
	}
	return entry
}

// isMainGuard matches `__name__ == "__main__"` with either operand order.
func isMainGuard(cond *sitter.Node, source []byte) bool {
	if cond == nil || cond.Type() != "comparison_operator" || cond.NamedChildCount() != 2 {
		return false
	}
	if !strings.Contains(cond.Content(source), "==") {
		return false
	}

	left, right := cond.NamedChild(0), cond.NamedChild(1)
	if left.Type() == "string" {
		left, right = right, left
	}
	if left.Type() != "identifier" || right.Type() != "string" {
		return false
	}
	return left.Content(source) == "__name__" &&
		strings.Trim(right.Content(source), `"'`) == locator.EntryMarker
}

// PathError indicates an invalid path.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return "invalid path " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// ScanError indicates a scanning failure.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return "failed to scan directory " + e.Path + ": " + e.Err.Error()
}

func (e *ScanError) Unwrap() error {
	return e.Err
}
