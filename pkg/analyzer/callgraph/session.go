// Package callgraph extracts static call graphs from Python modules.
//
// A Session follows imports from an entry module, binding local names to
// fully qualified targets and recording one Call per resolved call
// expression. Function bodies are visited lazily: only when some call
// reaches them, and at most once per session.
package callgraph

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cespare/xxhash/v2"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/zeebo/blake3"

	"github.com/panbanda/howitworks/internal/locator"
	"github.com/panbanda/howitworks/pkg/parser"
)

// Session holds all state of one analysis run. It is not safe for
// concurrent use. Call Reset between independent runs.
type Session struct {
	loc      *locator.Locator
	parser   *parser.Parser
	logger   *slog.Logger
	maxDepth int
	onVisit  func(*Module)

	modules map[string]*Module
	order   []*Module
	calls   []Call

	bodies    []*BodyRef
	bodyIndex map[string]*BodyRef
	forced    *roaring.Bitmap
}

// Option is a functional option for configuring a Session.
type Option func(*Session)

// WithMaxDepth limits how many import hops are followed from the entry
// module (0 = unlimited).
func WithMaxDepth(depth int) Option {
	return func(s *Session) {
		if depth > 0 {
			s.maxDepth = depth
		}
	}
}

// WithLogger sets the logger used for enter/exit tracing at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithVisitHook registers fn to be called whenever a module record reaches
// a final state.
func WithVisitHook(fn func(*Module)) Option {
	return func(s *Session) {
		s.onVisit = fn
	}
}

// New creates a session that resolves modules through loc.
func New(loc *locator.Locator, opts ...Option) *Session {
	s := &Session{
		loc:    loc,
		parser: parser.New(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Reset()
	return s
}

// Reset discards all modules, calls and forced bodies.
func (s *Session) Reset() {
	for _, m := range s.order {
		m.tree.Close()
	}
	s.modules = make(map[string]*Module)
	s.order = nil
	s.calls = nil
	s.bodies = nil
	s.bodyIndex = make(map[string]*BodyRef)
	s.forced = roaring.New()
}

// Close releases all parse trees and the parser.
func (s *Session) Close() {
	s.Reset()
	s.parser.Close()
}

// Result is the outcome of Analyze.
type Result struct {
	Entry   string    `json:"entry" toon:"entry"`
	Calls   []Call    `json:"calls" toon:"calls"`
	Modules []*Module `json:"modules" toon:"modules"`
}

// Fingerprint hashes the ordered call list. Two results with the same
// fingerprint describe the same graph.
func (r *Result) Fingerprint() uint64 {
	h := xxhash.New()
	for _, c := range r.Calls {
		_, _ = h.WriteString(c.Context)
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(c.Target)
		_, _ = h.Write([]byte{'\n'})
	}
	return h.Sum64()
}

// Visited returns the modules whose source was traversed.
func (r *Result) Visited() []*Module {
	var out []*Module
	for _, m := range r.Modules {
		if m.Visited() {
			out = append(out, m)
		}
	}
	return out
}

// Analyze visits entry and everything reachable from it. entry is either a
// dotted module name or a path to a .py file. Only failures on the entry
// module are returned; they all match ErrEntryPoint.
func (s *Session) Analyze(entry string) (*Result, error) {
	m, err := s.entryModule(entry)
	if err != nil {
		return nil, err
	}

	if existing, ok := s.modules[m.Name]; ok {
		if existing.State == StateCompleted {
			return s.result(existing.Name), nil
		}
		existing.Path, existing.IsPackage = m.Path, m.IsPackage
		existing.Reason, existing.Error = locator.ReasonNone, ""
		m = existing
	} else {
		s.add(m)
	}
	m.Depth = 0

	if err := s.load(m); err != nil {
		m.State = StateFailed
		m.Error = err.Error()
		s.finish(m)
		if errors.Is(err, parser.ErrSyntax) {
			return nil, fmt.Errorf("%w: %w", ErrEntryParse, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrEntryRead, err)
	}

	s.walkModule(m)
	return s.result(m.Name), nil
}

func (s *Session) entryModule(entry string) (*Module, error) {
	if entry == "" {
		return nil, fmt.Errorf("%w: empty entry point", ErrEntryUnresolvable)
	}

	if parser.IsPythonSource(entry) {
		name, err := s.loc.ModuleName(entry)
		if err != nil {
			name = strings.TrimSuffix(filepath.Base(entry), filepath.Ext(entry))
		}
		return &Module{
			Name:      name,
			Path:      entry,
			IsPackage: filepath.Base(entry) == "__init__.py",
		}, nil
	}

	res, err := s.loc.ResolveExact(entry)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEntryUnresolvable, err)
	}
	return &Module{Name: res.Module, Path: res.Path, IsPackage: res.IsPackage}, nil
}

func (s *Session) result(entry string) *Result {
	return &Result{
		Entry:   entry,
		Calls:   append([]Call(nil), s.calls...),
		Modules: append([]*Module(nil), s.order...),
	}
}

// Calls returns the ordered call list accumulated so far.
func (s *Session) Calls() []Call {
	return append([]Call(nil), s.calls...)
}

// Module returns the record cached under name.
func (s *Session) Module(name string) (*Module, bool) {
	m, ok := s.modules[name]
	return m, ok
}

// Modules returns all module records in first-reference order.
func (s *Session) Modules() []*Module {
	return append([]*Module(nil), s.order...)
}

// Forced reports how many deferred bodies have been visited.
func (s *Session) Forced() uint64 {
	return s.forced.GetCardinality()
}

func (s *Session) add(m *Module) {
	s.modules[m.Name] = m
	s.order = append(s.order, m)
}

func (s *Session) finish(m *Module) {
	if s.onVisit != nil {
		s.onVisit(m)
	}
}

// importModule returns the completed record for name, or nil when the
// import yields nothing: unresolvable, failed, cyclic or past the depth
// limit.
func (s *Session) importModule(name string, depth int) *Module {
	if m, ok := s.modules[name]; ok {
		return s.enter(m, depth)
	}

	res, err := s.loc.Resolve(name)
	if err != nil {
		m := &Module{Name: name, State: StateUnresolvable, Reason: locator.ReasonOf(err), Depth: depth}
		s.add(m)
		s.logger.Debug(indent(depth)+"x "+name, "reason", m.Reason)
		s.finish(m)
		return nil
	}

	m, ok := s.modules[res.Module]
	if !ok {
		m = &Module{Name: res.Module, Path: res.Path, IsPackage: res.IsPackage, Depth: depth}
		s.add(m)
	}
	if res.LowConfidence() {
		m.noteStripped(name)
		s.logger.Debug(indent(depth)+"~ "+name, "resolved", res.Module)
	}
	return s.enter(m, depth)
}

func (s *Session) enter(m *Module, depth int) *Module {
	switch m.State {
	case StateCompleted:
		return m
	case StateNotVisited, StateTruncated:
	default:
		return nil
	}

	if s.maxDepth > 0 && depth > s.maxDepth {
		if m.State != StateTruncated {
			m.State = StateTruncated
			m.Depth = depth
			s.logger.Debug(indent(depth)+"- "+m.Name, "max_depth", s.maxDepth)
			s.finish(m)
		}
		return nil
	}

	m.Depth = depth
	if err := s.load(m); err != nil {
		m.State = StateFailed
		m.Error = err.Error()
		s.logger.Debug(indent(depth)+"! "+m.Name, "error", err)
		s.finish(m)
		return nil
	}
	s.walkModule(m)
	return m
}

// load reads and parses the module source. The digest is recorded even when
// parsing fails, so a cached result notices when the file is fixed.
func (s *Session) load(m *Module) error {
	data, err := s.loc.Source().Read(m.Path)
	if err != nil {
		return err
	}
	sum := blake3.Sum256(data)
	m.Digest = fmt.Sprintf("%x", sum[:])
	tree, err := s.parser.Parse(data, m.Path)
	if err != nil {
		return err
	}
	m.tree = tree
	return nil
}

// walkModule traverses the top level of a loaded module.
func (s *Session) walkModule(m *Module) {
	m.State = StateInProgress
	m.Scope = NewScope(m.Name)
	s.logger.Debug(indent(m.Depth)+"v "+m.Name, "path", m.Path)

	newVisitor(s, m, m.Scope).walk(m.tree.Root())

	m.State = StateCompleted
	s.logger.Debug(indent(m.Depth)+"^ "+m.Name, "calls", len(m.Calls))
	s.finish(m)
}

func (s *Session) registerBody(m *Module, name string, node *sitter.Node) *BodyRef {
	ref := &BodyRef{ID: uint32(len(s.bodies)), Module: m.Name, Name: name, node: node}
	s.bodies = append(s.bodies, ref)
	s.bodyIndex[name] = ref
	return ref
}

// bodyNamed returns the most recently defined function body with the given
// qualified name.
func (s *Session) bodyNamed(name string) *BodyRef {
	return s.bodyIndex[name]
}

// force visits a deferred body under its own label. Repeated calls for the
// same body are no-ops.
func (s *Session) force(ref *BodyRef) {
	if ref == nil || !s.forced.CheckedAdd(ref.ID) {
		return
	}
	owner, ok := s.modules[ref.Module]
	if !ok || owner.tree == nil || owner.Scope == nil {
		return
	}
	s.logger.Debug(indent(owner.Depth+1)+"> "+ref.Name)
	newVisitor(s, owner, owner.Scope.Fork(ref.Name)).walk(ref.node.ChildByFieldName("body"))
}

func indent(depth int) string {
	return strings.Repeat("  ", depth)
}
