// Package locator maps dotted Python module names to source files.
package locator

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/panbanda/howitworks/pkg/source"
)

// Reason explains why a module has no analyzable source.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonEntryMarker Reason = "entry-marker"
	ReasonNative      Reason = "native-extension"
	ReasonBuiltin     Reason = "builtin"
	ReasonNotFound    Reason = "not-found"
)

// EntryMarker is the module name the interpreter gives to the running script.
const EntryMarker = "__main__"

var (
	// ErrUnresolvable is matched by every *UnresolvableError.
	ErrUnresolvable = errors.New("module unresolvable")
	// ErrOutsideRoot is returned by ModuleName for paths not under any root.
	ErrOutsideRoot = errors.New("path is outside the source roots")
)

// UnresolvableError reports a module without analyzable source.
type UnresolvableError struct {
	Name   string
	Reason Reason
}

func (e *UnresolvableError) Error() string {
	return fmt.Sprintf("module %s unresolvable: %s", e.Name, e.Reason)
}

func (e *UnresolvableError) Unwrap() error {
	return ErrUnresolvable
}

// ReasonOf extracts the Reason from an error returned by the locator.
func ReasonOf(err error) Reason {
	var ue *UnresolvableError
	if errors.As(err, &ue) {
		return ue.Reason
	}
	return ReasonNone
}

// Resolution is a successful lookup.
type Resolution struct {
	// Requested is the name that was asked for.
	Requested string
	// Module is the name that actually resolved; a dotted prefix of Requested.
	Module string
	// Path is the source file location.
	Path string
	// IsPackage is true when Path is a package __init__.py.
	IsPackage bool
	// Stripped counts the trailing segments removed before a match was found.
	Stripped int
}

// LowConfidence reports whether the resolution needed the strip-and-retry
// fallback. A stripped segment is usually a member imported from the module,
// but it may also be a submodule that does not exist.
func (r *Resolution) LowConfidence() bool {
	return r.Stripped > 0
}

// Member returns the stripped suffix of Requested, or "" for exact matches.
func (r *Resolution) Member() string {
	if r.Stripped == 0 {
		return ""
	}
	return strings.TrimPrefix(r.Requested, r.Module+".")
}

// DefaultBuiltins are modules compiled into the interpreter or frozen.
var DefaultBuiltins = []string{
	"_abc", "_ast", "_codecs", "_collections", "_frozen_importlib",
	"_frozen_importlib_external", "_functools", "_imp", "_io", "_locale",
	"_operator", "_signal", "_sre", "_stat", "_string", "_symtable", "_thread",
	"_tokenize", "_tracemalloc", "_typing", "_warnings", "_weakref", "atexit",
	"builtins", "errno", "faulthandler", "gc", "itertools", "marshal", "nt",
	"posix", "pwd", "sys", "time", "zipimport",
}

// nativeSuffixes are glob suffixes for compiled extension modules.
var nativeSuffixes = []string{".*.so", ".so", ".*.pyd", ".pyd"}

// Locator resolves module names against an ordered list of roots.
type Locator struct {
	roots    []string
	src      source.ContentSource
	builtins map[string]bool
}

// Option is a functional option for Locator.
type Option func(*Locator)

// WithSearchPaths appends extra roots searched after the primary one.
func WithSearchPaths(paths ...string) Option {
	return func(l *Locator) {
		for _, p := range paths {
			if p != "" {
				l.roots = append(l.roots, filepath.Clean(p))
			}
		}
	}
}

// WithSource sets where files are read from (default: the filesystem).
func WithSource(src source.ContentSource) Option {
	return func(l *Locator) {
		l.src = src
	}
}

// WithBuiltins replaces the set of built-in module names.
func WithBuiltins(names ...string) Option {
	return func(l *Locator) {
		l.builtins = make(map[string]bool, len(names))
		for _, n := range names {
			l.builtins[n] = true
		}
	}
}

// New creates a locator rooted at root.
func New(root string, opts ...Option) *Locator {
	l := &Locator{
		roots: []string{filepath.Clean(root)},
		src:   source.NewFilesystem(),
	}
	WithBuiltins(DefaultBuiltins...)(l)
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Roots returns the search roots in lookup order.
func (l *Locator) Roots() []string {
	return append([]string(nil), l.roots...)
}

// Source returns the content source used for lookups.
func (l *Locator) Source() source.ContentSource {
	return l.src
}

// Resolve locates name, stripping trailing segments until an ancestor
// resolves. Native and built-in modules stop the search immediately.
func (l *Locator) Resolve(name string) (*Resolution, error) {
	if name == EntryMarker {
		return nil, &UnresolvableError{Name: name, Reason: ReasonEntryMarker}
	}

	candidate := name
	for stripped := 0; candidate != ""; stripped++ {
		res, reason := l.lookup(candidate)
		switch reason {
		case ReasonNone:
			res.Requested = name
			res.Stripped = stripped
			return res, nil
		case ReasonNative, ReasonBuiltin:
			return nil, &UnresolvableError{Name: name, Reason: reason}
		}

		i := strings.LastIndexByte(candidate, '.')
		if i == -1 {
			break
		}
		candidate = candidate[:i]
	}

	return nil, &UnresolvableError{Name: name, Reason: ReasonNotFound}
}

// ResolveExact locates name without the fallback search.
func (l *Locator) ResolveExact(name string) (*Resolution, error) {
	if name == EntryMarker {
		return nil, &UnresolvableError{Name: name, Reason: ReasonEntryMarker}
	}
	res, reason := l.lookup(name)
	if reason != ReasonNone {
		return nil, &UnresolvableError{Name: name, Reason: reason}
	}
	res.Requested = name
	return res, nil
}

// lookup checks a single candidate name in every root.
func (l *Locator) lookup(name string) (*Resolution, Reason) {
	if name == "" || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return nil, ReasonNotFound
	}
	if l.builtins[name] {
		return nil, ReasonBuiltin
	}

	rel := filepath.Join(strings.Split(name, ".")...)
	for _, root := range l.roots {
		base := filepath.Join(root, rel)

		if p := base + ".py"; l.src.IsFile(p) {
			return &Resolution{Module: name, Path: p}, ReasonNone
		}
		if p := filepath.Join(base, "__init__.py"); l.src.IsFile(p) {
			return &Resolution{Module: name, Path: p, IsPackage: true}, ReasonNone
		}
		for _, suffix := range nativeSuffixes {
			if matches, err := l.src.Glob(base + suffix); err == nil && len(matches) > 0 {
				return nil, ReasonNative
			}
		}
	}
	return nil, ReasonNotFound
}

// ModuleName derives the dotted module name of a .py file under one of the roots.
func (l *Locator) ModuleName(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for _, root := range l.roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(absRoot, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		rel = strings.TrimSuffix(rel, filepath.Ext(rel))
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) > 1 && parts[len(parts)-1] == "__init__" {
			parts = parts[:len(parts)-1]
		}
		return strings.Join(parts, "."), nil
	}
	return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
}
