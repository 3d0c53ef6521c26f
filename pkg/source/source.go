package source

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/panbanda/howitworks/internal/vcs"
)

// ContentSource provides file content and existence checks from a specific source.
// Paths are filesystem-style paths as produced by filepath.Join.
type ContentSource interface {
	// Read returns the content of the file at path.
	Read(path string) ([]byte, error)
	// IsFile reports whether path names a regular file.
	IsFile(path string) bool
	// Glob returns the files matching a filepath.Match pattern, sorted.
	Glob(pattern string) ([]string, error)
}

// FilesystemSource reads files from the local filesystem.
type FilesystemSource struct{}

// NewFilesystem creates a source that reads from the filesystem.
func NewFilesystem() *FilesystemSource {
	return &FilesystemSource{}
}

// Read implements ContentSource.
func (f *FilesystemSource) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// IsFile implements ContentSource.
func (f *FilesystemSource) IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Glob implements ContentSource.
func (f *FilesystemSource) Glob(pattern string) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// TreeSource reads files from a git tree. Filesystem paths are mapped onto the
// tree relative to the repository's working tree root.
// It is safe for concurrent use by multiple goroutines.
type TreeSource struct {
	tree vcs.Tree
	root string
	mu   sync.Mutex

	indexOnce sync.Once
	index     map[string]bool
	indexErr  error
}

// NewTree creates a source that reads from a git tree whose working tree lives at root.
func NewTree(tree vcs.Tree, root string) *TreeSource {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &TreeSource{tree: tree, root: root}
}

// Read implements ContentSource.
// It is safe for concurrent use.
func (t *TreeSource) Read(p string) ([]byte, error) {
	rel, ok := t.rel(p)
	if !ok {
		return nil, &os.PathError{Op: "read", Path: p, Err: os.ErrNotExist}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tree.File(rel)
}

// IsFile implements ContentSource.
func (t *TreeSource) IsFile(p string) bool {
	rel, ok := t.rel(p)
	if !ok || t.load() != nil {
		return false
	}
	return t.index[rel]
}

// Glob implements ContentSource.
func (t *TreeSource) Glob(pattern string) ([]string, error) {
	relPattern, ok := t.rel(pattern)
	if !ok {
		return nil, nil
	}
	if err := t.load(); err != nil {
		return nil, err
	}
	var matches []string
	for name := range t.index {
		matched, err := path.Match(relPattern, name)
		if err != nil {
			return nil, err
		}
		if matched {
			matches = append(matches, filepath.Join(t.root, filepath.FromSlash(name)))
		}
	}
	sort.Strings(matches)
	return matches, nil
}

// rel converts a filesystem path into a slash-separated tree path.
func (t *TreeSource) rel(p string) (string, bool) {
	if !filepath.IsAbs(p) {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
	}
	rel, err := filepath.Rel(t.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (t *TreeSource) load() error {
	t.indexOnce.Do(func() {
		entries, err := t.tree.Entries()
		if err != nil {
			t.indexErr = err
			return
		}
		t.index = make(map[string]bool, len(entries))
		for _, e := range entries {
			t.index[e.Path] = true
		}
	})
	return t.indexErr
}

// MapSource serves files from memory. Keys are filesystem-style paths.
type MapSource struct {
	files map[string][]byte
}

// NewMap creates an in-memory source from path -> content.
func NewMap(files map[string]string) *MapSource {
	m := &MapSource{files: make(map[string][]byte, len(files))}
	for p, content := range files {
		m.files[filepath.Clean(p)] = []byte(content)
	}
	return m
}

// Read implements ContentSource.
func (m *MapSource) Read(p string) ([]byte, error) {
	content, ok := m.files[filepath.Clean(p)]
	if !ok {
		return nil, &os.PathError{Op: "read", Path: p, Err: os.ErrNotExist}
	}
	return content, nil
}

// IsFile implements ContentSource.
func (m *MapSource) IsFile(p string) bool {
	_, ok := m.files[filepath.Clean(p)]
	return ok
}

// Glob implements ContentSource.
func (m *MapSource) Glob(pattern string) ([]string, error) {
	var matches []string
	for name := range m.files {
		matched, err := filepath.Match(pattern, name)
		if err != nil {
			return nil, err
		}
		if matched {
			matches = append(matches, name)
		}
	}
	sort.Strings(matches)
	return matches, nil
}
