package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/panbanda/howitworks/internal/vcs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pkg"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pkg", "mod.py"), []byte("x = 1\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pkg", "fast.cpython-312-x86_64-linux-gnu.so"), nil, 0644))

	src := NewFilesystem()

	content, err := src.Read(filepath.Join(dir, "pkg", "mod.py"))
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", string(content))

	_, err = src.Read(filepath.Join(dir, "nonexistent.py"))
	assert.Error(t, err)

	assert.True(t, src.IsFile(filepath.Join(dir, "pkg", "mod.py")))
	assert.False(t, src.IsFile(filepath.Join(dir, "pkg")), "directories are not files")

	matches, err := src.Glob(filepath.Join(dir, "pkg", "fast.*.so"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

type fakeTree struct {
	files map[string]string
}

func (f *fakeTree) File(path string) ([]byte, error) {
	content, ok := f.files[path]
	if !ok {
		return nil, vcs.ErrFileNotFound
	}
	return []byte(content), nil
}

func (f *fakeTree) Entries() ([]vcs.TreeEntry, error) {
	var entries []vcs.TreeEntry
	for p, c := range f.files {
		entries = append(entries, vcs.TreeEntry{Path: p, Size: int64(len(c))})
	}
	return entries, nil
}

func TestTreeSource(t *testing.T) {
	root := t.TempDir()
	tree := &fakeTree{files: map[string]string{
		"app/__init__.py": "",
		"app/cli.py":      "main()\n",
		"app/_speed.so":   "",
	}}

	src := NewTree(tree, root)

	content, err := src.Read(filepath.Join(root, "app", "cli.py"))
	require.NoError(t, err)
	assert.Equal(t, "main()\n", string(content))

	assert.True(t, src.IsFile(filepath.Join(root, "app", "__init__.py")))
	assert.False(t, src.IsFile(filepath.Join(root, "app", "missing.py")))
	assert.False(t, src.IsFile(filepath.Join(filepath.Dir(root), "outside.py")))

	matches, err := src.Glob(filepath.Join(root, "app", "_speed*.so"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "app", "_speed.so")}, matches)

	_, err = src.Read(filepath.Join(filepath.Dir(root), "outside.py"))
	assert.Error(t, err)
}

func TestMapSource(t *testing.T) {
	src := NewMap(map[string]string{
		"/src/a.py":   "import b\n",
		"/src/b/c.py": "",
	})

	content, err := src.Read("/src/a.py")
	require.NoError(t, err)
	assert.Equal(t, "import b\n", string(content))

	assert.True(t, src.IsFile("/src/./b/c.py"))
	assert.False(t, src.IsFile("/src/b"))

	_, err = src.Read("/src/zzz.py")
	assert.ErrorIs(t, err, os.ErrNotExist)

	matches, err := src.Glob("/src/*.py")
	require.NoError(t, err)
	assert.Equal(t, []string{"/src/a.py"}, matches)
}
