package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/howitworks/internal/testutil"
	"github.com/panbanda/howitworks/pkg/config"
)

func relAll(t *testing.T, root string, files []string) []string {
	t.Helper()
	out := make([]string, 0, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(root, f)
		require.NoError(t, err)
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func evalRoot(t *testing.T, root string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	return resolved
}

func TestNewScanner(t *testing.T) {
	s := NewScanner(nil)
	require.NotNil(t, s)
	assert.NotNil(t, s.config)

	cfg := config.DefaultConfig()
	assert.Same(t, cfg, NewScanner(cfg).config)
}

func TestScanDir(t *testing.T) {
	root := testutil.PythonTree(t, map[string]string{
		"main.py":          "print('hi')\n",
		"app/__init__.py":  "",
		"app/gui.pyw":      "",
		"app/util.py":      "",
		"README.md":        "# readme\n",
		"app/util.pyc":     "",
		"lib/native.so":    "",
		"scripts/tool.py":  "",
		"docs/conf.txt":    "",
		"app/sub/deep.py":  "",
		"app/sub/data.csv": "",
	})

	files, err := NewScanner(nil).ScanDir(root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"app/__init__.py",
		"app/gui.pyw",
		"app/sub/deep.py",
		"app/util.py",
		"main.py",
		"scripts/tool.py",
	}, relAll(t, evalRoot(t, root), files))
}

func TestScanDir_ExcludedDirectories(t *testing.T) {
	root := testutil.PythonTree(t, map[string]string{
		"main.py":                    "",
		".venv/lib/site.py":          "",
		"app/__pycache__/main.py":    "",
		"node_modules/pkg/setup.py":  "",
		"build/lib/app/generated.py": "",
	})

	files, err := NewScanner(nil).ScanDir(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.py"}, relAll(t, evalRoot(t, root), files))
}

func TestScanDir_Gitignore(t *testing.T) {
	root := testutil.PythonTree(t, map[string]string{
		".gitignore":       "generated/\nscratch_*.py\n",
		"main.py":          "",
		"scratch_notes.py": "",
		"generated/out.py": "",
		"app/keep.py":      "",
		"app/.gitignore":   "local.py\n",
		"app/local.py":     "",
	})
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0755))

	files, err := NewScanner(nil).ScanDir(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"app/keep.py", "main.py"}, relAll(t, evalRoot(t, root), files))

	cfg := config.DefaultConfig()
	cfg.Exclude.Gitignore = false
	files, err = NewScanner(cfg).ScanDir(root)
	require.NoError(t, err)
	assert.Len(t, files, 5)
}

func TestScanDir_GitignoreFromSubdirectory(t *testing.T) {
	root := testutil.PythonTree(t, map[string]string{
		".gitignore":  "app/skip.py\n",
		"app/keep.py": "",
		"app/skip.py": "",
	})
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0755))

	app := filepath.Join(root, "app")
	files, err := NewScanner(nil).ScanDir(app)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.py"}, relAll(t, evalRoot(t, app), files))
}

func TestScanDir_SymlinkOutsideRoot(t *testing.T) {
	outside := testutil.PythonTree(t, map[string]string{"secret.py": ""})
	root := testutil.PythonTree(t, map[string]string{"main.py": ""})
	if err := os.Symlink(filepath.Join(outside, "secret.py"), filepath.Join(root, "link.py")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	files, err := NewScanner(nil).ScanDir(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.py"}, relAll(t, evalRoot(t, root), files))
}

func TestScanDir_MissingRoot(t *testing.T) {
	_, err := NewScanner(nil).ScanDir(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestScanFile(t *testing.T) {
	root := testutil.PythonTree(t, map[string]string{
		"main.py":                 "",
		"notes.md":                "",
		"app/__pycache__/main.py": "",
	})

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"python source", "main.py", true},
		{"non python", "notes.md", false},
		{"directory", "app", false},
		{"excluded directory", "app/__pycache__/main.py", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewScanner(nil).ScanFile(filepath.Join(root, tt.path))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := NewScanner(nil).ScanFile(filepath.Join(root, "missing.py"))
	assert.Error(t, err)
}

func TestIsWithinRoot(t *testing.T) {
	assert.True(t, isWithinRoot("/a/b/c.py", "/a/b"))
	assert.True(t, isWithinRoot("/a/b", "/a/b"))
	assert.False(t, isWithinRoot("/a/bc/d.py", "/a/b"))
	assert.False(t, isWithinRoot("/x/y.py", "/a/b"))
}
