package watch

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/panbanda/howitworks/internal/locator"
	"github.com/panbanda/howitworks/pkg/analyzer/callgraph"
	"github.com/panbanda/howitworks/pkg/config"
	"github.com/panbanda/howitworks/pkg/source"
)

func newTestWatcher(t *testing.T, dir string, debounce time.Duration) *Watcher {
	t.Helper()
	w, err := NewWatcher(dir, config.DefaultConfig(), debounce)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	w.SetOutput(io.Discard)
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func TestNewWatcher(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		debounce time.Duration
		want     time.Duration
	}{
		{"default debounce", 0, DefaultDebounce},
		{"custom debounce", time.Second, time.Second},
		{"negative debounce defaults", -time.Second, DefaultDebounce},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWatcher(t, dir, tt.debounce)
			if w.debounce != tt.want {
				t.Errorf("debounce = %v, want %v", w.debounce, tt.want)
			}
			if w.pending == nil {
				t.Error("pending map should be initialized")
			}
		})
	}
}

func TestNewWatcher_NilConfig(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if w.config == nil {
		t.Error("nil config should fall back to defaults")
	}
}

func TestWatcher_handleEvent(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
		op   fsnotify.Op
		want bool
	}{
		{"write python", "app/cli.py", fsnotify.Write, true},
		{"create python", "app/new.py", fsnotify.Create, true},
		{"remove python", "app/old.py", fsnotify.Remove, true},
		{"rename python", "app/moved.py", fsnotify.Rename, true},
		{"chmod ignored", "app/cli.py", fsnotify.Chmod, false},
		{"non python ignored", "README.md", fsnotify.Write, false},
		{"bytecode ignored", "app/cli.pyc", fsnotify.Write, false},
		{"excluded dir", "app/__pycache__/cli.py", fsnotify.Write, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWatcher(t, dir, time.Second)
			path := filepath.Join(dir, tt.path)
			w.handleEvent(fsnotify.Event{Name: path, Op: tt.op})

			w.mu.Lock()
			_, pending := w.pending[path]
			w.mu.Unlock()
			if pending != tt.want {
				t.Errorf("pending = %v, want %v", pending, tt.want)
			}
		})
	}
}

func TestWatcher_handleEvent_NewDirectory(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir, time.Second)

	pkg := filepath.Join(dir, "plugins")
	if err := os.Mkdir(pkg, 0755); err != nil {
		t.Fatal(err)
	}
	w.handleEvent(fsnotify.Event{Name: pkg, Op: fsnotify.Create})

	if !slices.Contains(w.WatchedDirs(), pkg) {
		t.Errorf("WatchedDirs() = %v, want %s added", w.WatchedDirs(), pkg)
	}
}

func TestWatcher_takeReady(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir, 50*time.Millisecond)

	now := time.Now()
	old := now.Add(-time.Second)
	w.pending[filepath.Join(dir, "b.py")] = old
	w.pending[filepath.Join(dir, "a.py")] = old
	w.pending[filepath.Join(dir, "fresh.py")] = now

	ready := w.takeReady(now)
	want := []string{filepath.Join(dir, "a.py"), filepath.Join(dir, "b.py")}
	if !slices.Equal(ready, want) {
		t.Errorf("takeReady() = %v, want %v", ready, want)
	}
	if _, ok := w.pending[filepath.Join(dir, "fresh.py")]; !ok {
		t.Error("fresh file should stay pending")
	}
	if len(w.takeReady(now)) != 0 {
		t.Error("ready files should be removed from pending")
	}
}

func TestWatcher_addDirs_SkipsExcluded(t *testing.T) {
	dir := t.TempDir()
	for _, d := range []string{"app", "app/__pycache__", ".venv/lib"} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0755); err != nil {
			t.Fatal(err)
		}
	}

	w := newTestWatcher(t, dir, time.Second)
	if err := w.addDirs(); err != nil {
		t.Fatal(err)
	}

	watched := w.WatchedDirs()
	if !slices.Contains(watched, filepath.Join(dir, "app")) {
		t.Errorf("app not watched: %v", watched)
	}
	for _, excluded := range []string{"app/__pycache__", ".venv", ".venv/lib"} {
		if slices.Contains(watched, filepath.Join(dir, excluded)) {
			t.Errorf("%s should not be watched", excluded)
		}
	}
}

func TestWatcher_Start_Context(t *testing.T) {
	w := newTestWatcher(t, t.TempDir(), 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Start() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
}

func TestWatcher_Start_FileChange(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir, 50*time.Millisecond)

	var mu sync.Mutex
	var batches [][]string
	w.SetCallback(func(paths []string) {
		mu.Lock()
		batches = append(batches, paths)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx) }()
	time.Sleep(100 * time.Millisecond)

	target := filepath.Join(dir, "cli.py")
	if err := os.WriteFile(target, []byte("print('x')\n"), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(batches)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(batches) == 0 {
		t.Fatal("callback never ran")
	}
	if !slices.Contains(batches[0], target) {
		t.Errorf("first batch = %v, want %s", batches[0], target)
	}
}

func TestRerunner(t *testing.T) {
	files := map[string]string{
		"/src/app.py": "def main():\n    helper()\n\ndef helper():\n    pass\n\nmain()\n",
	}
	analyze := func() (*callgraph.Result, error) {
		loc := locator.New("/src", locator.WithSource(source.NewMap(files)))
		s := callgraph.New(loc)
		defer s.Close()
		return s.Analyze("app")
	}
	r := NewRerunner(analyze)

	first, err := r.Run()
	if err != nil {
		t.Fatalf("first Run() = %v", err)
	}
	if len(first.Calls) == 0 {
		t.Fatal("expected calls")
	}

	if _, err := r.Run(); !errors.Is(err, ErrUnchanged) {
		t.Errorf("second Run() = %v, want ErrUnchanged", err)
	}

	files["/src/app.py"] = "def main():\n    other()\n\nmain()\n"
	if _, err := r.Run(); err != nil {
		t.Errorf("Run() after edit = %v", err)
	}
	if r.Runs() != 2 {
		t.Errorf("Runs() = %d, want 2", r.Runs())
	}
}

func TestRerunner_Error(t *testing.T) {
	boom := errors.New("entry point unresolvable")
	r := NewRerunner(func() (*callgraph.Result, error) { return nil, boom })
	if _, err := r.Run(); !errors.Is(err, boom) {
		t.Errorf("Run() = %v", err)
	}
	if r.Runs() != 0 {
		t.Error("failed runs should not count")
	}
}
