package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Analysis.Root != "." {
		t.Errorf("Analysis.Root = %q, want .", cfg.Analysis.Root)
	}
	if cfg.Analysis.MaxDepth != 0 {
		t.Errorf("Analysis.MaxDepth = %d, want 0 (unlimited)", cfg.Analysis.MaxDepth)
	}
	if cfg.Analysis.PruneThreshold != 5 {
		t.Errorf("Analysis.PruneThreshold = %d, want 5", cfg.Analysis.PruneThreshold)
	}
	if !cfg.Cache.Enabled || cfg.Cache.TTL != 24 {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Output.Format != "dot" {
		t.Errorf("Output.Format = %s, want dot", cfg.Output.Format)
	}
	if !cfg.Exclude.Gitignore {
		t.Error("Exclude.Gitignore should default to true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "howitworks.toml")
	content := `
[analysis]
root = "src"
search_paths = ["lib", "vendor/py"]
max_depth = 3
prune_threshold = 8

[cache]
enabled = false

[output]
format = "html"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Analysis.Root != "src" {
		t.Errorf("Analysis.Root = %q", cfg.Analysis.Root)
	}
	if len(cfg.Analysis.SearchPaths) != 2 || cfg.Analysis.SearchPaths[1] != "vendor/py" {
		t.Errorf("Analysis.SearchPaths = %v", cfg.Analysis.SearchPaths)
	}
	if cfg.Analysis.MaxDepth != 3 || cfg.Analysis.PruneThreshold != 8 {
		t.Errorf("Analysis = %+v", cfg.Analysis)
	}
	if cfg.Cache.Enabled {
		t.Error("Cache.Enabled should be false")
	}
	if cfg.Cache.TTL != 24 {
		t.Errorf("unset Cache.TTL should keep default, got %d", cfg.Cache.TTL)
	}
	if cfg.Output.Format != "html" {
		t.Errorf("Output.Format = %s, want html", cfg.Output.Format)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "howitworks.yaml")
	content := `
analysis:
  max_depth: 2
  ref: HEAD~1
output:
  format: json
  verbose: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Analysis.MaxDepth != 2 || cfg.Analysis.Ref != "HEAD~1" {
		t.Errorf("Analysis = %+v", cfg.Analysis)
	}
	if cfg.Output.Format != "json" || !cfg.Output.Verbose {
		t.Errorf("Output = %+v", cfg.Output)
	}
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "howitworks.json")
	content := `{"analysis": {"prune_threshold": 0}, "output": {"color": false}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Analysis.PruneThreshold != 0 {
		t.Errorf("Analysis.PruneThreshold = %d, want 0", cfg.Analysis.PruneThreshold)
	}
	if cfg.Output.Color {
		t.Error("Output.Color should be false")
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/howitworks.toml"); err == nil {
		t.Error("Load() should return error for non-existent file")
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "howitworks.toml")
	if err := os.WriteFile(path, []byte("[analysis\nroot = "), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() should fail on malformed TOML")
	}
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	if got := Find(dir); got != "" {
		t.Errorf("Find() on empty dir = %q", got)
	}

	nested := filepath.Join(dir, ".howitworks")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	yamlPath := filepath.Join(nested, "howitworks.yaml")
	if err := os.WriteFile(yamlPath, []byte("analysis:\n  max_depth: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := Find(dir); got != yamlPath {
		t.Errorf("Find() = %q, want %q", got, yamlPath)
	}

	tomlPath := filepath.Join(dir, "howitworks.toml")
	if err := os.WriteFile(tomlPath, []byte("[analysis]\nmax_depth = 4\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := Find(dir); got != tomlPath {
		t.Errorf("top-level config should win, got %q", got)
	}
}

func TestLoadOrDefault(t *testing.T) {
	dir := t.TempDir()

	cfg, path, err := LoadOrDefault(dir)
	if err != nil || path != "" {
		t.Fatalf("LoadOrDefault() = %q, %v", path, err)
	}
	if cfg.Analysis.PruneThreshold != 5 {
		t.Error("expected defaults")
	}

	bad := filepath.Join(dir, "howitworks.json")
	if err := os.WriteFile(bad, []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, path, err := LoadOrDefault(dir); err == nil || path != bad {
		t.Errorf("LoadOrDefault() = %q, %v; want error for %s", path, err, bad)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"empty root", func(c *Config) { c.Analysis.Root = "" }, "analysis.root"},
		{"negative depth", func(c *Config) { c.Analysis.MaxDepth = -1 }, "analysis.max_depth"},
		{"negative threshold", func(c *Config) { c.Analysis.PruneThreshold = -2 }, "analysis.prune_threshold"},
		{"negative ttl", func(c *Config) { c.Cache.TTL = -1 }, "cache.ttl"},
		{"bad format", func(c *Config) { c.Output.Format = "svg" }, "output.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("Validate() = %v, want ErrInvalid", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestShouldExclude(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		path string
		want bool
	}{
		{"app/__pycache__/cli.pyc", true},
		{".venv/lib/site.py", true},
		{"src/build", true},
		{"app/cli.py", false},
		{"app/builder.py", false},
	}
	for _, tt := range tests {
		if got := cfg.ShouldExclude(tt.path); got != tt.want {
			t.Errorf("ShouldExclude(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestTOML(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Analysis.SearchPaths = []string{"lib"}

	out, err := cfg.TOML()
	if err != nil {
		t.Fatalf("TOML() error: %v", err)
	}
	for _, want := range []string{"[analysis]", "prune_threshold = 5", "[cache]", "[output]", `format = "dot"`} {
		if !strings.Contains(out, want) {
			t.Errorf("TOML() missing %q in:\n%s", want, out)
		}
	}

	path := filepath.Join(t.TempDir(), "howitworks.toml")
	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		t.Fatal(err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatalf("rendered TOML does not load: %v", err)
	}
	if len(back.Analysis.SearchPaths) != 1 || back.Analysis.SearchPaths[0] != "lib" {
		t.Errorf("SearchPaths = %v", back.Analysis.SearchPaths)
	}
}
