package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	gotoml "github.com/pelletier/go-toml"
)

// ErrInvalid is returned by Validate for configurations that cannot drive
// an analysis.
var ErrInvalid = errors.New("invalid config")

// Config holds all configuration options for howitworks.
type Config struct {
	Analysis AnalysisConfig `koanf:"analysis" toml:"analysis"`

	// Directories skipped by the watcher
	Exclude ExcludeConfig `koanf:"exclude" toml:"exclude"`

	Cache CacheConfig `koanf:"cache" toml:"cache"`

	Output OutputConfig `koanf:"output" toml:"output"`
}

// AnalysisConfig controls how modules are located and traversed.
type AnalysisConfig struct {
	Root        string   `koanf:"root" toml:"root"`
	SearchPaths []string `koanf:"search_paths" toml:"search_paths"`
	// MaxDepth of 0 means unlimited.
	MaxDepth int `koanf:"max_depth" toml:"max_depth"`
	// PruneThreshold of 0 disables hub pruning.
	PruneThreshold int      `koanf:"prune_threshold" toml:"prune_threshold"`
	Ref            string   `koanf:"ref" toml:"ref"`
	Builtins       []string `koanf:"builtins" toml:"builtins,omitempty"`
}

// ExcludeConfig defines directory exclusions.
type ExcludeConfig struct {
	Dirs []string `koanf:"dirs" toml:"dirs"`
	// Gitignore also skips paths ignored by .gitignore files when scanning
	// for entry points.
	Gitignore bool `koanf:"gitignore" toml:"gitignore"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir"`
	TTL     int    `koanf:"ttl" toml:"ttl"` // TTL in hours
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format  string `koanf:"format" toml:"format"` // dot, html, json, mermaid, toon, text
	Color   bool   `koanf:"color" toml:"color"`
	Verbose bool   `koanf:"verbose" toml:"verbose"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Root:           ".",
			MaxDepth:       0,
			PruneThreshold: 5,
		},
		Exclude: ExcludeConfig{
			Dirs: []string{
				".git",
				".howitworks",
				".venv",
				"venv",
				"node_modules",
				"build",
				"dist",
				"__pycache__",
			},
			Gitignore: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".howitworks/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format:  "dot",
			Color:   true,
			Verbose: false,
		},
	}
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg, nil
}

var configNames = []string{
	"howitworks.toml",
	"howitworks.yaml",
	"howitworks.yml",
	"howitworks.json",
}

// Find returns the first config file in dir or dir/.howitworks, or "".
func Find(dir string) string {
	for _, d := range []string{dir, filepath.Join(dir, ".howitworks")} {
		for _, name := range configNames {
			path := filepath.Join(d, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// LoadOrDefault loads the config found in dir, falling back to defaults
// when there is none. A config file that exists but fails to load is an
// error.
func LoadOrDefault(dir string) (*Config, string, error) {
	path := Find(dir)
	if path == "" {
		return DefaultConfig(), "", nil
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Validate reports settings no analysis can run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Analysis.Root == "" {
		errs = append(errs, fmt.Errorf("%w: analysis.root is empty", ErrInvalid))
	}
	if c.Analysis.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("%w: analysis.max_depth must be >= 0, got %d", ErrInvalid, c.Analysis.MaxDepth))
	}
	if c.Analysis.PruneThreshold < 0 {
		errs = append(errs, fmt.Errorf("%w: analysis.prune_threshold must be >= 0, got %d", ErrInvalid, c.Analysis.PruneThreshold))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("%w: cache.ttl must be >= 0, got %d", ErrInvalid, c.Cache.TTL))
	}
	switch strings.ToLower(c.Output.Format) {
	case "", "dot", "gv", "graphviz", "html", "json", "mermaid", "mmd", "toon", "text", "txt":
	default:
		errs = append(errs, fmt.Errorf("%w: unknown output.format %q", ErrInvalid, c.Output.Format))
	}
	return errors.Join(errs...)
}

// ShouldExclude checks if a path lies in an excluded directory.
func (c *Config) ShouldExclude(path string) bool {
	sep := string(filepath.Separator)
	for _, dir := range c.Exclude.Dirs {
		if strings.Contains(path, sep+dir+sep) ||
			strings.HasPrefix(path, dir+sep) ||
			path == dir ||
			strings.HasSuffix(path, sep+dir) {
			return true
		}
	}
	return false
}

// TOML renders the effective configuration.
func (c *Config) TOML() (string, error) {
	content, err := gotoml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(content), nil
}
