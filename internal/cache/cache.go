package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/zeebo/blake3"

	"github.com/panbanda/howitworks/internal/locator"
	"github.com/panbanda/howitworks/pkg/analyzer/callgraph"
	"github.com/panbanda/howitworks/pkg/source"
)

// ErrStale is returned by Verify when a cached result no longer matches the
// sources it was computed from.
var ErrStale = errors.New("stale cache entry")

// Cache provides file-based caching for analysis results.
type Cache struct {
	dir     string
	ttl     time.Duration
	enabled bool
}

// Entry represents a cached analysis result.
type Entry struct {
	Hash      string    `json:"hash"`
	Timestamp time.Time `json:"timestamp"`
	Data      []byte    `json:"data"`
}

// New creates a new cache instance.
func New(dir string, ttlHours int, enabled bool) (*Cache, error) {
	if !enabled {
		return &Cache{enabled: false}, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	return &Cache{
		dir:     dir,
		ttl:     time.Duration(ttlHours) * time.Hour,
		enabled: true,
	}, nil
}

// Enabled reports whether reads and writes reach the disk.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// HashBytes computes a BLAKE3 hash of bytes and returns it as a hex string.
func HashBytes(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Key identifies an analysis by everything that shapes its result.
func Key(entry, root, ref string, maxDepth int, searchPaths []string) string {
	parts := []string{entry, root, ref, strconv.Itoa(maxDepth), strings.Join(searchPaths, string(os.PathListSeparator))}
	return HashBytes([]byte(strings.Join(parts, "\x00")))
}

func (c *Cache) entry(key string) (*Entry, bool) {
	if !c.enabled {
		return nil, false
	}

	path := c.keyPath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	if c.ttl > 0 && time.Since(entry.Timestamp) > c.ttl {
		os.Remove(path)
		return nil, false
	}

	return &entry, true
}

// SetWithHash stores data in the cache with a hash for validation.
func (c *Cache) SetWithHash(key, hash string, data []byte) error {
	if !c.enabled {
		return nil
	}

	entryData, err := json.Marshal(Entry{
		Hash:      hash,
		Timestamp: time.Now(),
		Data:      data,
	})
	if err != nil {
		return err
	}

	return os.WriteFile(c.keyPath(key), entryData, 0600)
}

// Invalidate removes a cache entry.
func (c *Cache) Invalidate(key string) error {
	if !c.enabled {
		return nil
	}
	err := os.Remove(c.keyPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Clear removes all cache entries.
func (c *Cache) Clear() error {
	if !c.enabled {
		return nil
	}
	return os.RemoveAll(c.dir)
}

// keyPath converts a key to a filesystem path.
func (c *Cache) keyPath(key string) string {
	return filepath.Join(c.dir, HashBytes([]byte(key))+".json")
}

// PutResult stores an analysis result under key.
func (c *Cache) PutResult(key string, r *callgraph.Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return c.SetWithHash(key, ResultHash(r), data)
}

// Resolver re-resolves module names when a cached result is checked.
// *locator.Locator implements it.
type Resolver interface {
	Resolve(name string) (*locator.Resolution, error)
	Source() source.ContentSource
}

// GetResult loads the result stored under key and checks it against the
// current sources: every module import must resolve as it did and every
// digested module must be unchanged. Any difference drops the entry.
func (c *Cache) GetResult(ctx context.Context, key string, loc Resolver) (*callgraph.Result, bool) {
	e, ok := c.entry(key)
	if !ok {
		return nil, false
	}

	var r callgraph.Result
	if err := json.Unmarshal(e.Data, &r); err != nil || ResultHash(&r) != e.Hash {
		_ = c.Invalidate(key)
		return nil, false
	}
	if err := Verify(ctx, &r, loc); err != nil {
		_ = c.Invalidate(key)
		return nil, false
	}
	return &r, true
}

// ResultHash digests the module records of a result in module order.
func ResultHash(r *callgraph.Result) string {
	h := blake3.New()
	for _, m := range r.Modules {
		_, _ = h.Write([]byte(m.Name))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(m.State.String()))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(strings.Join(m.Stripped, ",")))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(m.Digest))
		_, _ = h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Verify checks a cached result against the current sources. It fails
// with ErrStale when a module name no longer resolves the way it did, or
// when a digested module's source changed or became unreadable.
func Verify(ctx context.Context, r *callgraph.Result, loc Resolver) error {
	if err := verifyResolutions(r, loc); err != nil {
		return err
	}

	src := loc.Source()
	p := pool.New().
		WithMaxGoroutines(runtime.NumCPU()).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()

	for _, m := range r.Modules {
		if m.Digest == "" || m.Path == "" {
			continue
		}
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := src.Read(m.Path)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrStale, m.Name, err)
			}
			if HashBytes(data) != m.Digest {
				return fmt.Errorf("%w: %s changed", ErrStale, m.Name)
			}
			return nil
		})
	}
	return p.Wait()
}

// verifyResolutions re-resolves every imported module record. An
// unresolvable name must still fail for the same reason, a resolved name
// must still map to the same file, and each name that needed stripping
// must still strip down to the same module. The entry record (depth 0)
// was chosen by the caller and is checked by digest only.
func verifyResolutions(r *callgraph.Result, loc Resolver) error {
	for _, m := range r.Modules {
		if m.Depth == 0 {
			continue
		}

		res, err := loc.Resolve(m.Name)
		if m.State == callgraph.StateUnresolvable {
			if err == nil {
				return fmt.Errorf("%w: %s now resolves to %s", ErrStale, m.Name, res.Path)
			}
			if reason := locator.ReasonOf(err); reason != m.Reason {
				return fmt.Errorf("%w: %s is now %s", ErrStale, m.Name, reason)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrStale, m.Name, err)
		}
		if res.Module != m.Name || res.Path != m.Path {
			return fmt.Errorf("%w: %s now resolves to %s", ErrStale, m.Name, res.Path)
		}

		for _, name := range m.Stripped {
			res, err := loc.Resolve(name)
			if err != nil || res.Module != m.Name {
				return fmt.Errorf("%w: %s no longer resolves to %s", ErrStale, name, m.Name)
			}
		}
	}
	return nil
}

// Stats returns cache statistics.
type Stats struct {
	Entries   int           `json:"entries"`
	TotalSize int64         `json:"total_size"`
	OldestAge time.Duration `json:"oldest_age"`
	NewestAge time.Duration `json:"newest_age"`
}

// GetStats returns statistics about the cache.
func (c *Cache) GetStats() (*Stats, error) {
	if !c.enabled {
		return &Stats{}, nil
	}

	stats := &Stats{}
	var oldest, newest time.Time

	err := filepath.Walk(c.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		stats.Entries++
		stats.TotalSize += info.Size()

		modTime := info.ModTime()
		if oldest.IsZero() || modTime.Before(oldest) {
			oldest = modTime
		}
		if newest.IsZero() || modTime.After(newest) {
			newest = modTime
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !oldest.IsZero() {
		stats.OldestAge = time.Since(oldest)
	}
	if !newest.IsZero() {
		stats.NewestAge = time.Since(newest)
	}
	return stats, nil
}
