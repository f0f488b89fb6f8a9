// Package cache stores per-file reports on disk, keyed by path and
// validated by a BLAKE3 hash of the file content and analysis settings.
package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"

	"github.com/panbanda/pyaudit/pkg/analyzer"
	"github.com/panbanda/pyaudit/pkg/report"
	"github.com/panbanda/pyaudit/pkg/source"
)

// Cache provides file-based caching for analysis results.
type Cache struct {
	dir         string
	ttl         time.Duration
	enabled     bool
	fingerprint string
}

// Entry represents a cached analysis result.
type Entry struct {
	Hash      string          `json:"hash"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// New creates a new cache instance. fingerprint identifies the analysis
// settings; entries written under other settings never match.
func New(dir string, ttlHours int, enabled bool, fingerprint string) (*Cache, error) {
	if !enabled {
		return &Cache{enabled: false}, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	return &Cache{
		dir:         dir,
		ttl:         time.Duration(ttlHours) * time.Hour,
		enabled:     true,
		fingerprint: fingerprint,
	}, nil
}

// Enabled reports whether the cache stores anything.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// HashBytes computes a BLAKE3 hash of bytes and returns it as a hex string.
func HashBytes(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// contentHash binds content to the analysis settings.
func (c *Cache) contentHash(content []byte) string {
	h := blake3.New()
	_, _ = h.Write(content)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(c.fingerprint))
	return hex.EncodeToString(h.Sum(nil))
}

// GetWithHash retrieves a cached entry only if the hash matches.
func (c *Cache) GetWithHash(key, hash string) ([]byte, bool) {
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

	if entry.Hash != hash {
		return nil, false
	}

	if c.ttl > 0 && time.Since(entry.Timestamp) > c.ttl {
		os.Remove(path)
		return nil, false
	}

	return entry.Data, true
}

// SetWithHash stores data in the cache with a hash for validation.
func (c *Cache) SetWithHash(key, hash string, data []byte) error {
	if !c.enabled {
		return nil
	}

	entry := Entry{
		Hash:      hash,
		Timestamp: time.Now(),
		Data:      data,
	}

	entryData, err := json.Marshal(entry)
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
	return os.Remove(c.keyPath(key))
}

// keyPath converts a key to a filesystem path.
func (c *Cache) keyPath(key string) string {
	hash := blake3.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(hash[:])+".json")
}

// Lookup returns the cached report for path if it was computed from the
// same content under the same settings. Entries that no longer match
// the report schema are dropped.
func (c *Cache) Lookup(path string, content []byte) (*report.Report, bool) {
	data, ok := c.GetWithHash(path, c.contentHash(content))
	if !ok {
		return nil, false
	}
	r, err := report.Decode(data)
	if err != nil {
		_ = c.Invalidate(path)
		return nil, false
	}
	return r, true
}

// Store caches r as the report of path for content.
func (c *Cache) Store(path string, content []byte, r *report.Report) error {
	if !c.enabled {
		return nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return c.SetWithHash(path, c.contentHash(content), data)
}

// BatchAnalyzer analyzes a batch of files read from a content source.
type BatchAnalyzer interface {
	AnalyzeFiles(ctx context.Context, files []string, src source.ContentSource) []report.Outcome
}

// AnalyzeFiles answers what it can from the cache and hands the rest to
// a, storing the new reports. Outcomes keep the order of files. Cache
// hits are ticked on the context's progress tracker.
func (c *Cache) AnalyzeFiles(ctx context.Context, a BatchAnalyzer, files []string, src source.ContentSource) []report.Outcome {
	if !c.enabled {
		return a.AnalyzeFiles(ctx, files, src)
	}

	outcomes := make([]report.Outcome, len(files))
	contents := make(source.MemorySource, len(files))
	var (
		misses   []string
		indexes  []int
		hitPaths []string
	)
	for i, path := range files {
		content, err := src.Read(path)
		if err != nil {
			misses = append(misses, path)
			indexes = append(indexes, i)
			continue
		}
		if r, ok := c.Lookup(path, content); ok {
			outcomes[i] = report.Succeeded(r.WithPath(path))
			hitPaths = append(hitPaths, path)
			continue
		}
		contents[path] = content
		misses = append(misses, path)
		indexes = append(indexes, i)
	}

	if tracker := analyzer.TrackerFromContext(ctx); tracker != nil && len(hitPaths) > 0 {
		tracker.Add(len(hitPaths))
		for _, p := range hitPaths {
			tracker.Tick(p, false)
		}
	}

	fresh := a.AnalyzeFiles(ctx, misses, fallbackSource{contents, src})
	for j, o := range fresh {
		outcomes[indexes[j]] = o
		if o.OK() {
			_ = c.Store(o.Path, contents[o.Path], o.Report)
		}
	}
	return outcomes
}

// fallbackSource serves already-read content and defers to src otherwise,
// so read errors surface from the analyzer as usual.
type fallbackSource struct {
	read source.MemorySource
	src  source.ContentSource
}

func (f fallbackSource) Read(path string) ([]byte, error) {
	if content, ok := f.read[path]; ok {
		return content, nil
	}
	return f.src.Read(path)
}
