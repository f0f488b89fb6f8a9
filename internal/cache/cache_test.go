package cache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/panbanda/pyaudit/pkg/analyzer"
	"github.com/panbanda/pyaudit/pkg/analyzer/metrics"
	"github.com/panbanda/pyaudit/pkg/report"
	"github.com/panbanda/pyaudit/pkg/source"
)

func newTestCache(t *testing.T, fingerprint string) *Cache {
	t.Helper()
	c, err := New(filepath.Join(t.TempDir(), "cache"), 24, true, fingerprint)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

func sampleReport(path string) *report.Report {
	return report.Assemble(path, metrics.Result{
		TotalLines:     3,
		EffectiveLines: 2,
		Functions: []metrics.FunctionRecord{
			{Name: "f", StartLine: 1, LineCount: 2, ParamCount: 1, Complexity: 1},
		},
	}, nil, nil)
}

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()

	c, err := New(filepath.Join(tmpDir, "cache"), 24, true, "fp")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if !c.Enabled() {
		t.Error("cache should be enabled")
	}

	c, err = New("", 0, false, "fp")
	if err != nil {
		t.Fatalf("New() error for disabled cache: %v", err)
	}
	if c.Enabled() {
		t.Error("cache should be disabled")
	}
}

func TestNewCreatesDirectory(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "nested", "cache", "dir")

	if _, err := New(cacheDir, 24, true, ""); err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, err := os.Stat(cacheDir); os.IsNotExist(err) {
		t.Error("New() should create cache directory")
	}
}

func TestSetAndGetWithHash(t *testing.T) {
	c := newTestCache(t, "")

	if err := c.SetWithHash("key", "abc", []byte(`{"x":1}`)); err != nil {
		t.Fatalf("SetWithHash() error: %v", err)
	}

	got, ok := c.GetWithHash("key", "abc")
	if !ok {
		t.Fatal("GetWithHash() should find entry with matching hash")
	}
	if string(got) != `{"x":1}` {
		t.Errorf("GetWithHash() = %s", got)
	}

	if _, ok := c.GetWithHash("key", "other"); ok {
		t.Error("GetWithHash() should miss on hash mismatch")
	}
	if _, ok := c.GetWithHash("missing", "abc"); ok {
		t.Error("GetWithHash() should miss on absent key")
	}
}

func TestInvalidate(t *testing.T) {
	c := newTestCache(t, "")
	_ = c.SetWithHash("key", "h", []byte(`1`))

	if err := c.Invalidate("key"); err != nil {
		t.Fatalf("Invalidate() error: %v", err)
	}
	if _, ok := c.GetWithHash("key", "h"); ok {
		t.Error("entry should be gone after Invalidate()")
	}
}

func TestTTLExpiration(t *testing.T) {
	c := newTestCache(t, "")
	c.ttl = time.Millisecond

	_ = c.SetWithHash("key", "h", []byte(`1`))
	time.Sleep(10 * time.Millisecond)

	if _, ok := c.GetWithHash("key", "h"); ok {
		t.Error("expired entry should not be returned")
	}
	if _, err := os.Stat(c.keyPath("key")); !os.IsNotExist(err) {
		t.Error("expired entry should be removed from disk")
	}
}

func TestHashBytes(t *testing.T) {
	a := HashBytes([]byte("hello"))
	b := HashBytes([]byte("hello"))
	c := HashBytes([]byte("world"))

	if a != b {
		t.Error("same input should produce the same hash")
	}
	if a == c {
		t.Error("different input should produce different hashes")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64", len(a))
	}
}

func TestKeyPathEscapesKey(t *testing.T) {
	c := newTestCache(t, "")
	p := c.keyPath("../../etc/passwd")
	if filepath.Dir(p) != c.dir {
		t.Errorf("keyPath() = %s, want a file directly under %s", p, c.dir)
	}
}

func TestLookupAndStore(t *testing.T) {
	c := newTestCache(t, "fp-1")
	content := []byte("def f(x):\n    return x\n")
	r := sampleReport("a.py")

	if _, ok := c.Lookup("a.py", content); ok {
		t.Fatal("Lookup() should miss on an empty cache")
	}
	if err := c.Store("a.py", content, r); err != nil {
		t.Fatalf("Store() error: %v", err)
	}

	got, ok := c.Lookup("a.py", content)
	if !ok {
		t.Fatal("Lookup() should hit after Store()")
	}
	if got.Fingerprint() != r.Fingerprint() {
		t.Error("cached report differs from the stored one")
	}

	if _, ok := c.Lookup("a.py", []byte("def f(x):\n    return 1\n")); ok {
		t.Error("Lookup() should miss when content changed")
	}
}

func TestLookupMissesUnderOtherSettings(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	content := []byte("x = 1\n")

	first, _ := New(dir, 24, true, "fp-1")
	if err := first.Store("a.py", content, sampleReport("a.py")); err != nil {
		t.Fatalf("Store() error: %v", err)
	}

	second, _ := New(dir, 24, true, "fp-2")
	if _, ok := second.Lookup("a.py", content); ok {
		t.Error("entries written under other settings must not match")
	}
}

func TestLookupDropsInvalidReport(t *testing.T) {
	c := newTestCache(t, "")
	content := []byte("x = 1\n")

	if err := c.SetWithHash("a.py", c.contentHash(content), []byte(`{"path":"a.py"}`)); err != nil {
		t.Fatalf("SetWithHash() error: %v", err)
	}
	if _, ok := c.Lookup("a.py", content); ok {
		t.Error("Lookup() should reject a report that fails validation")
	}
	if _, err := os.Stat(c.keyPath("a.py")); !os.IsNotExist(err) {
		t.Error("invalid entry should be removed")
	}
}

func TestDisabledCache(t *testing.T) {
	c, _ := New("", 0, false, "")

	if err := c.Store("a.py", []byte("x"), sampleReport("a.py")); err != nil {
		t.Errorf("Store() on disabled cache should not error: %v", err)
	}
	if _, ok := c.Lookup("a.py", []byte("x")); ok {
		t.Error("disabled cache should never hit")
	}
	if err := c.Invalidate("a.py"); err != nil {
		t.Errorf("Invalidate() on disabled cache should not error: %v", err)
	}
}

type fakeAnalyzer struct {
	seen [][]string
}

func (f *fakeAnalyzer) AnalyzeFiles(_ context.Context, files []string, src source.ContentSource) []report.Outcome {
	f.seen = append(f.seen, files)
	out := make([]report.Outcome, 0, len(files))
	for _, p := range files {
		if _, err := src.Read(p); err != nil {
			out = append(out, report.Failed(p, err))
			continue
		}
		out = append(out, report.Succeeded(sampleReport(p)))
	}
	return out
}

func TestAnalyzeFiles(t *testing.T) {
	c := newTestCache(t, "fp")
	src := source.MemorySource{
		"a.py": []byte("a = 1\n"),
		"b.py": []byte("b = 1\n"),
	}
	files := []string{"a.py", "missing.py", "b.py"}
	fake := &fakeAnalyzer{}

	first := c.AnalyzeFiles(context.Background(), fake, files, src)
	if len(first) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(first))
	}
	for i, want := range files {
		if first[i].Path != want {
			t.Errorf("outcome %d path = %s, want %s", i, first[i].Path, want)
		}
	}
	if first[1].OK() {
		t.Error("unreadable file should fail")
	}

	tracker := analyzer.NewTracker(nil)
	ctx := analyzer.WithTracker(context.Background(), tracker)
	second := c.AnalyzeFiles(ctx, fake, files, src)

	if len(fake.seen) != 2 {
		t.Fatalf("analyzer called %d times, want 2", len(fake.seen))
	}
	if got := fake.seen[1]; len(got) != 1 || got[0] != "missing.py" {
		t.Errorf("second batch analyzed %v, want only missing.py", got)
	}
	if !second[0].OK() || !second[2].OK() {
		t.Error("cached files should succeed")
	}
	if second[2].Report.Path != "b.py" {
		t.Errorf("cached report path = %s", second[2].Report.Path)
	}
	if tracker.Current() != 2 {
		t.Errorf("tracker current = %d, want 2 cache hits", tracker.Current())
	}

	data, err := json.Marshal(second[0])
	if err != nil || len(data) == 0 {
		t.Errorf("outcome should encode: %v", err)
	}
}

func TestAnalyzeFilesDisabledPassesThrough(t *testing.T) {
	c, _ := New("", 0, false, "")
	fake := &fakeAnalyzer{}
	src := source.MemorySource{"a.py": []byte("a = 1\n")}

	_ = c.AnalyzeFiles(context.Background(), fake, []string{"a.py"}, src)
	_ = c.AnalyzeFiles(context.Background(), fake, []string{"a.py"}, src)

	if len(fake.seen) != 2 || len(fake.seen[1]) != 1 {
		t.Errorf("disabled cache should analyze every file every time, got %v", fake.seen)
	}
}

func TestFallbackSource(t *testing.T) {
	fs := fallbackSource{
		read: source.MemorySource{"a.py": []byte("held")},
		src:  source.MemorySource{"b.py": []byte("fresh")},
	}
	if got, _ := fs.Read("a.py"); string(got) != "held" {
		t.Errorf("Read(a.py) = %q", got)
	}
	if got, _ := fs.Read("b.py"); string(got) != "fresh" {
		t.Errorf("Read(b.py) = %q", got)
	}
	if _, err := fs.Read("c.py"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Read(c.py) error = %v, want not exist", err)
	}
}
