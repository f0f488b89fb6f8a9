package watch

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/panbanda/pyaudit/pkg/config"
)

// recorder collects callback paths.
type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) record(_ context.Context, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

// waitFor polls cond until it holds or two seconds pass.
func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func newTestWatcher(t *testing.T, dir string, cb Callback) *Watcher {
	t.Helper()
	w, err := NewWatcher(dir, config.DefaultConfig(), cb, WithDebounce(50*time.Millisecond), WithOutput(io.Discard))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func TestNewWatcher(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := config.DefaultConfig()

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
			w, err := NewWatcher(tmpDir, cfg, nil, WithDebounce(tt.debounce))
			if err != nil {
				t.Fatalf("NewWatcher() error = %v", err)
			}
			defer w.Stop()

			if w.debounce != tt.want {
				t.Errorf("debounce = %v, want %v", w.debounce, tt.want)
			}
			if w.path != tmpDir {
				t.Errorf("path = %v, want %v", w.path, tmpDir)
			}
		})
	}
}

func TestWatcher_handleEvent(t *testing.T) {
	tmpDir := t.TempDir()
	w := newTestWatcher(t, tmpDir, nil)

	tests := []struct {
		name    string
		event   fsnotify.Event
		pending bool
	}{
		{"write python", fsnotify.Event{Name: filepath.Join(tmpDir, "a.py"), Op: fsnotify.Write}, true},
		{"create pyw", fsnotify.Event{Name: filepath.Join(tmpDir, "b.pyw"), Op: fsnotify.Create}, true},
		{"remove python", fsnotify.Event{Name: filepath.Join(tmpDir, "c.py"), Op: fsnotify.Remove}, false},
		{"chmod python", fsnotify.Event{Name: filepath.Join(tmpDir, "d.py"), Op: fsnotify.Chmod}, false},
		{"write text", fsnotify.Event{Name: filepath.Join(tmpDir, "notes.txt"), Op: fsnotify.Write}, false},
		{"write in venv", fsnotify.Event{Name: filepath.Join(tmpDir, "venv", "lib.py"), Op: fsnotify.Write}, false},
		{"write in pycache", fsnotify.Event{Name: filepath.Join(tmpDir, "pkg", "__pycache__", "m.py"), Op: fsnotify.Write}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w.mu.Lock()
			w.pending = make(map[string]time.Time)
			w.mu.Unlock()

			w.handleEvent(tt.event)

			if got := w.Pending() == 1; got != tt.pending {
				t.Errorf("pending = %v, want %v", got, tt.pending)
			}
		})
	}
}

func TestWatcher_processPending(t *testing.T) {
	rec := &recorder{}
	w := newTestWatcher(t, t.TempDir(), rec.record)

	old := time.Now().Add(-time.Second)
	w.pending["/x/b.py"] = old
	w.pending["/x/a.py"] = old
	w.pending["/x/fresh.py"] = time.Now()

	w.processPending(context.Background())

	if !waitFor(t, func() bool { return len(rec.snapshot()) == 2 }) {
		t.Fatalf("callbacks = %v, want 2", rec.snapshot())
	}
	got := rec.snapshot()
	if got[0] != "/x/a.py" || got[1] != "/x/b.py" {
		t.Errorf("callback order = %v, want sorted", got)
	}
	if w.Pending() != 1 {
		t.Errorf("pending = %d, want the fresh change to wait", w.Pending())
	}
}

func TestWatcher_processPending_NoCallback(t *testing.T) {
	w := newTestWatcher(t, t.TempDir(), nil)
	w.pending["/x/a.py"] = time.Now().Add(-time.Second)

	w.processPending(context.Background())

	if w.Pending() != 0 {
		t.Error("ready changes should be dropped without a callback")
	}
}

func TestWatcher_Start_Context(t *testing.T) {
	w := newTestWatcher(t, t.TempDir(), nil)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Start() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Error("Start() did not return after context cancellation")
	}
}

func TestWatcher_Start_FileChange(t *testing.T) {
	tmpDir := t.TempDir()
	rec := &recorder{}
	w := newTestWatcher(t, tmpDir, rec.record)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)
	time.Sleep(100 * time.Millisecond)

	testFile := filepath.Join(tmpDir, "calc.py")
	if err := os.WriteFile(testFile, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "readme.md"), []byte("# hi\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if !waitFor(t, func() bool { return len(rec.snapshot()) > 0 }) {
		t.Fatal("callback should be called when a Python file is written")
	}
	for _, p := range rec.snapshot() {
		if p != testFile {
			t.Errorf("callback path = %v, want %v", p, testFile)
		}
	}
}

func TestWatcher_Start_NewDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	rec := &recorder{}
	w := newTestWatcher(t, tmpDir, rec.record)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)
	time.Sleep(100 * time.Millisecond)

	sub := filepath.Join(tmpDir, "pkg")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool {
		for _, d := range w.WatchedDirs() {
			if d == sub {
				return true
			}
		}
		return false
	}) {
		t.Fatal("new directory should be watched")
	}

	target := filepath.Join(sub, "mod.py")
	if err := os.WriteFile(target, []byte("y = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { return len(rec.snapshot()) > 0 }) {
		t.Fatal("change in new directory should reach the callback")
	}
}

func TestWatcher_Start_ExcludedDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	for _, dir := range []string{"venv", "__pycache__", "src"} {
		if err := os.MkdirAll(filepath.Join(tmpDir, dir), 0o755); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
	}
	w := newTestWatcher(t, tmpDir, nil)

	if err := w.addTree(tmpDir); err != nil {
		t.Fatalf("addTree() error = %v", err)
	}

	watched := map[string]bool{}
	for _, p := range w.WatchedDirs() {
		watched[filepath.Base(p)] = true
	}
	if watched["venv"] || watched["__pycache__"] {
		t.Errorf("excluded directories are watched: %v", w.WatchedDirs())
	}
	if !watched["src"] {
		t.Errorf("src should be watched: %v", w.WatchedDirs())
	}
}

func TestWatcher_Debounce(t *testing.T) {
	rec := &recorder{}
	w := newTestWatcher(t, t.TempDir(), rec.record)
	path := filepath.Join(w.path, "a.py")

	for range 5 {
		w.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Write})
	}
	w.processPending(context.Background())
	if len(rec.snapshot()) != 0 {
		t.Error("change inside the debounce window should wait")
	}

	time.Sleep(80 * time.Millisecond)
	w.processPending(context.Background())

	if !waitFor(t, func() bool { return len(rec.snapshot()) == 1 }) {
		t.Errorf("callbacks = %v, want exactly one", rec.snapshot())
	}
}

func TestWatcher_ConcurrentHandleEvent(t *testing.T) {
	w := newTestWatcher(t, t.TempDir(), nil)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := filepath.Join(w.path, "f"+string(rune('a'+i%26))+".py")
			w.handleEvent(fsnotify.Event{Name: name, Op: fsnotify.Write})
		}()
	}
	wg.Wait()

	if w.Pending() != 26 {
		t.Errorf("pending = %d, want 26", w.Pending())
	}
}
