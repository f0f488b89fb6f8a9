// Package watch re-analyzes Python files when they change on disk.
package watch

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"

	"github.com/panbanda/pyaudit/pkg/config"
	"github.com/panbanda/pyaudit/pkg/parser"
)

// DefaultDebounce is how long a file must stay unchanged before it is
// handed to the callback.
const DefaultDebounce = 500 * time.Millisecond

// Callback handles one changed file.
type Callback func(ctx context.Context, path string)

// Watcher monitors a directory tree for changed Python files.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	config    *config.Config
	debounce  time.Duration
	path      string
	callback  Callback
	out       io.Writer
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[string]time.Time
	runMu   sync.Mutex
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a change is processed.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithOutput sets where change banners are written.
func WithOutput(out io.Writer) Option {
	return func(w *Watcher) {
		w.out = out
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWatcher creates a watcher for the tree rooted at path.
func NewWatcher(path string, cfg *config.Config, cb Callback, opts ...Option) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		config:    cfg,
		debounce:  DefaultDebounce,
		path:      path,
		callback:  cb,
		out:       os.Stdout,
		logger:    slog.Default(),
		pending:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start watches until ctx is done. Changed files are passed to the
// callback one at a time.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.path); err != nil {
		return err
	}

	color.New(color.FgCyan).Fprintf(w.out, "Watching for changes in %s...\n", w.path)
	color.New(color.FgCyan).Fprintln(w.out, "Press Ctrl+C to stop")
	fmt.Fprintln(w.out)

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// addTree watches root and every directory below it that is not excluded.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.path && slices.Contains(w.config.Exclude.Dirs, d.Name()) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *Watcher) relative(path string) string {
	rel, err := filepath.Rel(w.path, path)
	if err != nil {
		return path
	}
	return rel
}

// handleEvent records a write or create of a Python file, and starts
// watching directories created under the root.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	path := event.Name
	if w.config.ShouldExclude(w.relative(path)) {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.addTree(path); err != nil {
				w.logger.Debug("watch directory failed", "path", path, "error", err)
			}
			return
		}
	}

	if !parser.IsPython(path) {
		return
	}

	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processPending(ctx)
		}
	}
}

// processPending hands over files that have been stable for the debounce
// period, in path order.
func (w *Watcher) processPending(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var ready []string
	for path, lastMod := range w.pending {
		if now.Sub(lastMod) >= w.debounce {
			ready = append(ready, path)
		}
	}
	for _, path := range ready {
		delete(w.pending, path)
	}
	w.mu.Unlock()

	if w.callback == nil || len(ready) == 0 {
		return
	}
	slices.Sort(ready)
	go w.run(ctx, ready)
}

func (w *Watcher) run(ctx context.Context, paths []string) {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	for _, path := range paths {
		if ctx.Err() != nil {
			return
		}
		color.New(color.FgYellow).Fprintf(w.out, "\nFile changed: %s\n", w.relative(path))
		w.callback(ctx, path)
	}
}

// Pending returns the number of changes waiting for the debounce period.
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// WatchedDirs returns the watched directories.
func (w *Watcher) WatchedDirs() []string {
	return w.fsWatcher.WatchList()
}
