// Package source abstracts where analyzed file content comes from: the
// working tree, a git tree, or memory.
package source

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/panbanda/pyaudit/internal/vcs"
)

// ContentSource provides file content from a specific source.
type ContentSource interface {
	// Read returns the content of the file at path.
	Read(path string) ([]byte, error)
}

// FilesystemSource reads files from the local filesystem.
type FilesystemSource struct {
	root string
}

// NewFilesystem creates a source that reads paths as given.
func NewFilesystem() *FilesystemSource {
	return &FilesystemSource{}
}

// NewFilesystemAt creates a source that resolves relative paths against root.
func NewFilesystemAt(root string) *FilesystemSource {
	return &FilesystemSource{root: root}
}

// Read implements ContentSource.
func (f *FilesystemSource) Read(path string) ([]byte, error) {
	if f.root != "" && !filepath.IsAbs(path) {
		path = filepath.Join(f.root, path)
	}
	return os.ReadFile(path)
}

// TreeSource reads files from a git tree.
// It is safe for concurrent use by multiple goroutines.
type TreeSource struct {
	tree vcs.Tree
	mu   sync.Mutex
}

// NewTree creates a source that reads from a git tree.
func NewTree(tree vcs.Tree) *TreeSource {
	return &TreeSource{tree: tree}
}

// Read implements ContentSource.
// It is safe for concurrent use.
func (t *TreeSource) Read(path string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tree.File(path)
}

// MemorySource serves content held in memory, keyed by path.
type MemorySource map[string][]byte

// Read implements ContentSource.
func (m MemorySource) Read(path string) ([]byte, error) {
	content, ok := m[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, fs.ErrNotExist)
	}
	return content, nil
}

var (
	_ ContentSource = (*FilesystemSource)(nil)
	_ ContentSource = (*TreeSource)(nil)
	_ ContentSource = MemorySource(nil)
)
