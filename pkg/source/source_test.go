package source

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/pyaudit/internal/vcs"
)

func TestFilesystemSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.py")
	require.NoError(t, os.WriteFile(path, []byte("x = 1\n"), 0644))

	src := NewFilesystem()
	content, err := src.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", string(content))

	_, err = src.Read(filepath.Join(dir, "nonexistent.py"))
	assert.Error(t, err)

	rooted := NewFilesystemAt(dir)
	content, err = rooted.Read("a.py")
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", string(content))
}

func TestMemorySource(t *testing.T) {
	src := MemorySource{"a.py": []byte("pass\n")}
	content, err := src.Read("a.py")
	require.NoError(t, err)
	assert.Equal(t, "pass\n", string(content))

	_, err = src.Read("b.py")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestTreeSource(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pkg"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pkg", "mod.py"), []byte("def f():\n    pass\n"), 0644))

	w, err := repo.Worktree()
	require.NoError(t, err)
	_, err = w.Add("pkg/mod.py")
	require.NoError(t, err)
	_, err = w.Commit("add module", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	opened, err := vcs.NewGitOpener().PlainOpen(dir)
	require.NoError(t, err)
	tree, err := opened.HeadTree()
	require.NoError(t, err)

	src := NewTree(tree)
	content, err := src.Read("pkg/mod.py")
	require.NoError(t, err)
	assert.Equal(t, "def f():\n    pass\n", string(content))

	_, err = src.Read("missing.py")
	assert.Error(t, err)
}
