package vcs

import (
	"io"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// GitOpener opens repositories with go-git.
type GitOpener struct{}

// NewGitOpener creates a new GitOpener.
func NewGitOpener() *GitOpener {
	return &GitOpener{}
}

// PlainOpen opens the repository rooted at path.
func (o *GitOpener) PlainOpen(path string) (Repository, error) {
	return open(path, false)
}

// PlainOpenWithDetect opens the repository containing path.
func (o *GitOpener) PlainOpenWithDetect(path string) (Repository, error) {
	return open(path, true)
}

func open(path string, detect bool) (Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: detect})
	if err != nil {
		return nil, err
	}
	return newRepository(repo, path), nil
}

// newRepository records the worktree root so that detected repositories
// report their top directory rather than the path they were opened from.
func newRepository(repo *git.Repository, path string) *gitRepository {
	root := path
	if wt, err := repo.Worktree(); err == nil {
		root = wt.Filesystem.Root()
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &gitRepository{repo: repo, path: root}
}

type gitRepository struct {
	repo *git.Repository
	path string
}

func (r *gitRepository) Head() (Head, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return Head{}, err
	}
	h := Head{SHA: ref.Hash().String()}
	if ref.Name().IsBranch() {
		h.Branch = ref.Name().Short()
	}
	return h, nil
}

func (r *gitRepository) Log() (CommitIterator, error) {
	iter, err := r.repo.Log(&git.LogOptions{})
	if err != nil {
		return nil, err
	}
	return &gitCommitIterator{iter: iter}, nil
}

func (r *gitRepository) HeadTree() (Tree, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return nil, err
	}
	commit, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, err
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}
	return &gitTree{tree: tree}, nil
}

func (r *gitRepository) RepoPath() string {
	return r.path
}

type gitCommitIterator struct {
	iter object.CommitIter
}

func (i *gitCommitIterator) ForEach(fn func(Commit) error) error {
	return i.iter.ForEach(func(c *object.Commit) error {
		return fn(gitCommit{c})
	})
}

func (i *gitCommitIterator) Close() {
	i.iter.Close()
}

type gitCommit struct {
	c *object.Commit
}

func (g gitCommit) SHA() string { return g.c.Hash.String() }

func (g gitCommit) Message() string { return g.c.Message }

func (g gitCommit) Author() Signature {
	return Signature{Name: g.c.Author.Name, Email: g.c.Author.Email, When: g.c.Author.When}
}

func (g gitCommit) Changes() (Changes, error) {
	stats, err := g.c.Stats()
	if err != nil {
		return Changes{}, err
	}
	ch := Changes{Files: len(stats)}
	for _, s := range stats {
		ch.Insertions += s.Addition
		ch.Deletions += s.Deletion
	}
	return ch, nil
}

type gitTree struct {
	tree *object.Tree
}

func (t *gitTree) Paths() ([]string, error) {
	var paths []string
	err := t.tree.Files().ForEach(func(f *object.File) error {
		paths = append(paths, f.Name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

func (t *gitTree) File(path string) ([]byte, error) {
	f, err := t.tree.File(path)
	if err != nil {
		return nil, err
	}
	r, err := f.Reader()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

var defaultOpener Opener = NewGitOpener()

// DefaultOpener returns the opener used by the CLI.
func DefaultOpener() Opener {
	return defaultOpener
}

// SetDefaultOpener replaces the opener returned by DefaultOpener.
func SetDefaultOpener(opener Opener) {
	defaultOpener = opener
}
