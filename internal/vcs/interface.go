// Package vcs reads git repositories that hold Python projects: the HEAD
// snapshot that gets analyzed and the commit history stored with it.
package vcs

import "time"

// Repository is an opened git repository.
type Repository interface {
	// Head resolves the checked-out commit.
	Head() (Head, error)
	// Log walks the commits reachable from HEAD, newest first.
	Log() (CommitIterator, error)
	// HeadTree returns the file tree of the HEAD commit.
	HeadTree() (Tree, error)
	// RepoPath returns the absolute worktree root.
	RepoPath() string
}

// Head is the resolved HEAD of a repository.
type Head struct {
	// Branch is the short branch name, empty when HEAD is detached.
	Branch string
	SHA    string
}

// Name returns the branch, or the commit SHA for a detached HEAD.
func (h Head) Name() string {
	if h.Branch != "" {
		return h.Branch
	}
	return h.SHA
}

// CommitIterator walks commits. Returning storer.ErrStop from fn ends the
// walk without error.
type CommitIterator interface {
	ForEach(fn func(Commit) error) error
	Close()
}

// Signature identifies a commit author.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// Changes sums what a commit changed against its first parent.
type Changes struct {
	Files      int
	Insertions int
	Deletions  int
}

// Commit is one entry of a history walk.
type Commit interface {
	SHA() string
	Author() Signature
	Message() string
	// Changes diffs the commit against its first parent. It fails when
	// the parent is missing from a shallow clone.
	Changes() (Changes, error)
}

// Tree is the file tree of one commit.
type Tree interface {
	// Paths returns the slash-separated path of every file, recursively.
	Paths() ([]string, error)
	// File returns the content of the file at path.
	File(path string) ([]byte, error)
}

// Opener opens git repositories.
type Opener interface {
	// PlainOpen opens the repository rooted at path.
	PlainOpen(path string) (Repository, error)
	// PlainOpenWithDetect opens the repository containing path, searching
	// parent directories for .git.
	PlainOpenWithDetect(path string) (Repository, error)
}
