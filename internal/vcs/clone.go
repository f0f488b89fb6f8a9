package vcs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-git/go-git/v5"
)

// DefaultCloneDepth bounds the history fetched for remote repositories.
const DefaultCloneDepth = 200

// ErrInvalidRepoURL is returned when a URL does not name a github or gitee repository.
var ErrInvalidRepoURL = errors.New("invalid repository url")

var repoURLPattern = regexp.MustCompile(`(?:github\.com|gitee\.com)[/:]([^/\s]+)/([^/\s]+?)(?:\.git)?/?$`)

// RepoName derives a filesystem-safe "owner_repo" name from a repository URL.
func RepoName(url string) (string, error) {
	m := repoURLPattern.FindStringSubmatch(strings.TrimSpace(url))
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidRepoURL, url)
	}
	return m[1] + "_" + m[2], nil
}

// IsRemote reports whether target looks like a clonable URL rather than a local path.
func IsRemote(target string) bool {
	return strings.Contains(target, "://") || strings.HasPrefix(target, "git@")
}

// Clone clones url into dir with the given history depth. An existing
// clone in dir is opened instead of fetched again. depth <= 0 fetches the
// full history.
func Clone(ctx context.Context, url, dir string, depth int) (Repository, error) {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return NewGitOpener().PlainOpen(dir)
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, fmt.Errorf("create clone dir: %w", err)
	}
	opts := &git.CloneOptions{
		URL:  url,
		Tags: git.NoTags,
	}
	if depth > 0 {
		opts.Depth = depth
	}
	repo, err := git.PlainCloneContext(ctx, dir, false, opts)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("clone %s: %w", url, err)
	}
	return newRepository(repo, dir), nil
}

// IsDirty returns true if there are uncommitted changes in the working directory.
// Untracked files are not considered dirty.
func IsDirty(repoPath string) (bool, error) {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return false, err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return false, err
	}

	status, err := wt.Status()
	if err != nil {
		return false, err
	}

	for _, s := range status {
		if s.Staging == git.Untracked && s.Worktree == git.Untracked {
			continue
		}
		if s.Staging != git.Unmodified || s.Worktree != git.Unmodified {
			return true, nil
		}
	}

	return false, nil
}

// CurrentBranch returns the current branch name or commit SHA (for detached HEAD).
func CurrentBranch(repo Repository) (string, error) {
	head, err := repo.Head()
	if err != nil {
		return "", err
	}
	return head.Name(), nil
}
