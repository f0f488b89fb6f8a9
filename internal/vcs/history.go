package vcs

import (
	"path"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/panbanda/pyaudit/pkg/parser"
)

// MaxMessageLength caps stored commit messages, in characters.
const MaxMessageLength = 200

// DefaultSkipDirs are directory names never collected from a tree.
var DefaultSkipDirs = []string{"__pycache__", "venv", "env", ".git", "node_modules", ".tox", "build", "dist"}

// CommitInfo summarizes one commit of the analyzed history.
type CommitInfo struct {
	SHA          string    `json:"sha"`
	Author       string    `json:"author"`
	Email        string    `json:"email"`
	Message      string    `json:"message"`
	Date         time.Time `json:"date"`
	FilesChanged int       `json:"files_changed"`
	Insertions   int       `json:"insertions"`
	Deletions    int       `json:"deletions"`
}

// Commits returns up to limit commits reachable from HEAD, newest first.
// limit <= 0 returns the whole history. Commits whose parents are missing
// from a shallow clone report zero line stats.
func Commits(repo Repository, limit int) ([]CommitInfo, error) {
	iter, err := repo.Log()
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var commits []CommitInfo
	err = iter.ForEach(func(c Commit) error {
		if limit > 0 && len(commits) >= limit {
			return storer.ErrStop
		}
		author := c.Author()
		info := CommitInfo{
			SHA:     c.SHA(),
			Author:  author.Name,
			Email:   author.Email,
			Message: truncateMessage(c.Message()),
			Date:    author.When,
		}
		if ch, err := c.Changes(); err == nil {
			info.FilesChanged = ch.Files
			info.Insertions = ch.Insertions
			info.Deletions = ch.Deletions
		}
		commits = append(commits, info)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return commits, nil
}

func truncateMessage(msg string) string {
	msg = strings.TrimSpace(msg)
	if utf8.RuneCountInString(msg) <= MaxMessageLength {
		return msg
	}
	return string([]rune(msg)[:MaxMessageLength])
}

// PythonFiles lists the Python sources in tree, sorted, skipping any path
// with a directory component in skip. A nil skip uses DefaultSkipDirs.
func PythonFiles(tree Tree, skip []string) ([]string, error) {
	if skip == nil {
		skip = DefaultSkipDirs
	}
	excluded := make(map[string]bool, len(skip))
	for _, d := range skip {
		excluded[d] = true
	}

	paths, err := tree.Paths()
	if err != nil {
		return nil, err
	}
	var files []string
	for _, p := range paths {
		if !parser.IsPython(p) || inSkippedDir(p, excluded) {
			continue
		}
		files = append(files, p)
	}
	sort.Strings(files)
	return files, nil
}

func inSkippedDir(p string, excluded map[string]bool) bool {
	dirs := strings.Split(path.Dir(p), "/")
	for _, d := range dirs {
		if excluded[d] {
			return true
		}
	}
	return false
}

// FileTypeStats counts the files in tree by extension. Files without an
// extension are counted under "(none)".
func FileTypeStats(tree Tree) (map[string]int, error) {
	paths, err := tree.Paths()
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, p := range paths {
		ext := strings.ToLower(path.Ext(p))
		if ext == "" {
			ext = "(none)"
		}
		counts[ext]++
	}
	return counts, nil
}
