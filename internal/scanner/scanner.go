// Package scanner finds the Python sources to analyze under a set of paths.
package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/panbanda/pyaudit/pkg/config"
	"github.com/panbanda/pyaudit/pkg/parser"
)

// Scanner finds Python source files in a directory.
type Scanner struct {
	config *config.Config

	// matcher holds config patterns, relative to the scanned root.
	matcher gitignore.Matcher
	// ignore holds .gitignore patterns, relative to gitRoot.
	ignore  gitignore.Matcher
	gitRoot string
}

// NewScanner creates a new file scanner.
func NewScanner(cfg *config.Config) *Scanner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Scanner{config: cfg}
}

// findGitRoot finds the root of the git repository by looking for .git directory.
// Returns empty string if not in a git repository.
func findGitRoot(start string) string {
	dir := start
	for {
		gitDir := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadExcludePatterns builds the matchers for a scan of root. Excluded
// directory names and config patterns use gitignore syntax; .gitignore
// files are read from the enclosing repository when enabled.
func (s *Scanner) loadExcludePatterns(root string) {
	s.matcher, s.ignore, s.gitRoot = nil, nil, ""

	var patterns []gitignore.Pattern
	for _, dir := range s.config.Exclude.Dirs {
		patterns = append(patterns, gitignore.ParsePattern(dir+"/", nil))
	}
	for _, pattern := range s.config.Exclude.Patterns {
		patterns = append(patterns, gitignore.ParsePattern(pattern, nil))
	}
	if len(patterns) > 0 {
		s.matcher = gitignore.NewMatcher(patterns)
	}

	if !s.config.Exclude.Gitignore {
		return
	}
	gitRoot := findGitRoot(root)
	if gitRoot == "" {
		// Not a repository: honor a .gitignore at the scanned root only.
		if _, err := os.Stat(filepath.Join(root, ".gitignore")); err != nil {
			return
		}
		gitRoot = root
	}
	gitPatterns, err := gitignore.ReadPatterns(osfs.New(gitRoot), nil)
	if err != nil || len(gitPatterns) == 0 {
		return
	}
	s.ignore = gitignore.NewMatcher(gitPatterns)
	s.gitRoot = gitRoot
}

// isExcluded checks if path, relative to root, matches any exclusion pattern.
func (s *Scanner) isExcluded(root, path string, isDir bool) bool {
	if s.matcher != nil {
		rel, err := filepath.Rel(root, path)
		if err == nil && rel != "." && s.matcher.Match(splitPath(rel), isDir) {
			return true
		}
	}
	if s.ignore != nil {
		rel, err := filepath.Rel(s.gitRoot, path)
		if err == nil && rel != "." && !strings.HasPrefix(rel, "..") && s.ignore.Match(splitPath(rel), isDir) {
			return true
		}
	}
	return false
}

func splitPath(rel string) []string {
	return strings.Split(filepath.ToSlash(rel), "/")
}

// ScanDir recursively scans a directory for Python files.
// Validates that all paths stay within the root directory to prevent traversal attacks.
func (s *Scanner) ScanDir(root string) ([]string, error) {
	files := make([]string, 0, 256)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, err
	}

	s.loadExcludePatterns(absRoot)

	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil || !isWithinRoot(resolved, realRoot) {
				return nil
			}
		}

		if d.IsDir() {
			if path != absRoot && s.isExcluded(absRoot, path, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if !parser.IsPython(path) || s.isExcluded(absRoot, path, false) {
			return nil
		}
		files = append(files, path)
		return nil
	})

	return files, walkErr
}

// ScanPaths scans every path: directories recursively, files directly.
// The result is sorted and free of duplicates.
func (s *Scanner) ScanPaths(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", p, err)
		}

		var found []string
		if info.IsDir() {
			found, err = s.ScanDir(p)
			if err != nil {
				return nil, fmt.Errorf("scan %s: %w", p, err)
			}
		} else if ok, _ := s.ScanFile(p); ok {
			abs, err := filepath.Abs(p)
			if err != nil {
				return nil, err
			}
			found = []string{abs}
		}

		for _, f := range found {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// isWithinRoot checks if a path is contained within the root directory.
// Returns false if the path escapes via symlinks or relative paths.
func isWithinRoot(path, root string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	absPath = filepath.Clean(absPath)
	root = filepath.Clean(root)

	// Add separator to prevent "/root2" matching "/root"
	return absPath == root || strings.HasPrefix(absPath, root+string(filepath.Separator))
}

// ScanFile checks if a single file should be analyzed. Explicitly named
// files are checked against the config patterns by base name only.
func (s *Scanner) ScanFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if info.IsDir() || !parser.IsPython(path) {
		return false, nil
	}

	for _, pattern := range s.config.Exclude.Patterns {
		if matched, _ := filepath.Match(pattern, filepath.Base(path)); matched {
			return false, nil
		}
	}
	return true, nil
}

// FilterBySize filters files that exceed the configured maximum size.
// Returns the filtered list and the count of files that were skipped.
// If maxSize is 0, returns the original list unchanged.
func FilterBySize(files []string, maxSize int64) ([]string, int) {
	if maxSize <= 0 {
		return files, 0
	}

	filtered := make([]string, 0, len(files))
	skipped := 0

	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			skipped++
			continue
		}
		if info.Size() > maxSize {
			skipped++
			continue
		}
		filtered = append(filtered, f)
	}

	return filtered, skipped
}
