package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"

	"github.com/panbanda/pyaudit/internal/vcs"
	"github.com/panbanda/pyaudit/pkg/report"
	"github.com/panbanda/pyaudit/pkg/stats"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// document is the on-disk form of one project.
type document struct {
	Project  Project                    `json:"project"`
	Commits  []vcs.CommitInfo           `json:"commits"`
	Reports  map[string]json.RawMessage `json:"reports"`
	Failures map[string]Failure         `json:"failures"`
	Summary  *stats.Summary             `json:"summary,omitempty"`
}

// JSONStore keeps one JSON document per project under a directory.
// Reports are validated against the report schema when read back.
// It is safe for concurrent use.
type JSONStore struct {
	dir    string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewJSON creates a JSON store rooted at dir.
func NewJSON(dir string, logger *slog.Logger) (*JSONStore, error) {
	if dir == "" {
		return nil, errors.New("json store: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("json store: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JSONStore{dir: dir, logger: logger}, nil
}

func (s *JSONStore) file(project string) string {
	return filepath.Join(s.dir, unsafeName.ReplaceAllString(project, "_")+".json")
}

func (s *JSONStore) load(project string) (*document, error) {
	data, err := os.ReadFile(s.file(project))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("project %q: %w", project, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("project %q: %w", project, err)
	}
	return &doc, nil
}

// update loads the project's document, or starts an empty one, applies fn
// and writes the result atomically.
func (s *JSONStore) update(project string, fn func(*document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(project)
	if errors.Is(err, ErrNotFound) {
		doc = &document{Project: Project{Name: project}}
	} else if err != nil {
		return err
	}
	if doc.Reports == nil {
		doc.Reports = make(map[string]json.RawMessage)
	}
	if doc.Failures == nil {
		doc.Failures = make(map[string]Failure)
	}
	fn(doc)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	path := s.file(project)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// SaveProject implements Store.
func (s *JSONStore) SaveProject(_ context.Context, p Project) error {
	return s.update(p.Name, func(d *document) {
		d.Project = p
	})
}

// SaveCommits implements Store.
func (s *JSONStore) SaveCommits(_ context.Context, project string, commits []vcs.CommitInfo) error {
	return s.update(project, func(d *document) {
		d.Commits = append([]vcs.CommitInfo(nil), commits...)
	})
}

// SaveReport implements Store.
func (s *JSONStore) SaveReport(_ context.Context, project string, r *report.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.update(project, func(d *document) {
		d.Reports[r.Path] = data
		delete(d.Failures, r.Path)
	})
}

// SaveFailure implements Store.
func (s *JSONStore) SaveFailure(_ context.Context, project, path string, cause error) error {
	return s.update(project, func(d *document) {
		d.Failures[path] = Failure{Path: path, Error: errorText(cause)}
		delete(d.Reports, path)
	})
}

// SaveSummary implements Store.
func (s *JSONStore) SaveSummary(_ context.Context, project string, sum stats.Summary) error {
	return s.update(project, func(d *document) {
		d.Summary = &sum
	})
}

// Project implements Store.
func (s *JSONStore) Project(_ context.Context, name string) (Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load(name)
	if err != nil {
		return Project{}, err
	}
	return doc.Project, nil
}

// Commits returns the stored commit history of a project.
func (s *JSONStore) Commits(_ context.Context, project string) ([]vcs.CommitInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load(project)
	if err != nil {
		return nil, err
	}
	return doc.Commits, nil
}

// Failures returns the stored failures of a project ordered by path.
func (s *JSONStore) Failures(_ context.Context, project string) ([]Failure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load(project)
	if err != nil {
		return nil, err
	}
	failures := make([]Failure, 0, len(doc.Failures))
	for _, f := range doc.Failures {
		failures = append(failures, f)
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].Path < failures[j].Path })
	return failures, nil
}

// Summary returns the stored project summary.
func (s *JSONStore) Summary(_ context.Context, project string) (stats.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load(project)
	if err != nil {
		return stats.Summary{}, err
	}
	if doc.Summary == nil {
		return stats.Summary{}, fmt.Errorf("summary of %q: %w", project, ErrNotFound)
	}
	return *doc.Summary, nil
}

// Reports implements Store. A stored report that fails schema
// validation is an error.
func (s *JSONStore) Reports(_ context.Context, project string) ([]*report.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load(project)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(doc.Reports))
	for p := range doc.Reports {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	reports := make([]*report.Report, 0, len(paths))
	for _, p := range paths {
		r, err := report.Decode(doc.Reports[p])
		if err != nil {
			s.logger.Debug("stored report rejected", "project", project, "path", p, "error", err)
			return nil, fmt.Errorf("report %s: %w", p, err)
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// Close implements Store.
func (s *JSONStore) Close() error {
	return nil
}

var _ Store = (*JSONStore)(nil)
