package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/panbanda/pyaudit/internal/vcs"
	"github.com/panbanda/pyaudit/pkg/analyzer/constraint"
	"github.com/panbanda/pyaudit/pkg/analyzer/metrics"
	"github.com/panbanda/pyaudit/pkg/analyzer/smells"
	"github.com/panbanda/pyaudit/pkg/report"
	"github.com/panbanda/pyaudit/pkg/stats"
)

const projectCacheSize = 256

const schema = `
CREATE TABLE IF NOT EXISTS projects (
  id SERIAL PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  url TEXT NOT NULL DEFAULT '',
  branch TEXT NOT NULL DEFAULT '',
  head_sha TEXT NOT NULL DEFAULT '',
  file_types JSONB NOT NULL DEFAULT '{}',
  analyzed_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS commits (
  project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
  sha TEXT NOT NULL,
  author TEXT NOT NULL,
  email TEXT NOT NULL,
  message TEXT NOT NULL,
  committed_at TIMESTAMP WITH TIME ZONE NOT NULL,
  files_changed INTEGER NOT NULL,
  insertions INTEGER NOT NULL,
  deletions INTEGER NOT NULL,
  UNIQUE (project_id, sha)
);

CREATE TABLE IF NOT EXISTS file_reports (
  id SERIAL PRIMARY KEY,
  project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
  path TEXT NOT NULL,
  total_lines INTEGER NOT NULL,
  effective_lines INTEGER NOT NULL,
  class_count INTEGER NOT NULL,
  import_count INTEGER NOT NULL,
  fingerprint TEXT NOT NULL,
  UNIQUE (project_id, path)
);

CREATE TABLE IF NOT EXISTS function_records (
  report_id INTEGER NOT NULL REFERENCES file_reports(id) ON DELETE CASCADE,
  ord INTEGER NOT NULL,
  name TEXT NOT NULL,
  start_line INTEGER NOT NULL,
  line_count INTEGER NOT NULL,
  param_count INTEGER NOT NULL,
  complexity INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS smell_findings (
  report_id INTEGER NOT NULL REFERENCES file_reports(id) ON DELETE CASCADE,
  ord INTEGER NOT NULL,
  kind TEXT NOT NULL,
  severity TEXT NOT NULL,
  message TEXT NOT NULL,
  function TEXT NOT NULL,
  line INTEGER NOT NULL,
  value INTEGER NOT NULL,
  threshold INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS semantic_issues (
  report_id INTEGER NOT NULL REFERENCES file_reports(id) ON DELETE CASCADE,
  ord INTEGER NOT NULL,
  kind TEXT NOT NULL,
  function TEXT NOT NULL,
  line INTEGER NOT NULL,
  description TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS file_failures (
  project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
  path TEXT NOT NULL,
  error TEXT NOT NULL,
  UNIQUE (project_id, path)
);

CREATE TABLE IF NOT EXISTS project_summaries (
  project_id INTEGER PRIMARY KEY REFERENCES projects(id) ON DELETE CASCADE,
  summary JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_file_reports_project_id ON file_reports (project_id);
CREATE INDEX IF NOT EXISTS idx_function_records_report_id ON function_records (report_id);
CREATE INDEX IF NOT EXISTS idx_smell_findings_report_id ON smell_findings (report_id);
CREATE INDEX IF NOT EXISTS idx_semantic_issues_report_id ON semantic_issues (report_id);
`

// PostgresStore keeps analyses in normalized PostgreSQL tables through
// the pgx driver. Project ids are cached by name.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger

	schemaOnce sync.Once
	schemaErr  error

	projects *lru.Cache[string, int64]
}

// NewPostgres connects to dsn and creates the schema if needed.
func NewPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres store: %w", err)
	}
	cache, err := lru.New[string, int64](projectCacheSize)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &PostgresStore{db: db, logger: logger, projects: cache}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, schema)
	})
	return s.schemaErr
}

// projectID returns the id of project, creating the row when create is set.
func (s *PostgresStore) projectID(ctx context.Context, name string, create bool) (int64, error) {
	if id, ok := s.projects.Get(name); ok {
		return id, nil
	}
	s.logger.Debug("project cache miss", "project", name)

	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM projects WHERE name = $1`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		if !create {
			return 0, fmt.Errorf("project %q: %w", name, ErrNotFound)
		}
		err = s.db.QueryRowContext(ctx, `
INSERT INTO projects (name) VALUES ($1)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id`, name).Scan(&id)
	}
	if err != nil {
		return 0, err
	}
	s.projects.Add(name, id)
	return id, nil
}

// SaveProject implements Store.
func (s *PostgresStore) SaveProject(ctx context.Context, p Project) error {
	fileTypes, err := json.Marshal(p.FileTypes)
	if err != nil {
		return err
	}
	var id int64
	err = s.db.QueryRowContext(ctx, `
INSERT INTO projects (name, url, branch, head_sha, file_types, analyzed_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (name)
DO UPDATE SET url=EXCLUDED.url,
  branch=EXCLUDED.branch,
  head_sha=EXCLUDED.head_sha,
  file_types=EXCLUDED.file_types,
  analyzed_at=EXCLUDED.analyzed_at
RETURNING id`,
		p.Name, p.URL, p.Branch, p.HeadSHA, string(fileTypes), p.AnalyzedAt).Scan(&id)
	if err != nil {
		return err
	}
	s.projects.Add(p.Name, id)
	return nil
}

// SaveCommits implements Store.
func (s *PostgresStore) SaveCommits(ctx context.Context, project string, commits []vcs.CommitInfo) error {
	pid, err := s.projectID(ctx, project, true)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range commits {
		_, err := tx.ExecContext(ctx, `
INSERT INTO commits (project_id, sha, author, email, message, committed_at, files_changed, insertions, deletions)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (project_id, sha) DO NOTHING`,
			pid, c.SHA, c.Author, c.Email, c.Message, c.Date, c.FilesChanged, c.Insertions, c.Deletions)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveReport implements Store.
func (s *PostgresStore) SaveReport(ctx context.Context, project string, r *report.Report) error {
	pid, err := s.projectID(ctx, project, true)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var rid int64
	err = tx.QueryRowContext(ctx, `
INSERT INTO file_reports (project_id, path, total_lines, effective_lines, class_count, import_count, fingerprint)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (project_id, path)
DO UPDATE SET total_lines=EXCLUDED.total_lines,
  effective_lines=EXCLUDED.effective_lines,
  class_count=EXCLUDED.class_count,
  import_count=EXCLUDED.import_count,
  fingerprint=EXCLUDED.fingerprint
RETURNING id`,
		pid, r.Path, r.TotalLines, r.EffectiveLines, r.ClassCount, r.ImportCount, r.FingerprintHex()).Scan(&rid)
	if err != nil {
		return err
	}

	for _, table := range []string{"function_records", "smell_findings", "semantic_issues"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE report_id = $1`, rid); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM file_failures WHERE project_id = $1 AND path = $2`, pid, r.Path); err != nil {
		return err
	}

	for i, fn := range r.Functions {
		_, err := tx.ExecContext(ctx, `
INSERT INTO function_records (report_id, ord, name, start_line, line_count, param_count, complexity)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			rid, i, fn.Name, fn.StartLine, fn.LineCount, fn.ParamCount, fn.Complexity)
		if err != nil {
			return err
		}
	}
	for i, f := range r.Smells {
		_, err := tx.ExecContext(ctx, `
INSERT INTO smell_findings (report_id, ord, kind, severity, message, function, line, value, threshold)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			rid, i, string(f.Kind), string(f.Severity), f.Message, f.Function, f.Line, f.Value, f.Threshold)
		if err != nil {
			return err
		}
	}
	for i, is := range r.Issues {
		_, err := tx.ExecContext(ctx, `
INSERT INTO semantic_issues (report_id, ord, kind, function, line, description)
VALUES ($1,$2,$3,$4,$5,$6)`,
			rid, i, string(is.Kind), is.Function, is.Line, is.Description)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveFailure implements Store.
func (s *PostgresStore) SaveFailure(ctx context.Context, project, path string, cause error) error {
	pid, err := s.projectID(ctx, project, true)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM file_reports WHERE project_id = $1 AND path = $2`, pid, path); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO file_failures (project_id, path, error) VALUES ($1,$2,$3)
ON CONFLICT (project_id, path) DO UPDATE SET error=EXCLUDED.error`,
		pid, path, errorText(cause))
	if err != nil {
		return err
	}
	return tx.Commit()
}

// SaveSummary implements Store.
func (s *PostgresStore) SaveSummary(ctx context.Context, project string, sum stats.Summary) error {
	pid, err := s.projectID(ctx, project, true)
	if err != nil {
		return err
	}
	data, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO project_summaries (project_id, summary) VALUES ($1,$2)
ON CONFLICT (project_id) DO UPDATE SET summary=EXCLUDED.summary`,
		pid, string(data))
	return err
}

// Project implements Store.
func (s *PostgresStore) Project(ctx context.Context, name string) (Project, error) {
	var (
		p         Project
		fileTypes []byte
	)
	err := s.db.QueryRowContext(ctx, `
SELECT name, url, branch, head_sha, file_types, analyzed_at
FROM projects WHERE name = $1`, name).
		Scan(&p.Name, &p.URL, &p.Branch, &p.HeadSHA, &fileTypes, &p.AnalyzedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, fmt.Errorf("project %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return Project{}, err
	}
	if err := json.Unmarshal(fileTypes, &p.FileTypes); err != nil {
		return Project{}, err
	}
	return p, nil
}

// Reports implements Store.
func (s *PostgresStore) Reports(ctx context.Context, project string) ([]*report.Report, error) {
	pid, err := s.projectID(ctx, project, false)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, path, total_lines, effective_lines, class_count, import_count
FROM file_reports WHERE project_id = $1 ORDER BY path`, pid)
	if err != nil {
		return nil, err
	}
	var (
		ids     []int64
		reports []*report.Report
	)
	for rows.Next() {
		var (
			id int64
			r  report.Report
		)
		if err := rows.Scan(&id, &r.Path, &r.TotalLines, &r.EffectiveLines, &r.ClassCount, &r.ImportCount); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
		reports = append(reports, &r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*report.Report, 0, len(reports))
	for i, r := range reports {
		full, err := s.loadChildren(ctx, ids[i], r)
		if err != nil {
			return nil, err
		}
		out = append(out, full)
	}
	return out, nil
}

func (s *PostgresStore) loadChildren(ctx context.Context, rid int64, r *report.Report) (*report.Report, error) {
	var (
		m      = metrics.Result{TotalLines: r.TotalLines, EffectiveLines: r.EffectiveLines, ClassCount: r.ClassCount, ImportCount: r.ImportCount}
		found  []smells.Finding
		issues []constraint.Issue
	)

	err := s.each(ctx, `SELECT name, start_line, line_count, param_count, complexity
FROM function_records WHERE report_id = $1 ORDER BY ord`, rid, func(rows *sql.Rows) error {
		var fn metrics.FunctionRecord
		if err := rows.Scan(&fn.Name, &fn.StartLine, &fn.LineCount, &fn.ParamCount, &fn.Complexity); err != nil {
			return err
		}
		m.Functions = append(m.Functions, fn)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = s.each(ctx, `SELECT kind, severity, message, function, line, value, threshold
FROM smell_findings WHERE report_id = $1 ORDER BY ord`, rid, func(rows *sql.Rows) error {
		var f smells.Finding
		if err := rows.Scan(&f.Kind, &f.Severity, &f.Message, &f.Function, &f.Line, &f.Value, &f.Threshold); err != nil {
			return err
		}
		found = append(found, f)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = s.each(ctx, `SELECT kind, function, line, description
FROM semantic_issues WHERE report_id = $1 ORDER BY ord`, rid, func(rows *sql.Rows) error {
		var is constraint.Issue
		if err := rows.Scan(&is.Kind, &is.Function, &is.Line, &is.Description); err != nil {
			return err
		}
		issues = append(issues, is)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return report.Assemble(r.Path, m, found, issues), nil
}

func (s *PostgresStore) each(ctx context.Context, query string, arg any, fn func(*sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.projects.Purge()
	return s.db.Close()
}

var _ Store = (*PostgresStore)(nil)
