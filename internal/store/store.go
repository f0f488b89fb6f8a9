// Package store persists repository analyses: project metadata, commit
// history, per-file reports, failures and the project summary.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/panbanda/pyaudit/internal/vcs"
	"github.com/panbanda/pyaudit/pkg/config"
	"github.com/panbanda/pyaudit/pkg/report"
	"github.com/panbanda/pyaudit/pkg/stats"
)

// ErrNotFound is returned when a project has not been stored.
var ErrNotFound = errors.New("not found")

// Project describes one analyzed repository.
type Project struct {
	Name       string         `json:"name"`
	URL        string         `json:"url"`
	Branch     string         `json:"branch"`
	HeadSHA    string         `json:"head_sha"`
	FileTypes  map[string]int `json:"file_types"`
	AnalyzedAt time.Time      `json:"analyzed_at"`
}

// Failure records a file that could not be analyzed.
type Failure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Store persists analyses keyed by project name. Saving a report or a
// failure for a path replaces what was stored for that path before.
type Store interface {
	SaveProject(ctx context.Context, p Project) error
	SaveCommits(ctx context.Context, project string, commits []vcs.CommitInfo) error
	SaveReport(ctx context.Context, project string, r *report.Report) error
	SaveFailure(ctx context.Context, project, path string, cause error) error
	SaveSummary(ctx context.Context, project string, s stats.Summary) error

	// Project returns the stored metadata or ErrNotFound.
	Project(ctx context.Context, name string) (Project, error)
	// Reports returns the stored reports of a project ordered by path.
	Reports(ctx context.Context, project string) ([]*report.Report, error)

	Close() error
}

type options struct {
	logger *slog.Logger
}

// Option is a functional option for configuring a Store.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Open opens the store selected by cfg.
func Open(ctx context.Context, cfg config.StoreConfig, opts ...Option) (Store, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	switch cfg.Driver {
	case config.DriverPostgres:
		return NewPostgres(ctx, cfg.DSN, o.logger)
	case config.DriverJSON, "":
		return NewJSON(cfg.Path, o.logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// SaveOutcomes stores every outcome: reports for analyzed files and
// failures for the rest.
func SaveOutcomes(ctx context.Context, s Store, project string, outcomes []report.Outcome) error {
	for _, o := range outcomes {
		var err error
		if o.OK() {
			err = s.SaveReport(ctx, project, o.Report)
		} else {
			err = s.SaveFailure(ctx, project, o.Path, o.Err)
		}
		if err != nil {
			return fmt.Errorf("save %s: %w", o.Path, err)
		}
	}
	return nil
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
