package analyzer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/panbanda/pyaudit/internal/fileproc"
	"github.com/panbanda/pyaudit/pkg/analyzer/constraint"
	"github.com/panbanda/pyaudit/pkg/analyzer/metrics"
	"github.com/panbanda/pyaudit/pkg/analyzer/smells"
	"github.com/panbanda/pyaudit/pkg/ast"
	"github.com/panbanda/pyaudit/pkg/parser"
	"github.com/panbanda/pyaudit/pkg/report"
	"github.com/panbanda/pyaudit/pkg/solver"
	"github.com/panbanda/pyaudit/pkg/source"
)

// DefaultMemoSize is the number of reports remembered by content.
const DefaultMemoSize = 512

// Ensure Engine implements FileAnalyzer.
var _ FileAnalyzer[[]report.Outcome] = (*Engine)(nil)

// Engine analyzes Python files. Configuration is fixed at construction;
// the engine holds no per-file state and is safe for concurrent use.
type Engine struct {
	thresholds  smells.Thresholds
	capability  solver.Capability
	logger      *slog.Logger
	sequential  bool
	memoSize    int
	workers     int
	maxFileSize int64

	collector *metrics.Collector
	detector  *smells.Detector
	checker   *constraint.Checker
	memo      *lru.Cache[memoKey, *report.Report]
}

type memoKey struct {
	hash uint64
	size int
}

// Option is a functional option for configuring Engine.
type Option func(*Engine)

// WithThresholds sets the smell thresholds.
func WithThresholds(t smells.Thresholds) Option {
	return func(e *Engine) {
		e.thresholds = t
	}
}

// WithCapability sets the solver capability used by the semantic checks.
func WithCapability(c solver.Capability) Option {
	return func(e *Engine) {
		e.capability = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithSequentialPasses runs the passes of a file one after another
// instead of concurrently.
func WithSequentialPasses(sequential bool) Option {
	return func(e *Engine) {
		e.sequential = sequential
	}
}

// WithMemoSize bounds the content memo (0 disables it).
func WithMemoSize(n int) Option {
	return func(e *Engine) {
		e.memoSize = n
	}
}

// WithWorkers sets the number of files analyzed concurrently (0 = 2x NumCPU).
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithMaxFileSize sets the maximum file size to analyze (0 = no limit).
func WithMaxFileSize(maxSize int64) Option {
	return func(e *Engine) {
		e.maxFileSize = maxSize
	}
}

// New creates an engine. Without options it uses the default thresholds
// and the default solver capability.
func New(opts ...Option) *Engine {
	e := &Engine{
		thresholds: smells.DefaultThresholds(),
		capability: solver.Default(),
		logger:     slog.Default(),
		memoSize:   DefaultMemoSize,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.collector = metrics.New()
	e.detector = smells.New(e.thresholds)
	e.checker = constraint.New(e.capability, constraint.WithLogger(e.logger))
	if e.memoSize > 0 {
		memo, err := lru.New[memoKey, *report.Report](e.memoSize)
		if err == nil {
			e.memo = memo
		}
	}
	return e
}

// Thresholds returns the smell thresholds in use.
func (e *Engine) Thresholds() smells.Thresholds {
	return e.thresholds
}

// AnalyzeSource analyzes one file's content with a parser of its own.
func (e *Engine) AnalyzeSource(ctx context.Context, path string, src []byte) (*report.Report, error) {
	psr := parser.New()
	defer psr.Close()
	return e.AnalyzeWith(ctx, psr, path, src)
}

// AnalyzeWith analyzes one file's content using psr, which must not be
// shared with another goroutine. A source identical to one analyzed
// before yields a copy of the earlier report keyed to path.
func (e *Engine) AnalyzeWith(ctx context.Context, psr *parser.Parser, path string, src []byte) (*report.Report, error) {
	key := memoKey{hash: xxhash.Sum64(src), size: len(src)}
	if e.memo != nil {
		if r, ok := e.memo.Get(key); ok {
			e.logger.Debug("memo hit", "path", path)
			return r.WithPath(path), nil
		}
	}

	tree, err := psr.Parse(ctx, path, src)
	if err != nil {
		e.logger.Debug("parse failed", "path", path, "error", err)
		return nil, err
	}

	r, err := e.AnalyzeTree(ctx, tree)
	if err != nil {
		return nil, err
	}
	if e.memo != nil && ctx.Err() == nil {
		e.memo.Add(key, r.WithPath(path))
	}
	return r, nil
}

// AnalyzeTree runs the structural passes (metrics, then smells) and the
// semantic checks over tree and assembles their results. A panic in any
// pass is returned as an error.
func (e *Engine) AnalyzeTree(ctx context.Context, tree *ast.Tree) (*report.Report, error) {
	var (
		m        metrics.Result
		findings []smells.Finding
		issues   []constraint.Issue
	)
	structural := func() {
		m = e.collector.Collect(tree)
		findings = e.detector.Detect(tree, m)
	}
	semantic := func() {
		issues = e.checker.Check(ctx, tree)
	}

	if e.sequential {
		for _, pass := range []func(){structural, semantic} {
			if r := panics.Try(pass); r != nil {
				return nil, fmt.Errorf("analyze %s: %w", tree.Path(), r.AsError())
			}
		}
	} else {
		var wg conc.WaitGroup
		wg.Go(structural)
		wg.Go(semantic)
		if r := wg.WaitAndRecover(); r != nil {
			return nil, fmt.Errorf("analyze %s: %w", tree.Path(), r.AsError())
		}
	}

	return report.Assemble(tree.Path(), m, findings, issues), nil
}

// AnalyzeFiles analyzes files read from src concurrently and returns one
// outcome per file in the order given. Files that cannot be read or
// parsed yield failed outcomes. Progress is tracked via context using
// WithTracker.
func (e *Engine) AnalyzeFiles(ctx context.Context, files []string, src source.ContentSource) []report.Outcome {
	opts := fileproc.Options[report.Outcome]{
		Workers:     e.workers,
		MaxFileSize: e.maxFileSize,
	}
	if tracker := TrackerFromContext(ctx); tracker != nil {
		tracker.Add(len(files))
		opts.OnDone = func(path string, o report.Outcome) {
			tracker.Tick(path, !o.OK())
		}
	}

	return fileproc.MapSources(ctx, files, src, opts,
		func(ctx context.Context, psr *parser.Parser, path string, content []byte) report.Outcome {
			r, err := e.AnalyzeWith(ctx, psr, path, content)
			if err != nil {
				return report.Failed(path, err)
			}
			return report.Succeeded(r)
		},
		func(path string, err error) report.Outcome {
			e.logger.Debug("file skipped", "path", path, "error", err)
			return report.Failed(path, err)
		})
}

// Analyze analyzes files on the local filesystem.
func (e *Engine) Analyze(ctx context.Context, files []string) ([]report.Outcome, error) {
	outcomes := e.AnalyzeFiles(ctx, files, source.NewFilesystem())
	return outcomes, ctx.Err()
}

// Close drops the memoized reports.
func (e *Engine) Close() {
	if e.memo != nil {
		e.memo.Purge()
	}
}
