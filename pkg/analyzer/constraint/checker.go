// Package constraint finds semantic issues that a bounded constraint
// solver can decide: divisions whose divisor is or may be zero, and
// if/elif conditions that are constant.
//
// Identifiers are modeled as unbounded integers and numeric literals as
// exact rationals. Only two shapes are handed to the solver: a bare
// identifier used as a divisor, and a single comparison between an
// identifier and a numeric literal. Anything else is skipped.
package constraint

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/panbanda/pyaudit/pkg/ast"
	"github.com/panbanda/pyaudit/pkg/solver"
)

var divisionOps = map[string]bool{
	"/": true, "//": true, "%": true,
	"/=": true, "//=": true, "%=": true,
}

// Checker runs the semantic checks over a syntax tree. It holds no
// per-file state and is safe for concurrent use.
type Checker struct {
	capability solver.Capability
	logger     *slog.Logger
}

// Option is a functional option for configuring Checker.
type Option func(*Checker)

// WithLogger sets the logger for inconclusive queries.
func WithLogger(l *slog.Logger) Option {
	return func(c *Checker) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a checker bound to a solver capability.
func New(capability solver.Capability, opts ...Option) *Checker {
	c := &Checker{
		capability: capability,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check examines every division and every if/elif test in tree once.
// It returns an empty list when the solver capability is unavailable.
func (c *Checker) Check(ctx context.Context, tree *ast.Tree) []Issue {
	issues := make([]Issue, 0)
	if !c.capability.Enabled() {
		return issues
	}
	w := &walker{checker: c, path: tree.Path(), issues: issues}
	w.walk(ctx, tree.Root(), ModuleScope)
	return w.issues
}

type walker struct {
	checker *Checker
	path    string
	issues  []Issue
}

func (w *walker) walk(ctx context.Context, n *ast.Node, scope string) {
	switch n.Kind() {
	case ast.KindFunction:
		for _, h := range n.Header() {
			w.walk(ctx, h, scope)
		}
		if body := n.Body(); body != nil {
			w.walk(ctx, body, n.Name())
		}
		return
	case ast.KindBinOp, ast.KindAugAssign:
		if divisionOps[n.Op()] && n.Right() != nil {
			w.division(ctx, n, n.Right(), scope)
		}
	case ast.KindIf, ast.KindElif:
		if test := n.Test(); test != nil {
			w.condition(ctx, n, test, scope)
		}
	}
	for i := range n.NumChildren() {
		w.walk(ctx, n.Child(i), scope)
	}
}

func (w *walker) report(kind Kind, scope string, line int, desc string) {
	w.issues = append(w.issues, Issue{Kind: kind, Function: scope, Line: line, Description: desc})
}

func (w *walker) division(ctx context.Context, n, divisor *ast.Node, scope string) {
	if isZeroLiteral(divisor) {
		w.report(KindCertainZeroDivisor, scope, n.Line(),
			fmt.Sprintf("divisor %s is the constant zero", literalText(divisor)))
		return
	}
	if divisor.Kind() != ast.KindName {
		return
	}

	name := divisor.Text()
	res := w.query(ctx, n.Line(), func(ctx context.Context, s solver.Solver) solver.Result {
		s.Assert(solver.CmpInt(name, solver.Eq, 0))
		return s.Check(ctx)
	})
	if res == solver.Sat {
		w.report(KindPossibleZeroDivisor, scope, n.Line(),
			fmt.Sprintf("divisor %s may be zero", name))
	}
}

func (w *walker) condition(ctx context.Context, n, test *ast.Node, scope string) {
	switch test.Kind() {
	case ast.KindTrue:
		w.report(KindAlwaysTrue, scope, n.Line(), "condition is always True; the other branches are unreachable")
		return
	case ast.KindFalse:
		w.report(KindAlwaysFalse, scope, n.Line(), "condition is always False; its body is unreachable")
		return
	}

	atom, ok := comparisonAtom(test)
	if !ok {
		return
	}
	res := w.query(ctx, n.Line(), func(ctx context.Context, s solver.Solver) solver.Result {
		s.Push()
		s.Assert(solver.Not{F: atom})
		res := s.Check(ctx)
		_ = s.Pop()
		return res
	})
	if res == solver.Unsat {
		w.report(KindAlwaysTrue, scope, n.Line(),
			fmt.Sprintf("condition %s is always true for integer %s", atom, atom.Var))
	}
}

// comparisonAtom matches a single comparison between an identifier and a
// numeric literal, in either order.
func comparisonAtom(test *ast.Node) (solver.Atom, bool) {
	if test.Kind() != ast.KindCompare || test.NumOps() != 1 || test.NumChildren() != 2 {
		return solver.Atom{}, false
	}
	op, ok := solver.ParseOp(test.Ops()[0])
	if !ok {
		return solver.Atom{}, false
	}
	left, right := test.Left(), test.Right()
	if left.Kind() == ast.KindName {
		if v, ok := numericValue(right); ok {
			return solver.Cmp(left.Text(), op, v), true
		}
		return solver.Atom{}, false
	}
	if right.Kind() == ast.KindName {
		if v, ok := numericValue(left); ok {
			return solver.Cmp(right.Text(), op.Mirror(), v), true
		}
	}
	return solver.Atom{}, false
}

// query runs one solver query under the capability's watchdog. Timeouts
// and failures are logged and reported as Unknown.
func (w *walker) query(ctx context.Context, line int, q func(context.Context, solver.Solver) solver.Result) solver.Result {
	res, err := w.checker.capability.Run(ctx, q)
	if err != nil {
		w.checker.logger.DebugContext(ctx, "solver query inconclusive",
			"path", w.path, "line", line, "error", err)
		return solver.Unknown
	}
	return res
}
