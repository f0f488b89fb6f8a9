// Package metrics computes structural metrics of Python source: line
// counts, per-function cyclomatic complexity and parameter counts, and
// class and import totals.
package metrics

import "github.com/panbanda/pyaudit/pkg/ast"

// Collector computes metrics from a syntax tree. It is stateless and safe
// for concurrent use.
type Collector struct{}

// New creates a metrics collector.
func New() *Collector {
	return &Collector{}
}

// Collect computes the metrics of tree. Functions are listed in order of
// their definition start, nested definitions included.
func (c *Collector) Collect(tree *ast.Tree) Result {
	root := tree.Root()
	fns := ast.Functions(root)

	res := Result{
		TotalLines:     tree.TotalLines(),
		EffectiveLines: tree.EffectiveLines(),
		Functions:      make([]FunctionRecord, 0, len(fns)),
		ClassCount:     ast.Count(root, ast.KindClass),
		ImportCount:    ast.Count(root, ast.KindImport),
	}
	for _, fn := range fns {
		res.Functions = append(res.Functions, Record(fn))
	}
	return res
}

// Record computes the metrics of a single Function node.
func Record(fn *ast.Node) FunctionRecord {
	return FunctionRecord{
		Name:       fn.Name(),
		StartLine:  fn.Line(),
		LineCount:  fn.LineCount(),
		ParamCount: fn.Params(),
		Complexity: 1 + CountDecisionPoints(fn),
	}
}

// CountDecisionPoints counts the branching constructs in the body of fn:
// if and elif, for and while, each and/or operator, and except clauses.
// Nested function bodies are not counted; lambdas are.
func CountDecisionPoints(fn *ast.Node) int {
	count := 0
	ast.InspectFunction(fn, func(n *ast.Node) bool {
		switch n.Kind() {
		case ast.KindIf, ast.KindElif, ast.KindFor, ast.KindWhile, ast.KindExcept, ast.KindBoolOp:
			count++
		}
		return true
	})
	return count
}

// MaxNesting returns the deepest nesting of compound statements (if, for,
// while, try, with, match) in the body of fn. Clauses such as elif, else,
// except and finally sit at the level of their statement. Nested function
// bodies are not measured.
func MaxNesting(fn *ast.Node) int {
	body := fn.Body()
	if body == nil {
		return 0
	}
	return nestingDepth(body, 0)
}

func nestingDepth(n *ast.Node, depth int) int {
	deepest := depth
	for i := range n.NumChildren() {
		c := n.Child(i)
		if c.Kind() == ast.KindFunction {
			continue
		}
		d := depth
		if c.Kind().IsCompound() {
			d++
		}
		deepest = max(deepest, nestingDepth(c, d))
	}
	return deepest
}
