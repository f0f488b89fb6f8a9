// Package smells detects per-function code smells from structural
// metrics: long functions, long parameter lists, high cyclomatic
// complexity and deep nesting.
package smells

import (
	"fmt"

	"github.com/panbanda/pyaudit/pkg/analyzer/metrics"
	"github.com/panbanda/pyaudit/pkg/ast"
)

// Detector evaluates the smell catalogue. It is safe for concurrent use.
type Detector struct {
	thresholds Thresholds
}

// New creates a detector with the given thresholds.
func New(thresholds Thresholds) *Detector {
	return &Detector{thresholds: thresholds}
}

// Thresholds returns the detector's thresholds.
func (d *Detector) Thresholds() Thresholds {
	return d.thresholds
}

// Detect evaluates every function of m against the catalogue. Findings
// follow the order of m.Functions, and within one function the order of
// Types. tree supplies the nesting depth, which metrics do not record.
func (d *Detector) Detect(tree *ast.Tree, m metrics.Result) []Finding {
	fns := ast.Functions(tree.Root())
	findings := make([]Finding, 0)

	for i, rec := range m.Functions {
		nesting := 0
		if i < len(fns) {
			nesting = metrics.MaxNesting(fns[i])
		}
		values := map[Type]int{
			TypeLongFunction:      rec.LineCount,
			TypeTooManyParameters: rec.ParamCount,
			TypeHighComplexity:    rec.Complexity,
			TypeDeepNesting:       nesting,
		}
		for _, t := range Types {
			limit := d.thresholds.For(t)
			if limit <= 0 || values[t] <= limit {
				continue
			}
			findings = append(findings, Finding{
				Kind:      t,
				Severity:  severity(values[t], limit),
				Message:   message(t, rec.Name, values[t], limit),
				Function:  rec.Name,
				Line:      rec.StartLine,
				Value:     values[t],
				Threshold: limit,
			})
		}
	}
	return findings
}

// severity is high once a value reaches twice its threshold.
func severity(value, limit int) Severity {
	if value >= 2*limit {
		return SeverityHigh
	}
	return SeverityMedium
}

func message(t Type, fn string, value, limit int) string {
	switch t {
	case TypeLongFunction:
		return fmt.Sprintf("function %s is %d lines long (max %d)", fn, value, limit)
	case TypeTooManyParameters:
		return fmt.Sprintf("function %s has %d parameters (max %d)", fn, value, limit)
	case TypeHighComplexity:
		return fmt.Sprintf("function %s has cyclomatic complexity %d (max %d)", fn, value, limit)
	case TypeDeepNesting:
		return fmt.Sprintf("function %s nests %d levels deep (max %d)", fn, value, limit)
	}
	return fmt.Sprintf("function %s: %s %d (max %d)", fn, t, value, limit)
}
