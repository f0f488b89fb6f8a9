// Package stats aggregates per-file reports into project totals and
// complexity statistics.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/panbanda/pyaudit/pkg/report"
)

// Complexity describes the distribution of function complexity.
type Complexity struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	P50    float64 `json:"p50"`
	P90    float64 `json:"p90"`
	Max    int     `json:"max"`
}

// Summary totals a batch of outcomes.
type Summary struct {
	Files          int            `json:"files"`
	Analyzed       int            `json:"analyzed"`
	Failed         int            `json:"failed"`
	TotalLines     int            `json:"total_lines"`
	EffectiveLines int            `json:"effective_lines"`
	Functions      int            `json:"functions"`
	Classes        int            `json:"classes"`
	Imports        int            `json:"imports"`
	Smells         int            `json:"smells"`
	Issues         int            `json:"issues"`
	SmellsByKind   map[string]int `json:"smells_by_kind"`
	IssuesByKind   map[string]int `json:"issues_by_kind"`
	Complexity     Complexity     `json:"complexity"`
}

// Summarize totals outcomes. Failed outcomes count as files but
// contribute nothing else.
func Summarize(outcomes []report.Outcome) Summary {
	s := Summary{
		Files:        len(outcomes),
		SmellsByKind: make(map[string]int),
		IssuesByKind: make(map[string]int),
	}

	var complexities []float64
	for _, o := range outcomes {
		if !o.OK() {
			s.Failed++
			continue
		}
		r := o.Report
		s.Analyzed++
		s.TotalLines += r.TotalLines
		s.EffectiveLines += r.EffectiveLines
		s.Functions += r.FunctionCount()
		s.Classes += r.ClassCount
		s.Imports += r.ImportCount
		s.Smells += r.SmellCount()
		s.Issues += r.IssueCount()
		for kind, n := range r.SmellsByKind() {
			s.SmellsByKind[string(kind)] += n
		}
		for kind, n := range r.IssuesByKind() {
			s.IssuesByKind[string(kind)] += n
		}
		for _, fn := range r.Functions {
			complexities = append(complexities, float64(fn.Complexity))
		}
	}

	s.Complexity = Describe(complexities)
	return s
}

// Describe computes the distribution of values. An empty input yields
// zeros; a single value has zero deviation.
func Describe(values []float64) Complexity {
	if len(values) == 0 {
		return Complexity{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	c := Complexity{
		Mean: stat.Mean(sorted, nil),
		P50:  Percentile(sorted, 50),
		P90:  Percentile(sorted, 90),
		Max:  int(sorted[len(sorted)-1]),
	}
	if len(sorted) > 1 {
		c.StdDev = finite(stat.StdDev(sorted, nil))
	}
	return c
}

// Percentile calculates the p-th percentile of a sorted slice using the
// empirical quantile function.
// The slice must already be sorted in ascending order.
// Returns 0 if the slice is empty.
func Percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	q := math.Min(math.Max(float64(p)/100, 0), 1)
	return stat.Quantile(q, stat.Empirical, sorted, nil)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
