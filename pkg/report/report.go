// Package report assembles the per-file analysis report and defines the
// outcome type that distinguishes an unparseable file from a clean one.
package report

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/panbanda/pyaudit/pkg/analyzer/constraint"
	"github.com/panbanda/pyaudit/pkg/analyzer/metrics"
	"github.com/panbanda/pyaudit/pkg/analyzer/smells"
)

// Report is the analysis of one version of one source file. A Report is
// built once by Assemble and must not be modified afterwards.
type Report struct {
	Path           string                   `json:"path"`
	TotalLines     int                      `json:"total_lines"`
	EffectiveLines int                      `json:"effective_lines"`
	Functions      []metrics.FunctionRecord `json:"functions"`
	ClassCount     int                      `json:"class_count"`
	ImportCount    int                      `json:"import_count"`
	Smells         []smells.Finding         `json:"smells"`
	Issues         []constraint.Issue       `json:"issues"`
}

// Assemble combines the results of the three passes. Slices are copied
// and never nil.
func Assemble(path string, m metrics.Result, findings []smells.Finding, issues []constraint.Issue) *Report {
	return &Report{
		Path:           path,
		TotalLines:     m.TotalLines,
		EffectiveLines: m.EffectiveLines,
		Functions:      cloneNonNil(m.Functions),
		ClassCount:     m.ClassCount,
		ImportCount:    m.ImportCount,
		Smells:         cloneNonNil(findings),
		Issues:         cloneNonNil(issues),
	}
}

func cloneNonNil[T any](s []T) []T {
	if s == nil {
		return make([]T, 0)
	}
	return slices.Clone(s)
}

// FunctionCount returns the number of function records.
func (r *Report) FunctionCount() int { return len(r.Functions) }

// SmellCount returns the number of smell findings.
func (r *Report) SmellCount() int { return len(r.Smells) }

// IssueCount returns the number of semantic issues.
func (r *Report) IssueCount() int { return len(r.Issues) }

// IssuesByKind counts issues per kind.
func (r *Report) IssuesByKind() map[constraint.Kind]int {
	counts := make(map[constraint.Kind]int)
	for _, is := range r.Issues {
		counts[is.Kind]++
	}
	return counts
}

// SmellsByKind counts smells per kind.
func (r *Report) SmellsByKind() map[smells.Type]int {
	counts := make(map[smells.Type]int)
	for _, f := range r.Smells {
		counts[f.Kind]++
	}
	return counts
}

// WithPath returns a copy of r keyed to path.
func (r *Report) WithPath(path string) *Report {
	cp := *r
	cp.Path = path
	cp.Functions = slices.Clone(r.Functions)
	cp.Smells = slices.Clone(r.Smells)
	cp.Issues = slices.Clone(r.Issues)
	return &cp
}

// Fingerprint hashes the canonical JSON encoding of r. Equal reports have
// equal fingerprints.
func (r *Report) Fingerprint() uint64 {
	data, err := json.Marshal(r)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(data)
}

// FingerprintHex returns Fingerprint as 16 hex digits.
func (r *Report) FingerprintHex() string {
	return fmt.Sprintf("%016x", r.Fingerprint())
}

// Outcome is the result of analyzing one file: either a Report or the
// error that prevented one.
type Outcome struct {
	Path   string
	Report *Report
	Err    error
}

// Succeeded wraps a report.
func Succeeded(r *Report) Outcome {
	return Outcome{Path: r.Path, Report: r}
}

// Failed records that path could not be analyzed.
func Failed(path string, err error) Outcome {
	return Outcome{Path: path, Err: err}
}

// OK reports whether the outcome carries a report.
func (o Outcome) OK() bool {
	return o.Err == nil && o.Report != nil
}

type outcomeJSON struct {
	Path   string  `json:"path"`
	Report *Report `json:"report,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// MarshalJSON encodes the error as its message.
func (o Outcome) MarshalJSON() ([]byte, error) {
	out := outcomeJSON{Path: o.Path, Report: o.Report}
	if o.Err != nil {
		out.Error = o.Err.Error()
	}
	return json.Marshal(out)
}
