package output

import (
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/fatih/color"

	"github.com/panbanda/pyaudit/pkg/report"
	"github.com/panbanda/pyaudit/pkg/stats"
)

// Analysis renders a batch of outcomes with its summary.
type Analysis struct {
	Title    string
	Outcomes []report.Outcome
	Summary  stats.Summary
}

// NewAnalysis summarizes outcomes for rendering.
func NewAnalysis(title string, outcomes []report.Outcome) *Analysis {
	return &Analysis{
		Title:    title,
		Outcomes: outcomes,
		Summary:  stats.Summarize(outcomes),
	}
}

type failureData struct {
	Path  string `json:"path" toon:"path"`
	Error string `json:"error" toon:"error"`
}

type analysisData struct {
	Reports  []*report.Report `json:"reports" toon:"reports"`
	Failures []failureData    `json:"failures,omitempty" toon:"failures,omitempty"`
	Summary  stats.Summary    `json:"summary" toon:"summary"`
}

// RenderData splits outcomes into reports and failures.
func (a *Analysis) RenderData() any {
	data := analysisData{Reports: make([]*report.Report, 0, len(a.Outcomes)), Summary: a.Summary}
	for _, o := range a.Outcomes {
		if o.OK() {
			data.Reports = append(data.Reports, o.Report)
			continue
		}
		data.Failures = append(data.Failures, failureData{Path: o.Path, Error: errorText(o.Err)})
	}
	return data
}

func errorText(err error) string {
	if err == nil {
		return "no report"
	}
	return err.Error()
}

func (a *Analysis) RenderText(w io.Writer, colored bool) error {
	if a.Title != "" {
		heading(w, a.Title, "=", colored, color.Bold, color.FgCyan)
		fmt.Fprintln(w)
	}
	for _, o := range a.Outcomes {
		if !o.OK() {
			continue
		}
		for _, t := range fileTables(o.Report, colored) {
			if err := t.RenderText(w, colored); err != nil {
				return err
			}
		}
	}
	if ft := a.failureTable(); ft != nil {
		if err := ft.RenderText(w, colored); err != nil {
			return err
		}
	}
	return summaryTable(a.Summary).RenderText(w, colored)
}

func (a *Analysis) RenderMarkdown(w io.Writer) error {
	if a.Title != "" {
		fmt.Fprintf(w, "# %s\n\n", a.Title)
	}
	for _, o := range a.Outcomes {
		if !o.OK() {
			continue
		}
		fmt.Fprintf(w, "## %s\n\n", o.Report.Path)
		for _, t := range fileTables(o.Report, false) {
			if err := t.RenderMarkdown(w); err != nil {
				return err
			}
		}
	}
	if ft := a.failureTable(); ft != nil {
		if err := ft.RenderMarkdown(w); err != nil {
			return err
		}
	}
	return summaryTable(a.Summary).RenderMarkdown(w)
}

func (a *Analysis) failureTable() *Table {
	var rows [][]string
	for _, o := range a.Outcomes {
		if !o.OK() {
			rows = append(rows, []string{o.Path, errorText(o.Err)})
		}
	}
	if len(rows) == 0 {
		return nil
	}
	return &Table{Title: "Failed files", Headers: []string{"Path", "Error"}, Rows: rows}
}

// fileTables returns the function table of r and, when present, its
// smells and issues.
func fileTables(r *report.Report, colored bool) []*Table {
	itoa := strconv.Itoa
	functions := &Table{
		Title:   fmt.Sprintf("%s (%d lines, %d effective)", r.Path, r.TotalLines, r.EffectiveLines),
		Headers: []string{"Function", "Line", "Lines", "Params", "Complexity"},
		Footer: []string{
			fmt.Sprintf("%d functions", r.FunctionCount()),
			"", "",
			fmt.Sprintf("%d classes", r.ClassCount),
			fmt.Sprintf("%d imports", r.ImportCount),
		},
	}
	for _, fn := range r.Functions {
		functions.Rows = append(functions.Rows, []string{
			fn.Name, itoa(fn.StartLine), itoa(fn.LineCount), itoa(fn.ParamCount), itoa(fn.Complexity),
		})
	}
	tables := []*Table{functions}

	if len(r.Smells) > 0 {
		t := &Table{Title: "Smells", Headers: []string{"Severity", "Kind", "Function", "Line", "Message"}}
		for _, s := range r.Smells {
			sev := string(s.Severity)
			if colored {
				sev = SeverityColor(sev, sev)
			}
			t.Rows = append(t.Rows, []string{sev, string(s.Kind), s.Function, itoa(s.Line), s.Message})
		}
		tables = append(tables, t)
	}

	if len(r.Issues) > 0 {
		t := &Table{Title: "Issues", Headers: []string{"Kind", "Function", "Line", "Description"}}
		for _, is := range r.Issues {
			kind := string(is.Kind)
			if colored {
				kind = SeverityColor(kind, kind)
			}
			t.Rows = append(t.Rows, []string{kind, is.Function, itoa(is.Line), is.Description})
		}
		tables = append(tables, t)
	}
	return tables
}

func summaryTable(s stats.Summary) *Table {
	itoa := strconv.Itoa
	rows := [][]string{
		{"Files", itoa(s.Files)},
		{"Analyzed", itoa(s.Analyzed)},
		{"Failed", itoa(s.Failed)},
		{"Lines", itoa(s.TotalLines)},
		{"Effective lines", itoa(s.EffectiveLines)},
		{"Functions", itoa(s.Functions)},
		{"Classes", itoa(s.Classes)},
		{"Imports", itoa(s.Imports)},
		{"Smells", itoa(s.Smells)},
		{"Issues", itoa(s.Issues)},
		{"Complexity mean", fmt.Sprintf("%.2f", s.Complexity.Mean)},
		{"Complexity std dev", fmt.Sprintf("%.2f", s.Complexity.StdDev)},
		{"Complexity p50", fmt.Sprintf("%.1f", s.Complexity.P50)},
		{"Complexity p90", fmt.Sprintf("%.1f", s.Complexity.P90)},
		{"Complexity max", itoa(s.Complexity.Max)},
	}
	for _, kind := range sortedKeys(s.SmellsByKind) {
		rows = append(rows, []string{"Smell: " + kind, itoa(s.SmellsByKind[kind])})
	}
	for _, kind := range sortedKeys(s.IssuesByKind) {
		rows = append(rows, []string{"Issue: " + kind, itoa(s.IssuesByKind[kind])})
	}
	return &Table{Title: "Summary", Headers: []string{"Metric", "Value"}, Rows: rows}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
