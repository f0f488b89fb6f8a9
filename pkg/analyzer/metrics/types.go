package metrics

// FunctionRecord holds the structural metrics of one function definition.
type FunctionRecord struct {
	Name       string `json:"name"`
	StartLine  int    `json:"start_line"`
	LineCount  int    `json:"line_count"`
	ParamCount int    `json:"param_count"`
	Complexity int    `json:"complexity"`
}

// Result holds the file-level metrics of one source file.
type Result struct {
	TotalLines     int              `json:"total_lines"`
	EffectiveLines int              `json:"effective_lines"`
	Functions      []FunctionRecord `json:"functions"`
	ClassCount     int              `json:"class_count"`
	ImportCount    int              `json:"import_count"`
}

// MaxComplexity returns the highest function complexity, or 0 without
// functions.
func (r Result) MaxComplexity() int {
	m := 0
	for _, fn := range r.Functions {
		m = max(m, fn.Complexity)
	}
	return m
}
