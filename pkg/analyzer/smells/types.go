package smells

import "fmt"

// Type identifies a kind of code smell.
type Type string

const (
	TypeLongFunction      Type = "long_function"
	TypeTooManyParameters Type = "too_many_parameters"
	TypeHighComplexity    Type = "high_complexity"
	TypeDeepNesting       Type = "deep_nesting"
)

// Types lists the catalogue in evaluation order.
var Types = []Type{TypeLongFunction, TypeTooManyParameters, TypeHighComplexity, TypeDeepNesting}

// Severity represents the severity level of a smell.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// Weight returns a numeric weight for sorting (higher = more severe).
func (s Severity) Weight() int {
	switch s {
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// Finding is one smell detected in one function.
type Finding struct {
	Kind      Type     `json:"kind"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
	Function  string   `json:"function"`
	Line      int      `json:"line"`
	Value     int      `json:"value"`
	Threshold int      `json:"threshold"`
}

// Thresholds configures the smell catalogue. A threshold of zero or less
// disables its smell.
type Thresholds struct {
	MaxFunctionLines int `json:"max_function_lines"`
	MaxParams        int `json:"max_params"`
	MaxComplexity    int `json:"max_complexity"`
	MaxNesting       int `json:"max_nesting"`
}

// DefaultThresholds returns sensible defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxFunctionLines: 50,
		MaxParams:        5,
		MaxComplexity:    10,
		MaxNesting:       4,
	}
}

// For returns the threshold that governs smell t.
func (th Thresholds) For(t Type) int {
	switch t {
	case TypeLongFunction:
		return th.MaxFunctionLines
	case TypeTooManyParameters:
		return th.MaxParams
	case TypeHighComplexity:
		return th.MaxComplexity
	case TypeDeepNesting:
		return th.MaxNesting
	}
	return 0
}

// Validate rejects negative thresholds.
func (th Thresholds) Validate() error {
	for _, t := range Types {
		if v := th.For(t); v < 0 {
			return fmt.Errorf("threshold for %s must not be negative: %d", t, v)
		}
	}
	return nil
}
