package constraint

// Kind identifies a semantic issue.
type Kind string

const (
	KindCertainZeroDivisor  Kind = "certain_zero_divisor"
	KindPossibleZeroDivisor Kind = "possible_zero_divisor"
	KindAlwaysTrue          Kind = "always_true_condition"
	KindAlwaysFalse         Kind = "always_false_condition"
)

// ModuleScope names the function of issues found outside any def.
const ModuleScope = "<module>"

// Issue is one semantic problem found by the checker.
type Issue struct {
	Kind        Kind   `json:"kind"`
	Function    string `json:"function"`
	Line        int    `json:"line"`
	Description string `json:"description"`
}
