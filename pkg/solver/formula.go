package solver

import (
	"fmt"
	"math/big"
	"strings"
)

// Op is a comparison operator between an integer variable and a constant.
type Op uint8

const (
	Eq Op = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

var opText = [...]string{Eq: "==", Ne: "!=", Lt: "<", Le: "<=", Gt: ">", Ge: ">="}

func (o Op) String() string {
	if int(o) < len(opText) {
		return opText[o]
	}
	return fmt.Sprintf("Op(%d)", o)
}

// ParseOp maps a Python comparison operator to an Op.
func ParseOp(s string) (Op, bool) {
	for i, t := range opText {
		if t == s {
			return Op(i), true
		}
	}
	return 0, false
}

// Negate returns the operator whose truth value is the opposite of o.
func (o Op) Negate() Op {
	switch o {
	case Eq:
		return Ne
	case Ne:
		return Eq
	case Lt:
		return Ge
	case Le:
		return Gt
	case Gt:
		return Le
	default:
		return Lt
	}
}

// Mirror returns the operator for swapped operands: c < x is x > c.
func (o Op) Mirror() Op {
	switch o {
	case Lt:
		return Gt
	case Le:
		return Ge
	case Gt:
		return Lt
	case Ge:
		return Le
	default:
		return o
	}
}

// Formula is a boolean combination of atoms.
type Formula interface {
	fmt.Stringer
	formula()
}

// Atom compares an integer variable with an exact rational constant.
type Atom struct {
	Var   string
	Op    Op
	Const *big.Rat
}

// Not negates a formula.
type Not struct{ F Formula }

// And is the conjunction of its members; the empty And is true.
type And []Formula

// Or is the disjunction of its members; the empty Or is false.
type Or []Formula

// Bool is a constant truth value.
type Bool bool

func (Atom) formula() {}
func (Not) formula()  {}
func (And) formula()  {}
func (Or) formula()   {}
func (Bool) formula() {}

// Cmp builds an atom.
func Cmp(v string, op Op, c *big.Rat) Atom {
	return Atom{Var: v, Op: op, Const: new(big.Rat).Set(c)}
}

// CmpInt builds an atom with an integer constant.
func CmpInt(v string, op Op, c int64) Atom {
	return Atom{Var: v, Op: op, Const: new(big.Rat).SetInt64(c)}
}

func (a Atom) String() string {
	return fmt.Sprintf("%s %s %s", a.Var, a.Op, a.Const.RatString())
}

func (n Not) String() string { return "not (" + n.F.String() + ")" }

func (a And) String() string { return join([]Formula(a), " and ", "True") }

func (o Or) String() string { return join([]Formula(o), " or ", "False") }

func (b Bool) String() string {
	if b {
		return "True"
	}
	return "False"
}

func join(fs []Formula, sep, empty string) string {
	if len(fs) == 0 {
		return empty
	}
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = "(" + f.String() + ")"
	}
	return strings.Join(parts, sep)
}
