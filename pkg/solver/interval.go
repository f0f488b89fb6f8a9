package solver

import (
	"context"
	"errors"
	"math/big"
)

// MaxBranches bounds the disjunctive normal form a single Check expands.
const MaxBranches = 64

var errTooManyBranches = errors.New("formula exceeds branch limit")

// Interval decides conjunctions and disjunctions of single-variable
// linear integer atoms. Each DNF branch is reduced to one integer
// interval per variable plus a finite set of excluded points.
type Interval struct {
	frames [][]Formula
}

var _ Solver = (*Interval)(nil)

// NewInterval returns a solver with an empty assertion stack.
func NewInterval() *Interval {
	return &Interval{frames: [][]Formula{nil}}
}

func (s *Interval) Push() {
	s.frames = append(s.frames, nil)
}

func (s *Interval) Pop() error {
	if len(s.frames) == 1 {
		return ErrEmptyStack
	}
	s.frames = s.frames[:len(s.frames)-1]
	return nil
}

func (s *Interval) Assert(f Formula) {
	top := len(s.frames) - 1
	s.frames[top] = append(s.frames[top], f)
}

// Check decides the conjunction of every asserted formula.
func (s *Interval) Check(ctx context.Context) Result {
	var all And
	for _, frame := range s.frames {
		all = append(all, frame...)
	}

	branches, err := dnf(nnf(all, false))
	if err != nil {
		return Unknown
	}
	for _, branch := range branches {
		if ctx.Err() != nil {
			return Unknown
		}
		if satisfiable(branch) {
			return Sat
		}
	}
	return Unsat
}

// nnf pushes negations down to the atoms.
func nnf(f Formula, negate bool) Formula {
	switch f := f.(type) {
	case Atom:
		if negate {
			return Atom{Var: f.Var, Op: f.Op.Negate(), Const: f.Const}
		}
		return f
	case Not:
		return nnf(f.F, !negate)
	case Bool:
		return Bool(bool(f) != negate)
	case And:
		out := make([]Formula, len(f))
		for i, m := range f {
			out[i] = nnf(m, negate)
		}
		if negate {
			return Or(out)
		}
		return And(out)
	case Or:
		out := make([]Formula, len(f))
		for i, m := range f {
			out[i] = nnf(m, negate)
		}
		if negate {
			return And(out)
		}
		return Or(out)
	}
	return Bool(false)
}

// dnf expands a negation normal form into branches of atoms.
func dnf(f Formula) ([][]Atom, error) {
	switch f := f.(type) {
	case Atom:
		return [][]Atom{{f}}, nil
	case Bool:
		if f {
			return [][]Atom{{}}, nil
		}
		return nil, nil
	case Or:
		var out [][]Atom
		for _, m := range f {
			branches, err := dnf(m)
			if err != nil {
				return nil, err
			}
			out = append(out, branches...)
			if len(out) > MaxBranches {
				return nil, errTooManyBranches
			}
		}
		return out, nil
	case And:
		out := [][]Atom{{}}
		for _, m := range f {
			branches, err := dnf(m)
			if err != nil {
				return nil, err
			}
			if len(out)*len(branches) > MaxBranches {
				return nil, errTooManyBranches
			}
			next := make([][]Atom, 0, len(out)*len(branches))
			for _, a := range out {
				for _, b := range branches {
					merged := make([]Atom, 0, len(a)+len(b))
					merged = append(merged, a...)
					merged = append(merged, b...)
					next = append(next, merged)
				}
			}
			out = next
		}
		return out, nil
	}
	return nil, nil
}

// bounds is the feasible integer set of one variable.
type bounds struct {
	lo, hi   *big.Int // nil is unbounded
	excluded map[string]*big.Int
}

func (b *bounds) raiseLo(v *big.Int) {
	if b.lo == nil || v.Cmp(b.lo) > 0 {
		b.lo = v
	}
}

func (b *bounds) lowerHi(v *big.Int) {
	if b.hi == nil || v.Cmp(b.hi) < 0 {
		b.hi = v
	}
}

func (b *bounds) feasible() bool {
	if b.lo == nil || b.hi == nil {
		return true
	}
	if b.lo.Cmp(b.hi) > 0 {
		return false
	}
	size := new(big.Int).Sub(b.hi, b.lo)
	size.Add(size, big.NewInt(1))
	inside := int64(0)
	for _, v := range b.excluded {
		if v.Cmp(b.lo) >= 0 && v.Cmp(b.hi) <= 0 {
			inside++
		}
	}
	return size.Cmp(big.NewInt(inside)) > 0
}

func satisfiable(branch []Atom) bool {
	vars := make(map[string]*bounds)
	for _, a := range branch {
		b, ok := vars[a.Var]
		if !ok {
			b = &bounds{excluded: make(map[string]*big.Int)}
			vars[a.Var] = b
		}
		if !apply(b, a) {
			return false
		}
	}
	for _, b := range vars {
		if !b.feasible() {
			return false
		}
	}
	return true
}

// apply narrows b by a; it returns false when a is unsatisfiable over the
// integers on its own.
func apply(b *bounds, a Atom) bool {
	c := a.Const
	if c == nil {
		c = new(big.Rat)
	}
	integral := c.IsInt()
	switch a.Op {
	case Eq:
		if !integral {
			return false
		}
		v := new(big.Int).Set(c.Num())
		b.raiseLo(v)
		b.lowerHi(v)
	case Ne:
		if integral {
			v := new(big.Int).Set(c.Num())
			b.excluded[v.String()] = v
		}
	case Lt:
		if integral {
			b.lowerHi(new(big.Int).Sub(c.Num(), big.NewInt(1)))
		} else {
			b.lowerHi(floor(c))
		}
	case Le:
		b.lowerHi(floor(c))
	case Gt:
		if integral {
			b.raiseLo(new(big.Int).Add(c.Num(), big.NewInt(1)))
		} else {
			b.raiseLo(ceil(c))
		}
	case Ge:
		b.raiseLo(ceil(c))
	}
	return true
}

func floor(r *big.Rat) *big.Int {
	// Euclidean division by a positive denominator rounds toward -inf.
	return new(big.Int).Div(r.Num(), r.Denom())
}

func ceil(r *big.Rat) *big.Int {
	f := floor(r)
	if !r.IsInt() {
		f.Add(f, big.NewInt(1))
	}
	return f
}
