// Package solver provides the bounded constraint solver used by the
// semantic checks: a small decision procedure for linear integer atoms,
// and the Capability that decides whether and how long it may run.
package solver

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout bounds a single query when a Capability sets none.
const DefaultTimeout = 2 * time.Second

var (
	// ErrUnavailable is returned when no solver backend is configured.
	ErrUnavailable = errors.New("constraint solver unavailable")
	// ErrTimeout is returned when a query exceeds its time limit.
	ErrTimeout = errors.New("solver query timed out")
	// ErrPanic is returned when a query panics.
	ErrPanic = errors.New("solver query panicked")
	// ErrEmptyStack is returned by Pop without a matching Push.
	ErrEmptyStack = errors.New("pop without matching push")
)

// Result is the outcome of a satisfiability check.
type Result uint8

const (
	Unknown Result = iota
	Sat
	Unsat
)

func (r Result) String() string {
	switch r {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	default:
		return "unknown"
	}
}

// Solver holds a stack of assertion frames.
type Solver interface {
	Push()
	Pop() error
	Assert(f Formula)
	Check(ctx context.Context) Result
}

// Capability describes the solver backend available to an analysis.
type Capability struct {
	Available bool
	Timeout   time.Duration
	New       func() Solver
}

// Default returns the built-in interval solver with DefaultTimeout.
func Default() Capability {
	return Capability{
		Available: true,
		Timeout:   DefaultTimeout,
		New:       func() Solver { return NewInterval() },
	}
}

// Unavailable returns a capability with no backend.
func Unavailable() Capability {
	return Capability{}
}

// WithTimeout returns a copy of c with the given per-query limit.
func (c Capability) WithTimeout(d time.Duration) Capability {
	c.Timeout = d
	return c
}

// Enabled reports whether queries can run.
func (c Capability) Enabled() bool {
	return c.Available && c.New != nil
}

type outcome struct {
	res Result
	err error
}

// Run executes query on a fresh solver under the capability's timeout.
// A timeout, cancellation or panic yields Unknown with an error wrapping
// ErrTimeout or ErrPanic; the abandoned query observes ctx cancellation.
func (c Capability) Run(ctx context.Context, query func(context.Context, Solver) Result) (Result, error) {
	if !c.Enabled() {
		return Unknown, ErrUnavailable
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{res: Unknown, err: fmt.Errorf("%w: %v", ErrPanic, r)}
			}
		}()
		done <- outcome{res: query(ctx, c.New())}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		return Unknown, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}
}
