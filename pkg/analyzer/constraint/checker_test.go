package constraint

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/pyaudit/pkg/ast"
	"github.com/panbanda/pyaudit/pkg/parser"
	"github.com/panbanda/pyaudit/pkg/solver"
)

func parse(t *testing.T, src string) *ast.Tree {
	t.Helper()
	p := parser.New()
	defer p.Close()
	tree, err := p.Parse(context.Background(), "test.py", []byte(src))
	require.NoError(t, err)
	return tree
}

// counting returns the default capability with a counter of solvers
// created.
func counting() (solver.Capability, *atomic.Int32) {
	var n atomic.Int32
	c := solver.Default()
	c.New = func() solver.Solver {
		n.Add(1)
		return solver.NewInterval()
	}
	return c, &n
}

func check(t *testing.T, src string) []Issue {
	t.Helper()
	return New(solver.Default()).Check(context.Background(), parse(t, src))
}

type blockingSolver struct{ *solver.Interval }

func (blockingSolver) Check(ctx context.Context) solver.Result {
	<-ctx.Done()
	time.Sleep(100 * time.Millisecond)
	return solver.Sat
}

type panickingSolver struct{ *solver.Interval }

func (panickingSolver) Check(context.Context) solver.Result {
	panic("solver crashed")
}

func TestCertainZeroDivisor(t *testing.T) {
	tests := []string{
		"z = x / 0\n",
		"z = x // (0)\n",
		"z = x % 0.0\n",
		"z = x / -0\n",
		"z = x / 0j\n",
		"z = x / False\n",
		"z = x / 0_0\n",
		"x /= 0\n",
		"x //= 0x0\n",
		"x %= 0e5\n",
	}

	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			capability, calls := counting()
			issues := New(capability).Check(context.Background(), parse(t, src))
			require.Len(t, issues, 1)
			assert.Equal(t, KindCertainZeroDivisor, issues[0].Kind)
			assert.Equal(t, ModuleScope, issues[0].Function)
			assert.Equal(t, 1, issues[0].Line)
			assert.Equal(t, int32(0), calls.Load())
		})
	}
}

func TestCertainZeroDivisorDescription(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"def f(x):\n    return x % -0\n", "divisor -0 is the constant zero"},
		{"z = x / +0.0\n", "divisor +0.0 is the constant zero"},
		{"z = x // (0)\n", "divisor 0 is the constant zero"},
		{"z = x / False\n", "divisor False is the constant zero"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			issues := New(solver.Default()).Check(context.Background(), parse(t, tt.src))
			require.Len(t, issues, 1)
			assert.Equal(t, tt.want, issues[0].Description)
		})
	}
}

func TestPossibleZeroDivisor(t *testing.T) {
	capability, calls := counting()
	issues := New(capability).Check(context.Background(), parse(t, "def f(x, y):\n    return x / y\n"))
	require.Len(t, issues, 1)
	assert.Equal(t, Issue{
		Kind:        KindPossibleZeroDivisor,
		Function:    "f",
		Line:        2,
		Description: "divisor y may be zero",
	}, issues[0])
	assert.Equal(t, int32(1), calls.Load())
}

func TestUnsupportedDivisorsSkipped(t *testing.T) {
	srcs := []string{
		"z = x / (y + 1)\n",
		"z = x / f(y)\n",
		"z = x / obj.attr\n",
		"z = x / 2\n",
		"z = x * 0\n",
		"z = x - y\n",
	}
	for _, src := range srcs {
		t.Run(src, func(t *testing.T) {
			assert.Empty(t, check(t, src))
		})
	}
}

func TestLiteralConditions(t *testing.T) {
	capability, calls := counting()
	src := "if True:\n    pass\n\ndef g():\n    if False:\n        pass\n"
	issues := New(capability).Check(context.Background(), parse(t, src))
	require.Len(t, issues, 2)

	assert.Equal(t, KindAlwaysTrue, issues[0].Kind)
	assert.Equal(t, ModuleScope, issues[0].Function)
	assert.Equal(t, 1, issues[0].Line)

	assert.Equal(t, KindAlwaysFalse, issues[1].Kind)
	assert.Equal(t, "g", issues[1].Function)
	assert.Equal(t, 5, issues[1].Line)

	assert.Equal(t, int32(0), calls.Load())
}

func TestComparisonConditions(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		always bool
	}{
		{"satisfiable equality", "if x == 5:\n    pass\n", false},
		{"non-integer inequality", "if x != 0.5:\n    pass\n", true},
		{"mirrored", "if 0.5 != x:\n    pass\n", true},
		{"ordering", "if x > 0:\n    pass\n", false},
		{"signed literal", "if x != -2.5:\n    pass\n", true},
		{"non-integer equality is not constant true", "if x == 0.5:\n    pass\n", false},
		{"elif", "if a:\n    pass\nelif y != 1.5:\n    pass\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := check(t, tt.src)
			if !tt.always {
				assert.Empty(t, issues)
				return
			}
			require.Len(t, issues, 1)
			assert.Equal(t, KindAlwaysTrue, issues[0].Kind)
		})
	}
}

func TestElifLine(t *testing.T) {
	issues := check(t, "if a:\n    pass\nelif True:\n    pass\n")
	require.Len(t, issues, 1)
	assert.Equal(t, 3, issues[0].Line)
}

func TestUnsupportedConditionsNeverFlagged(t *testing.T) {
	srcs := []string{
		"if x > 0 and x < 0:\n    pass\n",
		"if x != 0.5 or y:\n    pass\n",
		"if not x != 0.5:\n    pass\n",
		"if 0 < x < 0.5:\n    pass\n",
		"if x == y:\n    pass\n",
		"if x == 'a':\n    pass\n",
		"if x is None:\n    pass\n",
		"if x in (1, 2):\n    pass\n",
		"if x + 1 != 0.5:\n    pass\n",
		"if x != 1j:\n    pass\n",
		"while True:\n    break\n",
	}
	for _, src := range srcs {
		t.Run(src, func(t *testing.T) {
			assert.Empty(t, check(t, src))
		})
	}
}

func TestScopes(t *testing.T) {
	src := `z = a / b

class C:
    r = a / c

    def method(self, d):
        def helper(e=a / f):
            return 1 / e
        return 1 / d
`
	issues := check(t, src)
	require.Len(t, issues, 5)

	got := make([][2]any, 0, len(issues))
	for _, is := range issues {
		got = append(got, [2]any{is.Function, is.Line})
	}
	assert.Equal(t, [][2]any{
		{ModuleScope, 1},
		{ModuleScope, 4},
		{"method", 7},
		{"helper", 8},
		{"method", 9},
	}, got)
}

func TestGuardedDivisionIsStillPossible(t *testing.T) {
	issues := check(t, "def f(x):\n    if x > 0:\n        return 1 / x\n")
	require.Len(t, issues, 1)
	assert.Equal(t, KindPossibleZeroDivisor, issues[0].Kind)
	assert.Equal(t, 3, issues[0].Line)
}

func TestUnavailableCapability(t *testing.T) {
	issues := New(solver.Unavailable()).Check(context.Background(), parse(t, "z = x / 0\nif True:\n    pass\n"))
	assert.Empty(t, issues)
	assert.NotNil(t, issues)
}

func TestTimeoutIsInconclusive(t *testing.T) {
	capability := solver.Capability{
		Available: true,
		Timeout:   10 * time.Millisecond,
		New:       func() solver.Solver { return blockingSolver{solver.NewInterval()} },
	}
	src := "def f(x, y):\n    a = x / y\n    b = x / 0\n    if x != 0.5:\n        pass\n"
	issues := New(capability).Check(context.Background(), parse(t, src))
	require.Len(t, issues, 1)
	assert.Equal(t, KindCertainZeroDivisor, issues[0].Kind)
}

func TestPanicIsInconclusive(t *testing.T) {
	capability := solver.Capability{
		Available: true,
		Timeout:   time.Second,
		New:       func() solver.Solver { return panickingSolver{solver.NewInterval()} },
	}
	src := "z = x / y\nif False:\n    pass\n"
	issues := New(capability).Check(context.Background(), parse(t, src))
	require.Len(t, issues, 1)
	assert.Equal(t, KindAlwaysFalse, issues[0].Kind)
}

func TestFreshSolverPerQuery(t *testing.T) {
	capability, calls := counting()
	src := "a = x / y\nb = x / z\nif x == 1:\n    pass\nif x != 0.5:\n    pass\n"
	issues := New(capability).Check(context.Background(), parse(t, src))
	assert.Len(t, issues, 3)
	assert.Equal(t, int32(4), calls.Load())
}
