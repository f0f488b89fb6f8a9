package ast

import (
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaf(k Kind, text string, line int) *Node {
	return New(Spec{Kind: k, Text: text, Line: line, EndLine: line})
}

func block(line, end int, stmts ...*Node) *Node {
	return New(Spec{Kind: KindBlock, Line: line, EndLine: end, Children: stmts})
}

func fn(name string, line, end int, body *Node, header ...*Node) *Node {
	children := append([]*Node{body}, header...)
	return New(Spec{Kind: KindFunction, Text: name, Line: line, EndLine: end, Children: children})
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindOther, "Other"},
		{KindModule, "Module"},
		{KindAugAssign, "AugAssign"},
		{KindPass, "Pass"},
		{Kind(200), "Kind(200)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String())
	}
}

func TestKindPredicates(t *testing.T) {
	assert.True(t, KindInt.IsLiteral())
	assert.True(t, KindNone.IsLiteral())
	assert.False(t, KindName.IsLiteral())

	for _, k := range []Kind{KindIf, KindFor, KindWhile, KindTry, KindWith, KindMatch} {
		assert.True(t, k.IsCompound(), k.String())
	}
	assert.False(t, KindElif.IsCompound())
	assert.False(t, KindExcept.IsCompound())
	assert.True(t, KindClass.IsScope())
}

func TestNewCopiesInputs(t *testing.T) {
	a := leaf(KindName, "x", 1)
	ops := []string{"<"}
	children := []*Node{a, nil, leaf(KindInt, "3", 1)}

	n := New(Spec{Kind: KindCompare, Ops: ops, Line: 1, Children: children})
	ops[0] = "=="
	children[0] = nil

	assert.Equal(t, []string{"<"}, n.Ops())
	require.Equal(t, 2, n.NumChildren())
	assert.Same(t, a, n.Child(0))
	assert.Nil(t, n.Child(5))
	assert.Equal(t, 1, n.EndLine(), "end line is clamped to the start")

	got := n.Children()
	got[0] = nil
	assert.Same(t, a, n.Child(0))
}

func TestAccessors(t *testing.T) {
	test := leaf(KindTrue, "True", 2)
	body := block(3, 3, leaf(KindPass, "pass", 3))
	ifNode := New(Spec{Kind: KindIf, Line: 2, EndLine: 3, Children: []*Node{test, body}})
	assert.Same(t, test, ifNode.Test())
	assert.Same(t, body, ifNode.Body())

	def := leaf(KindInt, "1", 1)
	f := fn("f", 1, 3, block(2, 3, ifNode), def)
	assert.Equal(t, "f", f.Name())
	assert.Equal(t, 3, f.LineCount())
	assert.Equal(t, []*Node{def}, f.Header())
	assert.Nil(t, f.Test())

	lam := New(Spec{Kind: KindLambda, Params: 1, Children: []*Node{leaf(KindName, "x", 1)}})
	assert.Equal(t, KindName, lam.Body().Kind())
	assert.Empty(t, lam.Header())
}

func TestFunctionsPreOrder(t *testing.T) {
	inner := fn("inner", 2, 3, block(3, 3, leaf(KindPass, "pass", 3)))
	outer := fn("outer", 1, 3, block(2, 3, inner))
	second := fn("second", 5, 6, block(6, 6, leaf(KindPass, "pass", 6)))
	root := New(Spec{Kind: KindModule, Line: 1, EndLine: 6, Children: []*Node{outer, second}})

	var names []string
	for _, f := range Functions(root) {
		names = append(names, f.Name())
	}
	assert.Equal(t, []string{"outer", "inner", "second"}, names)
	assert.Equal(t, 3, Count(root, KindFunction))
	assert.Equal(t, 3, Count(root, KindPass))
}

func TestInspectFunctionSkipsNestedBodies(t *testing.T) {
	inner := fn("inner", 3, 4, block(4, 4, New(Spec{Kind: KindIf, Line: 4})))
	outer := fn("outer", 1, 5, block(2, 5, New(Spec{Kind: KindIf, Line: 2}), inner))

	var kinds []Kind
	InspectFunction(outer, func(n *Node) bool {
		kinds = append(kinds, n.Kind())
		return true
	})
	assert.Equal(t, []Kind{KindBlock, KindIf, KindFunction}, kinds)
}

func TestInspectFunctionVisitsNestedHeaders(t *testing.T) {
	dflt := leaf(KindBoolOp, "and", 3)
	inner := fn("inner", 3, 4, block(4, 4, New(Spec{Kind: KindIf, Line: 4})), dflt)
	outer := fn("outer", 1, 5, block(2, 5, inner), leaf(KindBoolOp, "or", 1))

	var kinds []Kind
	InspectFunction(outer, func(n *Node) bool {
		kinds = append(kinds, n.Kind())
		return true
	})
	assert.Equal(t, []Kind{KindBlock, KindFunction, KindBoolOp}, kinds)
}

func TestInspectPrune(t *testing.T) {
	root := block(1, 2, block(1, 1, leaf(KindName, "a", 1)), leaf(KindName, "b", 2))
	var seen []string
	Inspect(root, func(n *Node) bool {
		if n.Kind() == KindName {
			seen = append(seen, n.Text())
		}
		return n == root
	})
	assert.Equal(t, []string{"b"}, seen)
}

func TestTreeLines(t *testing.T) {
	lines := roaring.New()
	lines.AddRange(1, 3)
	lines.Add(5)

	tree := NewTree("a.py", nil, 6, lines)
	lines.Add(6)

	assert.Equal(t, "a.py", tree.Path())
	assert.Equal(t, KindModule, tree.Root().Kind())
	assert.Equal(t, 6, tree.TotalLines())
	assert.Equal(t, 3, tree.EffectiveLines())
	assert.True(t, tree.IsCodeLine(2))
	assert.False(t, tree.IsCodeLine(4))
	assert.False(t, tree.IsCodeLine(6))
	assert.False(t, tree.IsCodeLine(0))
}
