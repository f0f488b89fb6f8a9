package ast

import "slices"

// Node is one element of a syntax tree. Nodes are immutable after New
// returns and hold no reference to their parent.
//
// Child layout by kind:
//
//	Module, Block       statements
//	Function, Class     body Block, then definition-time expressions
//	                    (defaults, annotations, bases)
//	Lambda              body expression, then default expressions
//	If                  test, Block, then Elif and Else clauses
//	Elif, While         test, Block (While may end with an Else)
//	Compare             operands; Ops holds len(operands)-1 operators
//	BoolOp, BinOp       left, right; Text is the operator
//	AugAssign           target, value; Text is the operator ("/=")
//	Not, UnaryOp        operand; UnaryOp Text is the operator
//	Name, literals      no children; Text is the source text
type Node struct {
	kind     Kind
	text     string
	ops      []string
	params   int
	async    bool
	line     int
	endLine  int
	children []*Node
}

// Spec describes a node for New.
type Spec struct {
	Kind     Kind
	Text     string
	Ops      []string
	Params   int
	Async    bool
	Line     int
	EndLine  int
	Children []*Node
}

// New builds a node from s. Slices are copied; nil children are dropped.
func New(s Spec) *Node {
	n := &Node{
		kind:    s.Kind,
		text:    s.Text,
		ops:     slices.Clone(s.Ops),
		params:  s.Params,
		async:   s.Async,
		line:    s.Line,
		endLine: s.EndLine,
	}
	if n.endLine < n.line {
		n.endLine = n.line
	}
	if len(s.Children) > 0 {
		n.children = make([]*Node, 0, len(s.Children))
		for _, c := range s.Children {
			if c != nil {
				n.children = append(n.children, c)
			}
		}
	}
	return n
}

// Kind returns the node kind.
func (n *Node) Kind() Kind { return n.kind }

// Text returns the identifier, literal source, operator or definition
// name carried by the node.
func (n *Node) Text() string { return n.text }

// Name returns the name of a Function or Class, or the identifier of a
// Name node.
func (n *Node) Name() string { return n.text }

// Op returns the operator of a BoolOp, BinOp, AugAssign or UnaryOp.
func (n *Node) Op() string { return n.text }

// Ops returns the comparison operators of a Compare.
func (n *Node) Ops() []string { return slices.Clone(n.ops) }

// NumOps returns the number of comparison operators.
func (n *Node) NumOps() int { return len(n.ops) }

// Params returns the parameter count of a Function or Lambda.
func (n *Node) Params() int { return n.params }

// Async reports whether a Function, For or With was declared async.
func (n *Node) Async() bool { return n.async }

// Line returns the 1-based first line of the node.
func (n *Node) Line() int { return n.line }

// EndLine returns the 1-based last line of the node.
func (n *Node) EndLine() int { return n.endLine }

// LineCount returns the number of physical lines the node spans.
func (n *Node) LineCount() int { return n.endLine - n.line + 1 }

// NumChildren returns the number of children.
func (n *Node) NumChildren() int { return len(n.children) }

// Child returns the i-th child, or nil when out of range.
func (n *Node) Child(i int) *Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

// Children returns a copy of the child list.
func (n *Node) Children() []*Node { return slices.Clone(n.children) }

// Body returns the statement block of a compound node, or the body
// expression of a Lambda. It returns nil when the node has no body.
func (n *Node) Body() *Node {
	if n.kind == KindLambda {
		return n.Child(0)
	}
	for _, c := range n.children {
		if c.kind == KindBlock {
			return c
		}
	}
	return nil
}

// Test returns the condition of an If, Elif or While.
func (n *Node) Test() *Node {
	switch n.kind {
	case KindIf, KindElif, KindWhile:
		return n.Child(0)
	}
	return nil
}

// Header returns the expressions of a Function, Class or Lambda that are
// evaluated where the definition appears rather than in its body.
func (n *Node) Header() []*Node {
	switch n.kind {
	case KindFunction, KindClass, KindLambda:
		if len(n.children) > 1 {
			return slices.Clone(n.children[1:])
		}
	}
	return nil
}

// Left returns the first child.
func (n *Node) Left() *Node { return n.Child(0) }

// Right returns the second child.
func (n *Node) Right() *Node { return n.Child(1) }
