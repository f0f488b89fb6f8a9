package parser

import (
	"github.com/RoaringBitmap/roaring/v2"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/pyaudit/pkg/ast"
)

// lowerer converts a tree-sitter Python CST into ast nodes and records
// which lines hold code.
type lowerer struct {
	src  []byte
	code *roaring.Bitmap
}

func newLowerer(src []byte) *lowerer {
	return &lowerer{src: src, code: roaring.New()}
}

// kinds maps tree-sitter node types that lower uniformly.
var kinds = map[string]ast.Kind{
	"module":               ast.KindModule,
	"block":                ast.KindBlock,
	"if_statement":         ast.KindIf,
	"elif_clause":          ast.KindElif,
	"else_clause":          ast.KindElse,
	"while_statement":      ast.KindWhile,
	"try_statement":        ast.KindTry,
	"except_clause":        ast.KindExcept,
	"except_group_clause":  ast.KindExcept,
	"finally_clause":       ast.KindFinally,
	"match_statement":      ast.KindMatch,
	"case_clause":          ast.KindCase,
	"not_operator":         ast.KindNot,
	"call":                 ast.KindCall,
	"return_statement":     ast.KindReturn,
	"pass_statement":       ast.KindPass,
	"for_statement":        ast.KindFor,
	"with_statement":       ast.KindWith,
	"identifier":           ast.KindName,
	"integer":              ast.KindInt,
	"float":                ast.KindFloat,
	"true":                 ast.KindTrue,
	"false":                ast.KindFalse,
	"none":                 ast.KindNone,
	"binary_operator":      ast.KindBinOp,
	"augmented_assignment": ast.KindAugAssign,
	"unary_operator":       ast.KindUnaryOp,
	"boolean_operator":     ast.KindBoolOp,
}

// stringParts are the pieces of a string literal that carry no expression.
var stringParts = map[string]bool{
	"string_start":         true,
	"string_content":       true,
	"string_end":           true,
	"escape_sequence":      true,
	"escape_interpolation": true,
}

func (l *lowerer) lower(n *sitter.Node) *ast.Node {
	typ := n.Type()
	switch typ {
	case "comment", "line_continuation":
		return nil
	case "function_definition":
		return l.function(n)
	case "lambda":
		return l.lambda(n)
	case "class_definition":
		return l.class(n)
	case "comparison_operator":
		return l.compare(n)
	case "parenthesized_expression":
		inner := l.named(n)
		if len(inner) == 1 {
			return inner[0]
		}
		return l.node(n, ast.KindOther, typ, inner)
	case "string", "concatenated_string":
		var parts []*ast.Node
		for i := range int(n.NamedChildCount()) {
			c := n.NamedChild(i)
			if stringParts[c.Type()] {
				continue
			}
			parts = append(parts, l.lower(c))
		}
		return l.node(n, ast.KindString, n.Content(l.src), parts)
	case "import_statement", "import_from_statement", "future_import_statement":
		return l.node(n, ast.KindImport, "", nil)
	}

	kind, ok := kinds[typ]
	if !ok {
		return l.node(n, ast.KindOther, typ, l.named(n))
	}
	switch kind {
	case ast.KindName, ast.KindInt, ast.KindFloat, ast.KindTrue, ast.KindFalse, ast.KindNone:
		return l.node(n, kind, n.Content(l.src), nil)
	case ast.KindBinOp, ast.KindAugAssign, ast.KindUnaryOp, ast.KindBoolOp:
		op := ""
		if o := n.ChildByFieldName("operator"); o != nil {
			op = o.Type()
		}
		return l.node(n, kind, op, l.named(n))
	case ast.KindFor, ast.KindWith:
		return ast.New(ast.Spec{
			Kind:     kind,
			Async:    hasAsync(n),
			Line:     startLine(n),
			EndLine:  endLine(n),
			Children: l.named(n),
		})
	}
	return l.node(n, kind, "", l.named(n))
}

func (l *lowerer) node(n *sitter.Node, kind ast.Kind, text string, children []*ast.Node) *ast.Node {
	return ast.New(ast.Spec{
		Kind:     kind,
		Text:     text,
		Line:     startLine(n),
		EndLine:  endLine(n),
		Children: children,
	})
}

func (l *lowerer) named(n *sitter.Node) []*ast.Node {
	count := int(n.NamedChildCount())
	out := make([]*ast.Node, 0, count)
	for i := range count {
		if c := l.lower(n.NamedChild(i)); c != nil {
			out = append(out, c)
		}
	}
	return out
}

func (l *lowerer) function(n *sitter.Node) *ast.Node {
	children := []*ast.Node{l.body(n)}
	params := n.ChildByFieldName("parameters")
	children = append(children, l.paramExprs(params)...)
	if rt := n.ChildByFieldName("return_type"); rt != nil {
		children = append(children, l.lower(rt))
	}
	return ast.New(ast.Spec{
		Kind:     ast.KindFunction,
		Text:     l.fieldText(n, "name"),
		Params:   countParams(params),
		Async:    hasAsync(n),
		Line:     startLine(n),
		EndLine:  endLine(n),
		Children: children,
	})
}

func (l *lowerer) lambda(n *sitter.Node) *ast.Node {
	var body *ast.Node
	if b := n.ChildByFieldName("body"); b != nil {
		body = l.lower(b)
	}
	if body == nil {
		body = ast.New(ast.Spec{Kind: ast.KindNone, Text: "None", Line: startLine(n)})
	}
	params := n.ChildByFieldName("parameters")
	children := append([]*ast.Node{body}, l.paramExprs(params)...)
	return ast.New(ast.Spec{
		Kind:     ast.KindLambda,
		Params:   countParams(params),
		Line:     startLine(n),
		EndLine:  endLine(n),
		Children: children,
	})
}

func (l *lowerer) class(n *sitter.Node) *ast.Node {
	children := []*ast.Node{l.body(n)}
	if sc := n.ChildByFieldName("superclasses"); sc != nil {
		children = append(children, l.lower(sc))
	}
	return ast.New(ast.Spec{
		Kind:     ast.KindClass,
		Text:     l.fieldText(n, "name"),
		Line:     startLine(n),
		EndLine:  endLine(n),
		Children: children,
	})
}

// body lowers the "body" field, substituting an empty block when absent.
func (l *lowerer) body(n *sitter.Node) *ast.Node {
	if b := n.ChildByFieldName("body"); b != nil {
		if lowered := l.lower(b); lowered != nil && lowered.Kind() == ast.KindBlock {
			return lowered
		}
	}
	return ast.New(ast.Spec{Kind: ast.KindBlock, Line: endLine(n), EndLine: endLine(n)})
}

// paramExprs lowers the default values and annotations of a parameter
// list, which are evaluated where the definition appears.
func (l *lowerer) paramExprs(params *sitter.Node) []*ast.Node {
	if params == nil {
		return nil
	}
	var out []*ast.Node
	for i := range int(params.NamedChildCount()) {
		p := params.NamedChild(i)
		for _, field := range []string{"type", "value"} {
			if f := p.ChildByFieldName(field); f != nil {
				if lowered := l.lower(f); lowered != nil {
					out = append(out, lowered)
				}
			}
		}
	}
	return out
}

// compare lowers a comparison chain, joining two-token operators such as
// "not in" and "is not".
func (l *lowerer) compare(n *sitter.Node) *ast.Node {
	var (
		operands []*ast.Node
		ops      []string
		pending  string
	)
	for i := range int(n.ChildCount()) {
		c := n.Child(i)
		if c.IsNamed() {
			lowered := l.lower(c)
			if lowered == nil {
				continue
			}
			if pending != "" {
				ops = append(ops, pending)
				pending = ""
			}
			operands = append(operands, lowered)
			continue
		}
		if pending == "" {
			pending = c.Type()
		} else {
			pending += " " + c.Type()
		}
	}
	return ast.New(ast.Spec{
		Kind:     ast.KindCompare,
		Ops:      ops,
		Line:     startLine(n),
		EndLine:  endLine(n),
		Children: operands,
	})
}

func (l *lowerer) fieldText(n *sitter.Node, field string) string {
	if f := n.ChildByFieldName(field); f != nil {
		return f.Content(l.src)
	}
	return ""
}

// countParams counts positional-only, regular and keyword-only
// parameters. Variadic parameters and the bare "*" and "/" markers are
// not counted.
func countParams(params *sitter.Node) int {
	if params == nil {
		return 0
	}
	count := 0
	for i := range int(params.NamedChildCount()) {
		p := params.NamedChild(i)
		switch p.Type() {
		case "identifier", "default_parameter", "typed_default_parameter", "tuple_pattern":
			count++
		case "typed_parameter":
			if first := p.NamedChild(0); first != nil {
				switch first.Type() {
				case "list_splat_pattern", "dictionary_splat_pattern":
					continue
				}
			}
			count++
		}
	}
	return count
}

func hasAsync(n *sitter.Node) bool {
	for i := range int(n.ChildCount()) {
		c := n.Child(i)
		if c.IsNamed() {
			return false
		}
		if c.Type() == "async" {
			return true
		}
	}
	return false
}

// markCode records every line covered by a non-comment token. String
// literals are marked as a whole so multi-line strings count on every
// line they span.
func (l *lowerer) markCode(root *sitter.Node) {
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		typ := n.Type()
		if typ == "comment" || typ == "line_continuation" {
			continue
		}
		if typ == "string" || n.ChildCount() == 0 {
			if n.EndByte() > n.StartByte() {
				l.code.AddRange(uint64(startLine(n)), uint64(endLine(n))+1)
			}
			continue
		}
		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			if c := n.Child(i); c != nil {
				stack = append(stack, c)
			}
		}
	}
}

func startLine(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

// endLine returns the 1-based last line of n, not counting a trailing
// newline that leaves the end point at column zero.
func endLine(n *sitter.Node) int {
	start, end := n.StartPoint(), n.EndPoint()
	if end.Column == 0 && end.Row > start.Row {
		return int(end.Row)
	}
	return int(end.Row) + 1
}
