package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/panbanda/pyaudit/pkg/ast"
)

// ErrParseFailure is matched by every error Parse returns for input that
// is not valid Python.
var ErrParseFailure = errors.New("parse failure")

// SyntaxError locates the first malformed construct of a source file.
type SyntaxError struct {
	Path    string
	Line    int
	Column  int
	Missing bool   // the parser expected a token that is absent
	Detail  string // set when the failure was not a grammar error
}

func (e *SyntaxError) Error() string {
	if e.Detail != "" {
		if e.Line > 0 {
			return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Column, e.Detail)
		}
		return fmt.Sprintf("%s: syntax error: %s", e.Path, e.Detail)
	}
	what := "invalid syntax"
	if e.Missing {
		what = "missing token"
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Column, what)
}

// Is makes errors.Is(err, ErrParseFailure) hold for any *SyntaxError.
func (e *SyntaxError) Is(target error) bool {
	return target == ErrParseFailure
}

// Parser wraps tree-sitter for Python. A Parser is not safe for
// concurrent use; create one per goroutine.
type Parser struct {
	parser *sitter.Parser
}

// New creates a new parser instance.
func New() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &Parser{parser: p}
}

// Close releases parser resources.
func (p *Parser) Close() {
	p.parser.Close()
}

var bom = []byte{0xEF, 0xBB, 0xBF}

// Parse parses Python source into an immutable syntax tree. A leading
// UTF-8 byte order mark is ignored. Invalid UTF-8 and any grammar error
// yield a *SyntaxError.
func (p *Parser) Parse(ctx context.Context, path string, src []byte) (tree *ast.Tree, err error) {
	src = bytes.TrimPrefix(src, bom)
	if !utf8.Valid(src) {
		return nil, invalidEncoding(path, src)
	}

	cst, err := p.parser.ParseCtx(ctx, nil, src)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &SyntaxError{Path: path, Detail: err.Error()}
	}
	defer cst.Close()

	root := cst.RootNode()
	if root == nil {
		return nil, &SyntaxError{Path: path, Detail: "empty parse tree"}
	}
	if root.HasError() {
		return nil, locateError(path, root)
	}

	defer func() {
		if r := recover(); r != nil {
			tree = nil
			err = &SyntaxError{Path: path, Detail: fmt.Sprintf("lowering failed: %v", r)}
		}
	}()

	l := newLowerer(src)
	l.markCode(root)
	module := l.lower(root)
	return ast.NewTree(path, module, CountLines(src), l.code), nil
}

// invalidEncoding locates the first byte of src that is not valid UTF-8.
func invalidEncoding(path string, src []byte) *SyntaxError {
	line, col := 1, 1
	for i := 0; i < len(src); {
		r, size := utf8.DecodeRune(src[i:])
		if r == utf8.RuneError && size <= 1 {
			break
		}
		switch {
		case r == '\n':
			line, col = line+1, 1
		case r == '\r':
			line, col = line+1, 1
			if i+1 < len(src) && src[i+1] == '\n' {
				size++
			}
		default:
			col++
		}
		i += size
	}
	return &SyntaxError{Path: path, Line: line, Column: col, Detail: "invalid UTF-8"}
}

// locateError finds the first ERROR or MISSING node in source order.
func locateError(path string, root *sitter.Node) *SyntaxError {
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.IsMissing() || n.Type() == "ERROR" {
			pt := n.StartPoint()
			return &SyntaxError{
				Path:    path,
				Line:    int(pt.Row) + 1,
				Column:  int(pt.Column) + 1,
				Missing: n.IsMissing(),
			}
		}
		if !n.HasError() {
			continue
		}
		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			if c := n.Child(i); c != nil {
				stack = append(stack, c)
			}
		}
	}
	pt := root.StartPoint()
	return &SyntaxError{Path: path, Line: int(pt.Row) + 1, Column: int(pt.Column) + 1}
}

// CountLines returns the number of physical lines in src. Lines end at
// "\n", "\r\n" or "\r"; a final unterminated line counts.
func CountLines(src []byte) int {
	n := 0
	for i := 0; i < len(src); i++ {
		switch src[i] {
		case '\n':
			n++
		case '\r':
			n++
			if i+1 < len(src) && src[i+1] == '\n' {
				i++
			}
		}
	}
	if len(src) > 0 && src[len(src)-1] != '\n' && src[len(src)-1] != '\r' {
		n++
	}
	return n
}

// IsPython reports whether path names a Python source file.
func IsPython(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py", ".pyw":
		return true
	}
	return false
}
