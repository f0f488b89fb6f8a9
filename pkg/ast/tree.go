package ast

import "github.com/RoaringBitmap/roaring/v2"

// Tree is the parsed form of one source file.
type Tree struct {
	path       string
	root       *Node
	totalLines int
	codeLines  *roaring.Bitmap
}

// NewTree wraps a lowered module. codeLines holds the 1-based lines that
// contain at least one non-comment token; it is copied.
func NewTree(path string, root *Node, totalLines int, codeLines *roaring.Bitmap) *Tree {
	lines := roaring.New()
	if codeLines != nil {
		lines = codeLines.Clone()
	}
	if root == nil {
		root = New(Spec{Kind: KindModule, Line: 1, EndLine: 1})
	}
	return &Tree{path: path, root: root, totalLines: totalLines, codeLines: lines}
}

// Path returns the path the tree was parsed from.
func (t *Tree) Path() string { return t.path }

// Root returns the Module node.
func (t *Tree) Root() *Node { return t.root }

// TotalLines returns the number of physical lines in the source.
func (t *Tree) TotalLines() int { return t.totalLines }

// EffectiveLines returns the number of lines holding code.
func (t *Tree) EffectiveLines() int { return int(t.codeLines.GetCardinality()) }

// IsCodeLine reports whether the 1-based line holds code.
func (t *Tree) IsCodeLine(line int) bool {
	if line < 1 {
		return false
	}
	return t.codeLines.Contains(uint32(line))
}
