package ast

//go:generate stringer -type=Kind -trimprefix=Kind

// Kind is the syntactic category of a Node.
type Kind uint8

const (
	// KindOther covers every construct the analyses do not distinguish.
	// Its Text is the tree-sitter node type.
	KindOther Kind = iota
	KindModule
	KindBlock
	KindFunction
	KindLambda
	KindClass
	KindIf
	KindElif
	KindElse
	KindFor
	KindWhile
	KindTry
	KindExcept
	KindFinally
	KindWith
	KindMatch
	KindCase
	KindBoolOp
	KindNot
	KindCompare
	KindBinOp
	KindAugAssign
	KindUnaryOp
	KindName
	KindInt
	KindFloat
	KindString
	KindTrue
	KindFalse
	KindNone
	KindImport
	KindCall
	KindReturn
	KindPass
)

// IsLiteral reports whether the kind is a constant literal.
func (k Kind) IsLiteral() bool {
	switch k {
	case KindInt, KindFloat, KindString, KindTrue, KindFalse, KindNone:
		return true
	}
	return false
}

// IsCompound reports whether the kind is a statement that introduces a
// nested block of its own (the statements that deepen nesting).
func (k Kind) IsCompound() bool {
	switch k {
	case KindIf, KindFor, KindWhile, KindTry, KindWith, KindMatch:
		return true
	}
	return false
}

// IsScope reports whether the kind opens a new function or class scope.
func (k Kind) IsScope() bool {
	return k == KindFunction || k == KindClass
}
