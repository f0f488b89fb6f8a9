package constraint

import (
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/panbanda/pyaudit/pkg/ast"
)

// parseNumber returns the exact value of a Python int or float literal.
// Imaginary literals report their coefficient with imaginary set. Floats
// that overflow a double are rejected.
func parseNumber(text string) (value *big.Rat, imaginary bool, ok bool) {
	s := strings.ToLower(strings.ReplaceAll(text, "_", ""))
	if strings.HasSuffix(s, "j") {
		imaginary = true
		s = strings.TrimSuffix(s, "j")
	}
	s = strings.TrimSuffix(s, "l")
	if s == "" {
		return nil, false, false
	}

	isHex := strings.HasPrefix(s, "0x")
	if !isHex && strings.ContainsAny(s, ".e") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return nil, false, false
		}
		if strings.HasPrefix(s, ".") {
			s = "0" + s
		}
		s = strings.Replace(s, ".e", ".0e", 1)
		if strings.HasSuffix(s, ".") {
			s += "0"
		}
		r, ok := new(big.Rat).SetString(s)
		if !ok {
			return nil, false, false
		}
		return r, imaginary, true
	}

	i, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, false, false
	}
	return new(big.Rat).SetInt(i), imaginary, true
}

// numericValue evaluates a real int or float literal, optionally signed.
func numericValue(n *ast.Node) (*big.Rat, bool) {
	switch n.Kind() {
	case ast.KindInt, ast.KindFloat:
		v, imaginary, ok := parseNumber(n.Text())
		if !ok || imaginary {
			return nil, false
		}
		return v, true
	case ast.KindUnaryOp:
		operand := n.Left()
		if operand == nil {
			return nil, false
		}
		v, ok := numericValue(operand)
		if !ok {
			return nil, false
		}
		switch n.Op() {
		case "+":
			return v, true
		case "-":
			return v.Neg(v), true
		}
	}
	return nil, false
}

// isZeroLiteral reports whether n is a literal equal to zero: an int,
// float or imaginary zero, False, or a signed form of one.
func isZeroLiteral(n *ast.Node) bool {
	switch n.Kind() {
	case ast.KindFalse:
		return true
	case ast.KindInt, ast.KindFloat:
		v, _, ok := parseNumber(n.Text())
		return ok && v.Sign() == 0
	case ast.KindUnaryOp:
		if (n.Op() == "-" || n.Op() == "+") && n.Left() != nil {
			return isZeroLiteral(n.Left())
		}
	}
	return false
}

// literalText renders a literal as written, including any sign.
func literalText(n *ast.Node) string {
	if n.Kind() == ast.KindUnaryOp && n.Left() != nil {
		return n.Op() + literalText(n.Left())
	}
	return n.Text()
}
