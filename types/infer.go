package types

import (
	"errors"
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"github.com/smasher164/zs/ast"
	"github.com/smasher164/zs/diag"
)

var errRange = errors.New("value does not fit in 64 bits")

// LiteralType infers the intrinsic of a numeric literal: the narrowest
// integer class holding the value, signed only when negative. Literals with
// a fraction or exponent are F64.
func LiteralType(raw string, negative bool) (ast.Intrinsic, error) {
	if isFloat(raw) {
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			return 0, fmt.Errorf("invalid float literal %s", raw)
		}
		return ast.F64, nil
	}
	v, err := strconv.ParseUint(raw, 0, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, errRange
		}
		return 0, fmt.Errorf("invalid integer literal %s", raw)
	}
	if !negative {
		return ast.IntegerOf(unsignedBits(v), false), nil
	}
	if v > 1<<63 {
		return 0, errRange
	}
	return ast.IntegerOf(signedBits(v), true), nil
}

func isFloat(raw string) bool {
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		return false
	}
	return strings.ContainsAny(raw, ".eE")
}

func class(n int) int {
	switch {
	case n <= 8:
		return 8
	case n <= 16:
		return 16
	case n <= 32:
		return 32
	}
	return 64
}

func unsignedBits(v uint64) int {
	return class(bits.Len64(v))
}

// signedBits is the width holding -v.
func signedBits(v uint64) int {
	if v == 0 {
		return 8
	}
	return class(bits.Len64(v-1) + 1)
}

// fits reports whether the literal magnitude v, negated when negative, is
// representable in the integer intrinsic in.
func fits(v uint64, negative bool, in ast.Intrinsic) bool {
	if !in.IsInteger() {
		return false
	}
	if !in.IsSigned() {
		return !negative && unsignedBits(v) <= in.Bits()
	}
	if negative {
		return signedBits(v) <= in.Bits()
	}
	return bits.Len64(v) < in.Bits()
}

// literalValue returns the magnitude of an integer literal.
func literalValue(lit *ast.Literal) (uint64, bool) {
	if lit.Kind != ast.NumberLiteral || isFloat(lit.Raw) {
		return 0, false
	}
	v, err := strconv.ParseUint(lit.Raw, 0, 64)
	return v, err == nil
}

func intrinsicOf(tr *ast.TypeRef) (ast.Intrinsic, bool) {
	if it, ok := tr.Def.(*ast.IntrinsicType); ok && tr.IsResolved() && !tr.Optional && !tr.ErrorUnion {
		return it.Intrinsic, true
	}
	return 0, false
}

// intrinsicRef makes a resolved reference to an intrinsic type.
func (r *Resolver) intrinsicRef(in ast.Intrinsic) *ast.TypeRef {
	def := r.Tree.Intrinsic(in)
	return ast.New(r.Tree, def.Span(), &ast.TypeRef{
		Name:   def.Name,
		Def:    def,
		Symbol: r.Tree.Universe().FindLocal(def.Name.Canonical, ast.KindType),
	})
}

func (r *Resolver) typeLiteral(lit *ast.Literal) {
	if lit.Type != nil || r.Diags.Has(lit, diag.InvalidLiteral) {
		return
	}
	var in ast.Intrinsic
	switch lit.Kind {
	case ast.StringLiteral:
		in = ast.Str
	case ast.BoolLiteral:
		in = ast.Bool
	default:
		var err error
		if in, err = LiteralType(lit.Raw, lit.Negative); err != nil {
			r.Diags.Report(r.Tree, diag.InvalidLiteral, lit, "%v", err)
			return
		}
	}
	r.setType(lit, &lit.Type, r.intrinsicRef(in))
}

// widen decides the result type of a binary operation whose operand types
// differ. It returns nil on a mismatch.
func (r *Resolver) widen(e *ast.Expression, lt, rt *ast.TypeRef) *ast.TypeRef {
	if !r.Widen {
		return nil
	}
	li, lok := intrinsicOf(lt)
	ri, rok := intrinsicOf(rt)
	if !lok || !rok || !li.IsInteger() || !ri.IsInteger() {
		return nil
	}
	if lit, ok := e.Right.(*ast.Literal); ok {
		if v, ok := literalValue(lit); ok && fits(v, lit.Negative, li) {
			return lt
		}
	}
	if lit, ok := e.Left.(*ast.Literal); ok {
		if v, ok := literalValue(lit); ok && fits(v, lit.Negative, ri) {
			return rt
		}
	}
	if li.IsSigned() != ri.IsSigned() {
		return nil
	}
	if li.Bits() >= ri.Bits() {
		return lt
	}
	return rt
}
