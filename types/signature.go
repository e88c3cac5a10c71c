package types

import (
	"github.com/samber/lo"
	"github.com/smasher164/zs/ast"
	"golang.org/x/exp/slices"
)

// TypeKey is the canonical key of a resolved type reference, or "" when tr
// is unresolved.
func TypeKey(tr *ast.TypeRef) string {
	if !tr.IsResolved() {
		return ""
	}
	key := tr.Def.TypeName().Key()
	if tr.Optional {
		key += "?"
	}
	if tr.ErrorUnion {
		key += "!"
	}
	return key
}

func keys(trs []*ast.TypeRef) ([]string, bool) {
	out := make([]string, len(trs))
	for i, tr := range trs {
		if out[i] = TypeKey(tr); out[i] == "" {
			return nil, false
		}
	}
	return out, true
}

// ArgSignature lists the argument types of a call. ok is false while any
// argument is untyped.
func ArgSignature(call *ast.FunctionRef) (sig []string, ok bool) {
	return keys(lo.Map(call.Args, func(a ast.Expr, _ int) *ast.TypeRef { return a.TypeOf() }))
}

// ParamSignature lists the resolved parameter types of fn.
func ParamSignature(fn *ast.FunctionDef) (sig []string, ok bool) {
	if fn.Type == nil {
		return nil, true
	}
	return keys(lo.Map(fn.Type.Params, func(p *ast.Parameter, _ int) *ast.TypeRef { return p.Type }))
}

// Match returns the candidates whose parameter signature equals sig
// exactly. No conversion is considered.
func Match(sig []string, candidates []*ast.FunctionDef) []*ast.FunctionDef {
	return lo.Filter(candidates, func(fn *ast.FunctionDef, _ int) bool {
		psig, ok := ParamSignature(fn)
		return ok && slices.Equal(psig, sig)
	})
}

// Select picks the overload a call denotes, or nil when there is no unique
// exact match.
func Select(call *ast.FunctionRef) *ast.FunctionDef {
	if call.Symbol == nil {
		return nil
	}
	sig, ok := ArgSignature(call)
	if !ok {
		return nil
	}
	if m := Match(sig, call.Symbol.Functions()); len(m) == 1 {
		return m[0]
	}
	return nil
}
