package check

import (
	"strings"

	"github.com/smasher164/zs/ast"
	"github.com/smasher164/zs/diag"
	"github.com/smasher164/zs/types"
)

// skipTemplate stops a walk at template definitions. Their bodies are only
// meaningful once instantiated.
func skipTemplate(n ast.Node) bool {
	switch n := n.(type) {
	case *ast.FunctionDef:
		return n.IsTemplate()
	case *ast.StructDef:
		return n.IsTemplate()
	}
	return false
}

// Overloads binds every call to an overload set to the candidate whose
// parameter types equal the argument types exactly.
func (c *Checker) Overloads(n ast.Node) {
	ast.Walk(n, func(n ast.Node, rec func(ast.Node) bool) bool {
		if skipTemplate(n) {
			return false
		}
		if call, ok := n.(*ast.FunctionRef); ok {
			if rec(n) {
				return true
			}
			c.overload(call)
			return false
		}
		return rec(n)
	})
}

func (c *Checker) overload(call *ast.FunctionRef) {
	if call.Def != nil || !call.Symbol.Overloaded() || c.Diags.Has(call, diag.OverloadNotFound) {
		return
	}
	sig, ok := types.ArgSignature(call)
	if !ok {
		return
	}
	if m := types.Match(sig, call.Symbol.Functions()); len(m) == 1 {
		call.Def = m[0]
		return
	}
	c.Diags.Report(c.Tree, diag.OverloadNotFound, call, "no overload of %s takes (%s)", call.Name.Name, strings.Join(sig, ", "))
}
