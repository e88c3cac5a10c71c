package check

import (
	"github.com/smasher164/zs/ast"
	"github.com/smasher164/zs/diag"
)

// Rules reports every slot the earlier passes left empty, and calls whose
// result is dropped. It does not modify the tree.
func (c *Checker) Rules(scope *ast.Table, n ast.Node) {
	ast.WalkScoped(scope, n, c.rule)
}

func (c *Checker) rule(scope *ast.Table, n ast.Node, rec func(ast.Node) bool) bool {
	if skipTemplate(n) {
		return false
	}
	switch n := n.(type) {
	case *ast.TypeRef:
		c.typeRef(n)
		return false
	case *ast.VariableRef:
		if n.Annotation != nil {
			c.typeRef(n.Annotation)
		}
		c.variable(scope, n)
		return false
	case *ast.FunctionRef:
		if rec(n) {
			return true
		}
		c.call(n)
		return false
	case *ast.ExprStmt:
		c.discarded(n)
	case *ast.Assignment:
		// the value first: a target typed from a bad value is not reported again
		ast.WalkScoped(scope, n.Value, c.rule)
		if t := n.Target; t.Type == nil && t.Def != nil && !ast.IsNil(n.Value) && c.Diags.About(n.Value) {
			c.reported[t.Def] = true
		}
		ast.WalkScoped(scope, n.Target, c.rule)
		return false
	}
	return rec(n)
}

// typeRef reports the innermost unresolved reference only.
func (c *Checker) typeRef(tr *ast.TypeRef) {
	if tr.IsResolved() {
		return
	}
	inner := false
	for _, a := range tr.Args {
		if !a.IsResolved() {
			c.typeRef(a)
			inner = true
		}
	}
	if !inner && !c.Diags.Has(tr, diag.UndefinedType) {
		c.Diags.Report(c.Tree, diag.UndefinedType, tr, "undefined type %s", ast.TypeRefString(tr))
	}
}

func (c *Checker) variable(scope *ast.Table, ref *ast.VariableRef) {
	if ref.Name.IsDiscard() || c.Diags.About(ref) {
		return
	}
	switch {
	case ref.Def == nil:
		c.undefinedVariable(scope, ref)
	case len(ref.Members) > 0 && ref.Member == nil:
		if base := c.baseType(ref); base.IsResolved() {
			c.Diags.Report(c.Tree, diag.UndefinedMember, ref, "%s has no member %s", ast.TypeRefString(base), ref.Name.Local())
		}
	case ref.Type == nil:
		t := c.baseType(ref)
		if t != nil && !t.IsResolved() {
			// the declared type is reported where it is written
			return
		}
		if _, ok := ref.Def.(*ast.VariableDef); ok && t.IsResolved() {
			c.Diags.Report(c.Tree, diag.UndefinedVariable, ref, "%s is used before it is assigned", ref.Name.Name)
			return
		}
		if c.reported[ref.Def] {
			return
		}
		c.reported[ref.Def] = true
		c.Diags.Report(c.Tree, diag.UndefinedType, ref, "cannot determine the type of %s", ref.Name.Name)
	}
}

func (c *Checker) baseType(ref *ast.VariableRef) *ast.TypeRef {
	switch def := ref.Def.(type) {
	case *ast.VariableDef:
		return def.Type
	case *ast.Parameter:
		return def.Type
	}
	return nil
}

func (c *Checker) undefinedVariable(scope *ast.Table, ref *ast.VariableRef) {
	if q := ref.Name.Qualifier(); q != "" {
		if _, ok := scope.Lookup(ast.Canonical(q), ast.KindType).Def().(*ast.EnumDef); ok {
			c.Diags.Report(c.Tree, diag.UndefinedEnumOption, ref, "enum %s has no option %s", q, ref.Name.Local())
			return
		}
	}
	c.Diags.Report(c.Tree, diag.UndefinedVariable, ref, "undefined variable %s", ref.Name.Name)
}

func (c *Checker) call(call *ast.FunctionRef) {
	if call.Def != nil || c.Diags.Has(call, diag.OverloadNotFound) || c.Diags.Has(call, diag.UndefinedFunction) {
		return
	}
	if call.Symbol.Overloaded() {
		// argument types are unknown; their own diagnostics explain why
		return
	}
	c.Diags.Report(c.Tree, diag.UndefinedFunction, call, "undefined function %s", ast.TypeRefString(&ast.TypeRef{Name: call.Name, Args: call.TypeArgs}))
}

func (c *Checker) discarded(s *ast.ExprStmt) {
	call, ok := s.X.(*ast.FunctionRef)
	if !ok || !c.MustUse || !call.MustUse || !call.Type.IsResolved() {
		return
	}
	if it, ok := call.Type.Def.(*ast.IntrinsicType); ok && it.Intrinsic == ast.Void {
		return
	}
	c.Diags.Report(c.Tree, diag.ReturnValueNotAssigned, call, "result of %s is not used", call.Name.Name)
}
