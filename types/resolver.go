// Package types binds every type reference and computes the type of every
// expression. It also materializes template instances on demand.
package types

import (
	"log"

	"github.com/smasher164/zs/ast"
	"github.com/smasher164/zs/diag"
	"github.com/smasher164/zs/names"
)

type Resolver struct {
	Tree  *ast.Tree
	Diags *diag.List
	// Names binds the subtrees of function instances.
	Names *names.Resolver
	// Widen enables implicit integer widening in binary operations.
	Widen bool
	Log   *log.Logger // may be nil

	queue     []work
	instances []ast.Node
}

// work is a pending subtree: the fields of a struct instance, or the body of
// a function instance.
type work struct {
	scope *ast.Table
	node  ast.Node
}

func (r *Resolver) tracef(format string, args ...any) {
	if r.Log != nil {
		r.Log.Printf("types: "+format, args...)
	}
}

// Resolve types module m. Declarations and module-level statements are
// handled before function bodies so that bodies see every signature.
func (r *Resolver) Resolve(m *ast.Module) {
	r.tracef("resolve %s", m.Name)
	for _, f := range m.Files {
		for _, n := range f.Body {
			r.declaration(f.Table, n)
		}
	}
	for _, f := range m.Files {
		for _, n := range f.Body {
			if fn, ok := n.(*ast.FunctionDef); ok && !fn.IsTemplate() && fn.Body != nil {
				ast.WalkScoped(fn.Table, fn.Body, r.visit)
			}
		}
	}
	r.Drain()
}

// Drain processes queued instantiation work until none is left. Work may
// queue more work.
func (r *Resolver) Drain() {
	for len(r.queue) > 0 {
		w := r.queue[0]
		r.queue = r.queue[1:]
		switch n := w.node.(type) {
		case *ast.TemplateInstance:
			r.resolveTypeRef(w.scope, n.Base)
			for _, f := range n.Fields {
				r.resolveTypeRef(w.scope, f.Type)
			}
		case *ast.FunctionDef:
			if r.Names != nil {
				r.Names.BindSubtree(w.scope, n)
			}
			r.signature(n)
			if n.Body != nil {
				ast.WalkScoped(n.Table, n.Body, r.visit)
			}
		}
	}
}

// TakeInstances returns the instances created since the last call.
func (r *Resolver) TakeInstances() []ast.Node {
	out := r.instances
	r.instances = nil
	return out
}

func (r *Resolver) declaration(scope *ast.Table, n ast.Node) {
	switch n := n.(type) {
	case *ast.Import, *ast.Export, *ast.ExternalType:
	case *ast.FunctionDef:
		if !n.IsTemplate() {
			r.signature(n)
		}
	case *ast.StructDef:
		if n.IsTemplate() {
			return
		}
		r.resolveTypeRef(scope, n.Base)
		for _, f := range n.Fields {
			r.resolveTypeRef(scope, f.Type)
		}
	case *ast.EnumDef:
		r.enumBase(scope, n)
	default:
		ast.WalkScoped(scope, n, r.visit)
	}
}

func (r *Resolver) signature(fn *ast.FunctionDef) {
	if fn.Type == nil {
		return
	}
	for _, p := range fn.Type.Params {
		r.resolveTypeRef(fn.Table, p.Type)
	}
	r.resolveTypeRef(fn.Table, fn.Type.Return)
}

func (r *Resolver) enumBase(scope *ast.Table, ed *ast.EnumDef) {
	var max uint64
	for _, o := range ed.Options {
		if o.Value > max {
			max = o.Value
		}
	}
	if ed.Base == nil {
		r.setType(ed, &ed.Base, r.intrinsicRef(ast.IntegerOf(unsignedBits(max), false)))
		return
	}
	if ed.Base.IsResolved() {
		return
	}
	r.resolveTypeRef(scope, ed.Base)
	if !ed.Base.IsResolved() {
		return
	}
	in, ok := intrinsicOf(ed.Base)
	if !ok || !in.IsInteger() {
		r.Diags.Report(r.Tree, diag.InvalidEnumBase, ed.Base, "enum %s has base %s, want an integer type", ed.Name.Name, ast.TypeRefString(ed.Base))
		return
	}
	for _, o := range ed.Options {
		if !fits(o.Value, false, in) {
			r.Diags.Report(r.Tree, diag.InvalidLiteral, o, "value %d of %s does not fit in %s", o.Value, o.Name.Name, in)
		}
	}
}

// setType fills an empty type slot of owner with tr, which must be fresh.
func (r *Resolver) setType(owner ast.Node, slot **ast.TypeRef, tr *ast.TypeRef) {
	if *slot != nil || tr == nil {
		return
	}
	*slot = tr
	r.Tree.Adopt(owner, tr)
}

// copyType fills an empty type slot with a copy of a resolved reference.
func (r *Resolver) copyType(owner ast.Node, slot **ast.TypeRef, from *ast.TypeRef) {
	if *slot != nil || !from.IsResolved() {
		return
	}
	r.setType(owner, slot, ast.CloneTypeRef(r.Tree, from))
}

// resolveTypeRef binds tr and its arguments. Unknown names stay unbound.
func (r *Resolver) resolveTypeRef(scope *ast.Table, tr *ast.TypeRef) {
	if tr == nil || tr.IsResolved() {
		return
	}
	if len(tr.Args) > 0 {
		r.instantiateType(scope, tr)
		return
	}
	e := scope.Lookup(tr.Name.Canonical, ast.KindType)
	def, ok := e.Def().(ast.TypeDef)
	if !ok {
		return
	}
	if sd, ok := def.(*ast.StructDef); ok && sd.IsTemplate() {
		return
	}
	r.bindType(tr, e, def)
}

func (r *Resolver) bindType(tr *ast.TypeRef, e *ast.Entry, def ast.TypeDef) {
	tr.Def = def
	tr.Symbol = e
	if e != nil && e.Scope != r.Tree.Universe() {
		e.AddReference(tr)
	}
}

func (r *Resolver) visit(scope *ast.Table, n ast.Node, rec func(ast.Node) bool) bool {
	switch n := n.(type) {
	case *ast.FunctionDef, *ast.StructDef, *ast.EnumDef:
		// nested declarations are handled by declaration
		return false
	case *ast.TypeRef:
		r.resolveTypeRef(scope, n)
		return false
	case *ast.Literal:
		r.typeLiteral(n)
		return false
	case *ast.VariableRef:
		if rec(n) {
			return true
		}
		r.typeVariable(scope, n)
		return false
	case *ast.Expression:
		if rec(n) {
			return true
		}
		r.typeExpression(n)
		return false
	case *ast.FunctionRef:
		if rec(n) {
			return true
		}
		if len(n.TypeArgs) > 0 {
			r.instantiateFunction(scope, n)
		}
		r.typeCall(n)
		return false
	case *ast.Assignment:
		if !ast.IsNil(n.Value) {
			ast.WalkScoped(scope, n.Value, r.visit)
		}
		r.assign(scope, n)
		return false
	}
	return rec(n)
}

// assign types the target of an assignment. An unannotated variable takes
// the type of the first value assigned to it.
func (r *Resolver) assign(scope *ast.Table, asg *ast.Assignment) {
	target := asg.Target
	if def, ok := target.Def.(*ast.VariableDef); ok && def.Type == nil && !ast.IsNil(asg.Value) {
		r.copyType(def, &def.Type, asg.Value.TypeOf())
	}
	ast.WalkScoped(scope, target, r.visit)
}

func (r *Resolver) typeVariable(scope *ast.Table, ref *ast.VariableRef) {
	if ref.Type != nil {
		return
	}
	var t *ast.TypeRef
	switch def := ref.Def.(type) {
	case *ast.VariableDef:
		r.resolveTypeRef(scope, def.Type)
		t = def.Type
	case *ast.Parameter:
		t = def.Type
	case *ast.EnumOption:
		ed, ok := r.Tree.ParentOf(def).(*ast.EnumDef)
		if !ok {
			return
		}
		tr := ast.New(r.Tree, ref.Span(), &ast.TypeRef{Name: ed.Name})
		r.bindType(tr, ref.Symbol.Scope.FindLocal(ed.Name.Key(), ast.KindType), ed)
		r.setType(ref, &ref.Type, tr)
		return
	}
	if len(ref.Members) > 0 {
		t = r.member(ref, t)
	}
	r.copyType(ref, &ref.Type, t)
}

// member follows the member path of ref starting from a value of type t and
// returns the type of the last member.
func (r *Resolver) member(ref *ast.VariableRef, t *ast.TypeRef) *ast.TypeRef {
	for _, name := range ref.Members {
		if !t.IsResolved() {
			return nil
		}
		f := r.field(t.Def, name)
		if f == nil {
			return nil
		}
		ref.Member = f
		t = f.Type
	}
	return t
}

// field finds a field by canonical name, searching struct bases.
func (r *Resolver) field(def ast.TypeDef, name string) *ast.Field {
	for depth := 0; def != nil && depth < 64; depth++ {
		var fields []*ast.Field
		var base *ast.TypeRef
		switch d := def.(type) {
		case *ast.StructDef:
			fields, base = d.Fields, d.Base
		case *ast.TemplateInstance:
			fields, base = d.Fields, d.Base
			r.resolveTypeRef(r.templateScope(d.Template), base)
			for _, f := range fields {
				r.resolveTypeRef(r.templateScope(d.Template), f.Type)
			}
		case *ast.ExternalType:
			fields = d.Fields
		default:
			return nil
		}
		for _, f := range fields {
			if f.Name.Canonical == name {
				return f
			}
		}
		if !base.IsResolved() {
			return nil
		}
		def = base.Def
	}
	return nil
}

func (r *Resolver) typeExpression(e *ast.Expression) {
	if e.Type != nil || r.Diags.Has(e, diag.TypeMismatch) {
		return
	}
	if e.Op.Is(ast.ComparisonMask | ast.LogicMask) {
		r.setType(e, &e.Type, r.intrinsicRef(ast.Bool))
		return
	}
	rt := e.Right.TypeOf()
	if e.IsUnary() {
		r.copyType(e, &e.Type, rt)
		return
	}
	lt := e.Left.TypeOf()
	if !lt.IsResolved() || !rt.IsResolved() {
		return
	}
	if TypeKey(lt) == TypeKey(rt) {
		r.copyType(e, &e.Type, lt)
		return
	}
	if t := r.widen(e, lt, rt); t != nil {
		r.copyType(e, &e.Type, t)
		return
	}
	r.Diags.Report(r.Tree, diag.TypeMismatch, e, "mismatched types %s and %s in %s", TypeKey(lt), TypeKey(rt), e.Op)
}

func (r *Resolver) typeCall(call *ast.FunctionRef) {
	if call.Type != nil {
		return
	}
	def := call.Def
	if def == nil {
		def = Select(call)
	}
	if def == nil || def.Type == nil {
		return
	}
	if def.Type.Return == nil {
		r.setType(call, &call.Type, r.intrinsicRef(ast.Void))
		return
	}
	r.copyType(call, &call.Type, def.Type.Return)
}
