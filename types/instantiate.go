package types

import (
	"github.com/samber/lo"
	"github.com/smasher164/zs/ast"
)

// argKeys resolves the type arguments of a reference and returns their keys.
// ok is false while any argument is unresolved.
func (r *Resolver) argKeys(scope *ast.Table, args []*ast.TypeRef) ([]string, bool) {
	for _, a := range args {
		r.resolveTypeRef(scope, a)
	}
	return keys(args)
}

// templateScope is the table template bodies resolve their names in: the
// table of the file declaring the template.
func (r *Resolver) templateScope(tmpl ast.Node) *ast.Table {
	if f := r.Tree.FileOf(tmpl); f != nil {
		return f.Table
	}
	if m := r.Tree.ModuleOf(tmpl); m != nil {
		return m.Table
	}
	return r.Tree.Universe()
}

func (r *Resolver) substitution(params []ast.Identifier, args []*ast.TypeRef) map[string]*ast.TypeRef {
	subst := make(map[string]*ast.TypeRef, len(params))
	for i, p := range params {
		subst[p.Canonical] = args[i]
	}
	return subst
}

// adopt records a new instance under the module owning its template.
func (r *Resolver) adopt(inst, tmpl ast.Node) {
	if m := r.Tree.ModuleOf(tmpl); m != nil {
		m.Instances = append(m.Instances, inst)
		r.Tree.Adopt(m, inst)
	}
	r.instances = append(r.instances, inst)
}

// instantiateType binds a reference with type arguments, creating the
// instance on first use.
func (r *Resolver) instantiateType(scope *ast.Table, tr *ast.TypeRef) {
	args, ok := r.argKeys(scope, tr.Args)
	if !ok {
		return
	}
	key := ast.InstanceKey(tr.Name.Canonical, args)
	if e := scope.Lookup(key, ast.KindType); e.HasDef() {
		r.bindType(tr, e, e.Def().(ast.TypeDef))
		return
	}
	te := scope.Lookup(ast.TemplateKey(tr.Name.Canonical, len(tr.Args)), ast.KindType)
	tmpl, ok := te.Def().(*ast.StructDef)
	if !ok {
		return
	}
	// qualified references name the instance differently from its owner
	key = ast.InstanceKey(tmpl.Name.Canonical, args)
	owner := te.Scope
	if e := owner.FindLocal(key, ast.KindType); e.HasDef() {
		r.bindType(tr, e, e.Def().(ast.TypeDef))
		return
	}
	r.tracef("instantiate %s", key)
	subst := r.substitution(tmpl.TypeParams, tr.Args)
	name := tmpl.Name
	name.Arity = 0
	name.Args = args
	inst := ast.New(r.Tree, tmpl.Span(), &ast.TemplateInstance{
		Name:     name,
		Template: tmpl,
		Args:     lo.Map(tr.Args, func(a *ast.TypeRef, _ int) *ast.TypeRef { return ast.CloneTypeRef(r.Tree, a) }),
		Base:     cloneRef(r.Tree, tmpl.Base, subst),
		Fields:   lo.Map(tmpl.Fields, func(f *ast.Field, _ int) *ast.Field { return ast.Clone(r.Tree, f, subst, nil) }),
	})
	e, err := owner.Add(inst)
	ast.Assert(err == nil, "instance %s registered twice: %v", key, err)
	r.adopt(inst, tmpl)
	r.bindType(tr, e, inst)
	r.queue = append(r.queue, work{scope: r.templateScope(tmpl), node: inst})
}

func cloneRef(t *ast.Tree, tr *ast.TypeRef, subst map[string]*ast.TypeRef) *ast.TypeRef {
	if tr == nil {
		return nil
	}
	return ast.Clone(t, tr, subst, nil)
}

// instantiateFunction binds a call with type arguments to its instance,
// creating the instance on first use. The new function is bound and typed
// by a queued work item; its signature is resolved right away.
func (r *Resolver) instantiateFunction(scope *ast.Table, call *ast.FunctionRef) {
	if call.Def != nil {
		return
	}
	args, ok := r.argKeys(scope, call.TypeArgs)
	if !ok {
		return
	}
	key := ast.InstanceKey(call.Name.Canonical, args)
	if e := scope.Lookup(key, ast.KindFunction); e.HasDef() {
		r.bindCall(call, e)
		return
	}
	te := scope.Lookup(ast.TemplateKey(call.Name.Canonical, len(args)), ast.KindFunction)
	fns := te.Functions()
	if len(fns) == 0 {
		return
	}
	tmpl := fns[0]
	key = ast.InstanceKey(tmpl.Name.Canonical, args)
	owner := te.Scope
	if e := owner.FindLocal(key, ast.KindFunction); e.HasDef() {
		r.bindCall(call, e)
		return
	}
	r.tracef("instantiate %s", key)
	subst := r.substitution(tmpl.TypeParams, call.TypeArgs)
	inst := ast.Clone(r.Tree, tmpl, subst, tmpl.Table.Parent)
	inst.Name.Arity = 0
	inst.Name.Args = args
	inst.TypeParams = nil
	inst.Template = tmpl
	inst.TemplateArgs = lo.Map(call.TypeArgs, func(a *ast.TypeRef, _ int) *ast.TypeRef { return ast.CloneTypeRef(r.Tree, a) })
	for _, a := range inst.TemplateArgs {
		r.Tree.Adopt(inst, a)
	}
	e, err := owner.Add(inst)
	ast.Assert(err == nil, "instance %s registered twice: %v", key, err)
	r.adopt(inst, tmpl)
	r.signature(inst)
	r.bindCall(call, e)
	r.queue = append(r.queue, work{scope: tmpl.Table.Parent, node: inst})
}

func (r *Resolver) bindCall(call *ast.FunctionRef, e *ast.Entry) {
	call.Symbol = e
	call.Def = e.Functions()[0]
	e.AddReference(call)
}
