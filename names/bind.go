package names

import (
	"github.com/smasher164/zs/ast"
	"github.com/smasher164/zs/diag"
)

// Bind resolves the references in every file of m. Module-level statements
// are bound before function bodies. Collect must have run.
func (r *Resolver) Bind(m *ast.Module) {
	r.tracef("bind %s", m.Name)
	for _, f := range m.Files {
		for _, n := range f.Body {
			if _, ok := n.(*ast.FunctionDef); !ok {
				ast.WalkScoped(f.Table, n, r.bind)
			}
		}
	}
	for _, f := range m.Files {
		for _, n := range f.Body {
			if fn, ok := n.(*ast.FunctionDef); ok {
				ast.WalkScoped(f.Table, fn, r.bind)
			}
		}
	}
}

// BindSubtree binds a node created after Bind ran, such as a function
// instance. scope is the table the node is nested in.
func (r *Resolver) BindSubtree(scope *ast.Table, n ast.Node) {
	ast.WalkScoped(scope, n, r.bind)
}

func (r *Resolver) bind(scope *ast.Table, n ast.Node, rec func(ast.Node) bool) bool {
	switch n := n.(type) {
	case *ast.Import, *ast.Export, *ast.StructDef, *ast.EnumDef, *ast.TypeRef, *ast.VariableDef:
		return false
	case *ast.FunctionDef:
		if n.IsTemplate() {
			return false
		}
		r.bindParams(n)
		return rec(n)
	case *ast.Assignment:
		if !ast.IsNil(n.Value) {
			ast.WalkScoped(scope, n.Value, r.bind)
		}
		r.bindTarget(scope, n)
		return false
	case *ast.VariableRef:
		r.bindRead(scope, n)
		return false
	case *ast.FunctionRef:
		if rec(n) {
			return true
		}
		r.bindCall(scope, n)
		return false
	}
	return rec(n)
}

func (r *Resolver) bindParams(fn *ast.FunctionDef) {
	if fn.Type == nil {
		return
	}
	for _, p := range fn.Type.Params {
		if e := fn.Table.FindLocal(p.Name.Canonical, ast.KindParameter); e != nil && e.Def() == ast.Node(p) {
			continue
		}
		if _, err := fn.Table.Add(p); err != nil {
			r.Diags.Report(r.Tree, diag.DuplicateDefinition, p, "%v", err)
		}
	}
}

// declScope is where a declaration made in scope lives. Module-level
// statements declare into the module table so that every file sees them.
func (r *Resolver) declScope(scope *ast.Table, n ast.Node) *ast.Table {
	if _, ok := r.Tree.ParentOf(n).(*ast.File); ok {
		if m := r.Tree.ModuleOf(n); m != nil {
			return m.Table
		}
	}
	return scope
}

// declare makes ref the declaration site of a variable in scope.
func (r *Resolver) declare(scope *ast.Table, ref *ast.VariableRef) {
	e := scope.FindLocal(ref.Name.Canonical, ast.KindVariable)
	if def, ok := e.Def().(*ast.VariableDef); ok && def.Type == nil && r.readDeclared(e) {
		// promoted by an earlier read; the annotation completes it
		def.Type = ast.Clone(r.Tree, ref.Annotation, nil, nil)
		r.Tree.Adopt(def, def.Type)
		r.use(e, ref)
		return
	}
	if e.HasDef() {
		r.Diags.Report(r.Tree, diag.DuplicateDefinition, ref, "variable %s is already defined in this scope", ref.Name.Name)
		return
	}
	if e == nil {
		var err error
		e, err = scope.Add(ref)
		ast.Assert(err == nil, "reference %s rejected: %v", ref.Name.Name, err)
	}
	r.promote(e, ref)
}

// readDeclared reports whether the definition of e was synthesized by a read
// rather than by an assignment.
func (r *Resolver) readDeclared(e *ast.Entry) bool {
	def := e.Def()
	for _, ref := range e.Refs {
		if vr, ok := ref.(*ast.VariableRef); ok && vr.Decl == def {
			_, assigned := r.Tree.ParentOf(vr).(*ast.Assignment)
			return !assigned
		}
	}
	return false
}

// promote synthesizes the definition of a reference-only entry from ref.
func (r *Resolver) promote(e *ast.Entry, ref *ast.VariableRef) {
	var typ *ast.TypeRef
	if ref.Annotation != nil {
		typ = ast.Clone(r.Tree, ref.Annotation, nil, nil)
	}
	def := ast.New(r.Tree, ref.Span(), &ast.VariableDef{Name: ref.Name, Locality: e.Locality, Type: typ})
	ref.Decl = def
	r.Tree.Adopt(ref, def)
	e.Scope.PromoteToDefinition(def, ref)
	ref.Def = def
	ref.Symbol = e
}

func (r *Resolver) use(e *ast.Entry, ref *ast.VariableRef) {
	ref.Def = e.Def()
	ref.Symbol = e
	e.AddReference(ref)
}

func (r *Resolver) bindTarget(scope *ast.Table, asg *ast.Assignment) {
	target := asg.Target
	if target.Name.IsDiscard() {
		if call, ok := asg.Value.(*ast.FunctionRef); ok {
			call.MustUse = false
		}
		return
	}
	if target.Def != nil || target.Name.IsDotted() {
		r.bindRead(scope, target)
		return
	}
	name := target.Name.Canonical
	if target.Annotation != nil {
		r.declare(r.declScope(scope, asg), target)
		return
	}
	if e := lookupValue(scope, name); e != nil {
		if e.HasDef() {
			r.use(e, target)
		} else {
			r.promote(e, target)
		}
		return
	}
	r.declare(r.declScope(scope, asg), target)
}

// bindRead binds a variable read. Plain names are variables or parameters;
// dotted names are enum options, module-qualified names, or member accesses.
func (r *Resolver) bindRead(scope *ast.Table, ref *ast.VariableRef) {
	if ref.Def != nil || ref.Name.IsDiscard() {
		return
	}
	name := ref.Name.Canonical
	if e := lookupValue(scope, name); e != nil {
		if e.HasDef() {
			r.use(e, ref)
		} else {
			r.promote(e, ref)
		}
		return
	}
	if !ref.Name.IsDotted() {
		return
	}
	if e := scope.Lookup(name, ast.KindField); e != nil {
		r.use(e, ref)
		return
	}
	segs := ast.Segments(name)
	if e := lookupValue(scope, segs[0]); e.HasDef() {
		r.use(e, ref)
		ref.Members = segs[1:]
	}
}

// lookupValue finds the variable or parameter name denotes. The innermost
// scope wins regardless of kind; imported variables come last.
func lookupValue(scope *ast.Table, name string) *ast.Entry {
	for s := scope; s != nil; s = s.Parent {
		if e := s.FindLocal(name, ast.KindVariable); e != nil {
			return e
		}
		if e := s.FindLocal(name, ast.KindParameter); e != nil {
			return e
		}
	}
	return scope.Lookup(name, ast.KindVariable)
}

// bindCall binds a call to its function entry. A single candidate binds the
// definition as well; overload sets wait for overload resolution and
// template references for instantiation.
func (r *Resolver) bindCall(scope *ast.Table, call *ast.FunctionRef) {
	if call.Symbol != nil || len(call.TypeArgs) > 0 {
		return
	}
	e := scope.Lookup(call.Name.Canonical, ast.KindFunction)
	if e == nil {
		return
	}
	call.Symbol = e
	e.AddReference(call)
	if fns := e.Functions(); len(fns) == 1 {
		call.Def = fns[0]
	}
}
