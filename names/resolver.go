// Package names binds every name of a module to the symbol it denotes.
package names

import (
	"log"
	"strconv"
	"strings"

	"github.com/smasher164/zs/ast"
	"github.com/smasher164/zs/diag"
)

// Loader finds the module an import names. It returns nil when there is
// none.
type Loader interface {
	LoadModule(name string) (*ast.Module, error)
}

type Resolver struct {
	Tree   *ast.Tree
	Diags  *diag.List
	Loader Loader
	Log    *log.Logger // may be nil
}

func (r *Resolver) tracef(format string, args ...any) {
	if r.Log != nil {
		r.Log.Printf("names: "+format, args...)
	}
}

// Resolve runs both stages over m.
func (r *Resolver) Resolve(m *ast.Module) {
	r.Collect(m)
	r.Bind(m)
}

// Collect registers the module-level symbols of m and binds its imports.
func (r *Resolver) Collect(m *ast.Module) {
	r.tracef("collect %s", m.Name)
	for _, f := range m.Files {
		for _, imp := range f.Imports {
			r.collectImport(f, imp)
		}
		for _, n := range f.Body {
			r.collect(m.Table, n)
		}
	}
	for _, e := range m.Table.FindEntries(ast.KindUnknown) {
		for _, ref := range e.Refs {
			r.Diags.Report(r.Tree, diag.UndefinedExport, ref, "exported name %s is not defined in module %s", e.Name, m.Name)
		}
		m.Table.Remove(e)
	}
	r.exportOptions(m)
}

func (r *Resolver) collectImport(f *ast.File, imp *ast.Import) {
	if r.Loader == nil {
		r.Diags.Report(r.Tree, diag.UndefinedModule, imp, "module %s not found", imp.Module.Name)
		return
	}
	target, err := r.Loader.LoadModule(imp.Module.Name)
	switch {
	case err != nil:
		r.Diags.Report(r.Tree, diag.UndefinedModule, imp, "module %s: %v", imp.Module.Name, err)
		return
	case target == nil:
		r.Diags.Report(r.Tree, diag.UndefinedModule, imp, "module %s not found", imp.Module.Name)
		return
	}
	imp.Target = target
	if _, err := f.Table.Add(imp); err != nil {
		r.Diags.Report(r.Tree, diag.DuplicateDefinition, imp, "%v", err)
	}
}

func (r *Resolver) collect(tab *ast.Table, n ast.Node) {
	switch n := n.(type) {
	case *ast.FunctionDef:
		r.define(tab, n, n.Name)
	case *ast.StructDef:
		r.define(tab, n, n.Name)
	case *ast.EnumDef:
		if r.define(tab, n, n.Name) != nil {
			r.collectOptions(tab, n)
		}
	case *ast.Export:
		if e := exportTarget(tab, n.Name.Canonical); e != nil {
			e.Locality = ast.Exported
			e.AddReference(n)
			markExported(e)
			return
		}
		if _, err := tab.Add(n); err != nil {
			r.Diags.Report(r.Tree, diag.DuplicateDefinition, n, "%v", err)
		}
	case *ast.Assignment:
		target := n.Target
		if target.Name.IsDiscard() || target.Name.IsDotted() {
			return
		}
		if e := tab.FindLocal(target.Name.Canonical, ast.KindVariable); e != nil {
			return
		}
		e, err := tab.Add(target)
		ast.Assert(err == nil, "reference %s rejected: %v", target.Name.Name, err)
		r.foldExport(tab, e, target.Name.Canonical)
	}
}

// define registers a module-level definition and folds a pending export
// placeholder into it.
func (r *Resolver) define(tab *ast.Table, def ast.Node, name ast.Identifier) *ast.Entry {
	e, err := tab.Add(def)
	if err != nil {
		r.Diags.Report(r.Tree, diag.DuplicateDefinition, def, "%v", err)
		return nil
	}
	r.foldExport(tab, e, name.Canonical)
	if e.Locality == ast.Exported {
		markExported(e)
	}
	return e
}

func (r *Resolver) foldExport(tab *ast.Table, e *ast.Entry, canonical string) {
	if ph := tab.FindLocal(canonical, ast.KindUnknown); ph != nil {
		r.tracef("fold export %s into %s %s", canonical, e.Kind, e.Name)
		tab.Fold(ph, e)
		markExported(e)
	}
}

// exportTarget finds the entry an export directive names, templates
// included.
func exportTarget(tab *ast.Table, canonical string) *ast.Entry {
	for _, e := range tab.Entries() {
		switch e.Kind {
		case ast.KindFunction, ast.KindType, ast.KindVariable:
		default:
			continue
		}
		if e.Name == canonical || strings.HasPrefix(e.Name, canonical+"%") {
			return e
		}
	}
	return nil
}

func markExported(e *ast.Entry) {
	for _, d := range e.Defs {
		switch d := d.(type) {
		case *ast.FunctionDef:
			d.Locality = ast.Exported
		case *ast.StructDef:
			d.Locality = ast.Exported
		case *ast.EnumDef:
			d.Locality = ast.Exported
		case *ast.VariableDef:
			d.Locality = ast.Exported
		}
	}
}

// collectOptions numbers the options of an enum and registers them under
// their dotted names. Implicit values continue from the previous option.
func (r *Resolver) collectOptions(tab *ast.Table, ed *ast.EnumDef) {
	var next uint64
	overflow := false
	for _, o := range ed.Options {
		if o.Explicit {
			v, err := strconv.ParseUint(o.Raw, 0, 64)
			if err != nil {
				r.Diags.Report(r.Tree, diag.InvalidLiteral, o, "invalid value %s for %s", o.Raw, o.Name.Name)
			} else {
				next, overflow = v, false
			}
		} else if overflow {
			r.Diags.Report(r.Tree, diag.InvalidLiteral, o, "value of %s overflows 64 bits", o.Name.Name)
		}
		o.Value = next
		next++
		overflow = next == 0
		if _, err := tab.Add(o); err != nil {
			r.Diags.Report(r.Tree, diag.DuplicateDefinition, o, "%v", err)
		}
	}
}

// exportOptions makes the options of exported enums visible to importers.
func (r *Resolver) exportOptions(m *ast.Module) {
	for _, e := range m.Table.FindEntries(ast.KindType) {
		ed, ok := e.Def().(*ast.EnumDef)
		if !ok || e.Locality != ast.Exported {
			continue
		}
		for _, o := range ed.Options {
			if oe := m.Table.FindLocal(o.Name.Canonical, ast.KindField); oe != nil {
				oe.Locality = ast.Exported
			}
		}
	}
}
