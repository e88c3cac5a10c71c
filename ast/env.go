package ast

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/smasher164/zs/lexer"
	"golang.org/x/exp/slices"
)

type SymbolKind int

const (
	KindUnknown SymbolKind = iota
	KindVariable
	KindFunction
	KindType
	KindModule
	KindField
	KindParameter
)

func (k SymbolKind) String() string {
	switch k {
	case KindUnknown:
		return "unknown"
	case KindVariable:
		return "variable"
	case KindFunction:
		return "function"
	case KindType:
		return "type"
	case KindModule:
		return "module"
	case KindField:
		return "field"
	case KindParameter:
		return "parameter"
	}
	return fmt.Sprintf("SymbolKind(%d)", int(k))
}

type Locality int

const (
	Local Locality = iota
	Exported
	Imported
)

func (l Locality) String() string {
	switch l {
	case Local:
		return "local"
	case Exported:
		return "exported"
	case Imported:
		return "imported"
	}
	return fmt.Sprintf("Locality(%d)", int(l))
}

// Entry is the symbol for one (name, kind) pair of a scope. Functions and
// types may carry several definitions: an overload set.
type Entry struct {
	Name     string
	Kind     SymbolKind
	Locality Locality
	Defs     []Node
	Refs     []Node
	Scope    *Table
}

func (e *Entry) Def() Node {
	if e == nil || len(e.Defs) == 0 {
		return nil
	}
	return e.Defs[0]
}

func (e *Entry) HasDef() bool    { return e != nil && len(e.Defs) > 0 }
func (e *Entry) Overloaded() bool { return e != nil && len(e.Defs) > 1 }

func (e *Entry) AddReference(n Node) {
	e.Refs = append(e.Refs, n)
}

// Functions returns the function definitions of an overload set.
func (e *Entry) Functions() []*FunctionDef {
	if e == nil {
		return nil
	}
	var fns []*FunctionDef
	for _, d := range e.Defs {
		if fd, ok := d.(*FunctionDef); ok {
			fns = append(fns, fd)
		}
	}
	return fns
}

type symKey struct {
	name string
	kind SymbolKind
}

// Table is the symbol table of one lexical scope.
type Table struct {
	Parent  *Table
	entries map[symKey]*Entry
	order   []*Entry
}

func NewTable(parent *Table) *Table {
	return &Table{
		Parent:  parent,
		entries: make(map[symKey]*Entry),
	}
}

func (t *Table) AddScope() *Table {
	return NewTable(t)
}

// DuplicateError reports a second definition of a symbol in one scope.
type DuplicateError struct {
	Entry     *Entry
	Existing  Node
	Duplicate Node
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s %q is already defined in this scope", e.Entry.Kind, e.Entry.Name)
}

// symbolOf derives the key, kind and locality a node is registered under.
// def is nil when the node is a reference.
func symbolOf(n Node) (key string, kind SymbolKind, loc Locality, def Node) {
	switch n := n.(type) {
	case *FunctionDef:
		return n.Name.Key(), KindFunction, n.Locality, n
	case *StructDef:
		return n.Name.Key(), KindType, n.Locality, n
	case *EnumDef:
		return n.Name.Key(), KindType, n.Locality, n
	case *ExternalType:
		return n.Name.Key(), KindType, Imported, n
	case *TemplateInstance:
		loc := Local
		if n.Template != nil {
			loc = n.Template.Locality
		}
		return n.Name.Key(), KindType, loc, n
	case *IntrinsicType:
		return n.Name.Key(), KindType, Local, n
	case *EnumOption:
		return n.Name.Canonical, KindField, Local, n
	case *Field:
		return n.Name.Canonical, KindField, Local, n
	case *VariableDef:
		return n.Name.Canonical, KindVariable, n.Locality, n
	case *Parameter:
		return n.Name.Canonical, KindParameter, Local, n
	case *Module:
		return n.Name.Canonical, KindModule, n.Locality, n
	case *Import:
		Assert(n.Target != nil, "import %s registered before it was bound", n.Module.Name)
		return n.Module.Canonical, KindModule, Imported, n.Target
	case *Export:
		return n.Name.Canonical, KindUnknown, Exported, nil
	case *VariableRef:
		return n.Name.Canonical, KindVariable, Local, nil
	case *FunctionRef:
		return n.Name.Key(), KindFunction, Local, nil
	case *TypeRef:
		return n.Name.Key(), KindType, Local, nil
	}
	panic(Fault{Msg: fmt.Sprintf("%T cannot be registered in a symbol table", n)})
}

// Add registers n as a definition or a reference in this scope. A second
// definition of the same symbol is rejected with a *DuplicateError; for
// functions only an identical parameter signature is a duplicate.
func (t *Table) Add(n Node) (*Entry, error) {
	key, kind, loc, def := symbolOf(n)
	e := t.entries[symKey{key, kind}]
	if e == nil {
		e = &Entry{Name: key, Kind: kind, Locality: loc, Scope: t}
		t.entries[symKey{key, kind}] = e
		t.order = append(t.order, e)
	}
	if def == nil {
		if _, ok := n.(*Import); !ok {
			e.AddReference(n)
			return e, nil
		}
	}
	if existing := duplicateOf(e, def); existing != nil {
		return e, &DuplicateError{Entry: e, Existing: existing, Duplicate: def}
	}
	e.Defs = append(e.Defs, def)
	if _, ok := n.(*Import); ok {
		e.AddReference(n)
	}
	if loc > e.Locality {
		e.Locality = loc
	}
	return e, nil
}

func duplicateOf(e *Entry, def Node) Node {
	if len(e.Defs) == 0 {
		return nil
	}
	if e.Kind == KindModule {
		// importing a module twice binds the same module
		if e.Defs[0] == def {
			return nil
		}
		return e.Defs[0]
	}
	fd, ok := def.(*FunctionDef)
	if !ok {
		return e.Defs[0]
	}
	sig := DeclaredSignature(fd.Type)
	for _, other := range e.Functions() {
		if slices.Equal(DeclaredSignature(other.Type), sig) {
			return other
		}
	}
	return nil
}

// DeclaredSignature lists parameter types as written.
func DeclaredSignature(ft *FunctionType) []string {
	if ft == nil {
		return nil
	}
	sig := make([]string, len(ft.Params))
	for i, p := range ft.Params {
		sig[i] = TypeRefString(p.Type)
	}
	return sig
}

// TypeRefString renders a type reference in canonical form.
func TypeRefString(tr *TypeRef) string {
	if tr == nil {
		return "Void"
	}
	var sb strings.Builder
	sb.WriteString(tr.Name.Canonical)
	if len(tr.Args) > 0 {
		sb.WriteByte('<')
		for i, a := range tr.Args {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(TypeRefString(a))
		}
		sb.WriteByte('>')
	}
	if tr.Optional {
		sb.WriteByte('?')
	}
	if tr.ErrorUnion {
		sb.WriteByte('!')
	}
	return sb.String()
}

func (t *Table) FindLocal(name string, kind SymbolKind) *Entry {
	return t.entries[symKey{name, kind}]
}

// Find searches this scope and then every enclosing scope.
func (t *Table) Find(name string, kind SymbolKind) *Entry {
	for p := t; p != nil; p = p.Parent {
		if e := p.FindLocal(name, kind); e != nil {
			return e
		}
	}
	return nil
}

// FindEntries lists the entries of one kind in this scope only.
func (t *Table) FindEntries(kind SymbolKind) []*Entry {
	var es []*Entry
	for _, e := range t.order {
		if e.Kind == kind {
			es = append(es, e)
		}
	}
	return es
}

func (t *Table) Entries() []*Entry {
	return slices.Clone(t.order)
}

// visible finds name among the symbols a module shows its importers.
func (t *Table) visible(name string, kind SymbolKind) *Entry {
	e := t.FindLocal(name, kind)
	if e == nil || e.Locality == Local {
		return nil
	}
	return e
}

// Lookup is Find extended to imported modules: first module-qualified names
// ("Sys.Io.Print"), then unqualified names exported by any module imported
// by an enclosing scope.
func (t *Table) Lookup(name string, kind SymbolKind) *Entry {
	if e := t.Find(name, kind); e != nil {
		return e
	}
	for i := strings.LastIndexByte(name, '.'); i > 0; i = strings.LastIndexByte(name[:i], '.') {
		me := t.Find(name[:i], KindModule)
		if m, ok := me.Def().(*Module); ok && m.Table != nil {
			if e := m.Table.visible(name[i+1:], kind); e != nil {
				return e
			}
		}
	}
	for s := t; s != nil; s = s.Parent {
		for _, me := range s.FindEntries(KindModule) {
			if m, ok := me.Def().(*Module); ok && m.Table != nil {
				if e := m.Table.visible(name, kind); e != nil {
					return e
				}
			}
		}
	}
	return nil
}

// PromoteToDefinition turns the reference-only entry of from into a
// definition. The reference bookkeeping collected so far is replaced by from.
func (t *Table) PromoteToDefinition(def Node, from *VariableRef) *Entry {
	e := t.FindLocal(from.Name.Canonical, KindVariable)
	Assert(e != nil, "no entry to promote for %s", from.Name.Name)
	Assert(!e.HasDef(), "%s is already defined", from.Name.Name)
	e.Defs = []Node{def}
	e.Refs = []Node{from}
	return e
}

// Fold merges an export placeholder into the entry of the real definition
// and discards the placeholder.
func (t *Table) Fold(placeholder, into *Entry) {
	Assert(placeholder.Kind == KindUnknown, "folding %s entry %s", placeholder.Kind, placeholder.Name)
	if placeholder.Locality > into.Locality {
		into.Locality = placeholder.Locality
	}
	into.Refs = append(into.Refs, placeholder.Refs...)
	t.Remove(placeholder)
}

func (t *Table) Remove(e *Entry) {
	delete(t.entries, symKey{e.Name, e.Kind})
	if i := slices.Index(t.order, e); i >= 0 {
		t.order = slices.Delete(t.order, i, i+1)
	}
}

func tableString(buf io.Writer, t *Table) {
	if t.Parent != nil {
		tableString(buf, t.Parent)
		fmt.Fprint(buf, "↑\n")
	}
	if len(t.order) == 0 {
		fmt.Fprintf(buf, "(empty)\n")
		return
	}
	for _, e := range t.order {
		fmt.Fprintf(buf, "%s:\t%s\t%s\tdefs=%d\trefs=%d\n", e.Name, e.Kind, e.Locality, len(e.Defs), len(e.Refs))
	}
}

func (t *Table) String() string {
	sb := new(strings.Builder)
	buf := tabwriter.NewWriter(sb, 0, 0, 1, ' ', 0)
	tableString(buf, t)
	buf.Flush()
	return sb.String()
}

// Universe is the terminal scope holding the intrinsic types.
func (t *Tree) Universe() *Table {
	if t.universe == nil {
		t.universe = NewTable(nil)
		t.builtins = make(map[Intrinsic]*IntrinsicType)
		for i := Void; i <= Str; i++ {
			it := New(t, lexer.Span{}, &IntrinsicType{Name: NewIdentifier(i.String()), Intrinsic: i})
			t.builtins[i] = it
			if _, err := t.universe.Add(it); err != nil {
				panic(Fault{Msg: err.Error()})
			}
		}
	}
	return t.universe
}

func (t *Tree) Intrinsic(i Intrinsic) *IntrinsicType {
	t.Universe()
	return t.builtins[i]
}

// IntrinsicByName maps a canonical type name onto an intrinsic.
func IntrinsicByName(canonical string) (Intrinsic, bool) {
	for i, name := range intrinsicNames {
		if name == canonical {
			return Intrinsic(i), true
		}
	}
	return 0, false
}
