package ast

import (
	"fmt"

	"github.com/smasher164/zs/lexer"
)

// Node is implemented only by the node kinds of this package.
type Node interface {
	ID() NodeID
	Parent() NodeID
	Span() lexer.Span
	base() *header
}

var (
	_ Node = (*Module)(nil)
	_ Node = (*File)(nil)
	_ Node = (*Import)(nil)
	_ Node = (*Export)(nil)
	_ Node = (*FunctionDef)(nil)
	_ Node = (*FunctionType)(nil)
	_ Node = (*Parameter)(nil)
	_ Node = (*StructDef)(nil)
	_ Node = (*EnumDef)(nil)
	_ Node = (*EnumOption)(nil)
	_ Node = (*Field)(nil)
	_ Node = (*IntrinsicType)(nil)
	_ Node = (*ExternalType)(nil)
	_ Node = (*TemplateInstance)(nil)
	_ Node = (*TypeRef)(nil)
	_ Node = (*VariableDef)(nil)
	_ Node = (*VariableRef)(nil)
	_ Node = (*Literal)(nil)
	_ Node = (*Expression)(nil)
	_ Node = (*FunctionRef)(nil)
	_ Node = (*CodeBlock)(nil)
	_ Node = (*Assignment)(nil)
	_ Node = (*ExprStmt)(nil)
	_ Node = (*Return)(nil)
	_ Node = (*If)(nil)

	_ TypeDef = (*IntrinsicType)(nil)
	_ TypeDef = (*StructDef)(nil)
	_ TypeDef = (*EnumDef)(nil)
	_ TypeDef = (*ExternalType)(nil)
	_ TypeDef = (*TemplateInstance)(nil)

	_ Expr = (*Literal)(nil)
	_ Expr = (*VariableRef)(nil)
	_ Expr = (*Expression)(nil)
	_ Expr = (*FunctionRef)(nil)
)

// Module is a compilation unit: the files of one source directory, or one
// bridged foreign module.
type Module struct {
	header
	Name      Identifier
	Locality  Locality
	Files     []*File
	Instances []Node // definitions materialized from templates
	Table     *Table
}

type File struct {
	header
	Name    string
	Imports []*Import
	Body    []Node
	Table   *Table
}

type Import struct {
	header
	Module Identifier
	Target *Module
}

// Export marks a module-level symbol as visible to importers.
type Export struct {
	header
	Name Identifier
}

type FunctionKind int

const (
	BodyFunction FunctionKind = iota
	IntrinsicFunction
	ExternalFunction
)

func (k FunctionKind) String() string {
	switch k {
	case BodyFunction:
		return "body"
	case IntrinsicFunction:
		return "intrinsic"
	case ExternalFunction:
		return "external"
	}
	return fmt.Sprintf("FunctionKind(%d)", int(k))
}

type FunctionDef struct {
	header
	Name       Identifier
	Kind       FunctionKind
	Locality   Locality
	TypeParams []Identifier
	Type       *FunctionType
	Body       *CodeBlock
	Table      *Table // parameters

	// Set on instances only.
	Template     *FunctionDef
	TemplateArgs []*TypeRef
}

func (fd *FunctionDef) IsTemplate() bool { return len(fd.TypeParams) > 0 }

type FunctionType struct {
	header
	Params []*Parameter
	Return *TypeRef // nil means Void
}

type Parameter struct {
	header
	Name Identifier
	Type *TypeRef
}

// TypeDef is implemented by the type definition variants.
type TypeDef interface {
	Node
	TypeName() Identifier
}

type Intrinsic int

const (
	Void Intrinsic = iota
	Bool
	U8
	U16
	U32
	U64
	I8
	I16
	I32
	I64
	F32
	F64
	Str
)

var intrinsicNames = [...]string{
	Void: "Void",
	Bool: "Bool",
	U8:   "U8",
	U16:  "U16",
	U32:  "U32",
	U64:  "U64",
	I8:   "I8",
	I16:  "I16",
	I32:  "I32",
	I64:  "I64",
	F32:  "F32",
	F64:  "F64",
	Str:  "Str",
}

func (i Intrinsic) String() string {
	if i >= 0 && int(i) < len(intrinsicNames) {
		return intrinsicNames[i]
	}
	return fmt.Sprintf("Intrinsic(%d)", int(i))
}

func (i Intrinsic) IsInteger() bool { return U8 <= i && i <= I64 }
func (i Intrinsic) IsSigned() bool  { return I8 <= i && i <= I64 || i == F32 || i == F64 }
func (i Intrinsic) IsFloat() bool   { return i == F32 || i == F64 }

// Bits is the storage width of numeric intrinsics, 0 otherwise.
func (i Intrinsic) Bits() int {
	switch i {
	case U8, I8:
		return 8
	case U16, I16:
		return 16
	case U32, I32, F32:
		return 32
	case U64, I64, F64:
		return 64
	}
	return 0
}

// IntegerOf returns the integer intrinsic with the given width and sign.
func IntegerOf(bits int, signed bool) Intrinsic {
	var i Intrinsic
	switch bits {
	case 8:
		i = U8
	case 16:
		i = U16
	case 32:
		i = U32
	default:
		i = U64
	}
	if signed {
		i += I8 - U8
	}
	return i
}

type IntrinsicType struct {
	header
	Name      Identifier
	Intrinsic Intrinsic
}

func (it *IntrinsicType) TypeName() Identifier { return it.Name }

type StructDef struct {
	header
	Name       Identifier
	Locality   Locality
	TypeParams []Identifier
	Base       *TypeRef
	Fields     []*Field
}

func (sd *StructDef) TypeName() Identifier { return sd.Name }
func (sd *StructDef) IsTemplate() bool     { return len(sd.TypeParams) > 0 }

type EnumDef struct {
	header
	Name     Identifier
	Locality Locality
	Base     *TypeRef
	Options  []*EnumOption
}

func (ed *EnumDef) TypeName() Identifier { return ed.Name }

// EnumOption is keyed by its dotted name, e.g. "Myenum.Zero".
type EnumOption struct {
	header
	Name     Identifier
	Explicit bool
	Raw      string // explicit value as written
	Value    uint64
}

type Field struct {
	header
	Name Identifier
	Type *TypeRef
}

// ExternalType is a type provided by a bridged module.
type ExternalType struct {
	header
	Name   Identifier
	Fields []*Field
}

func (et *ExternalType) TypeName() Identifier { return et.Name }

// TemplateInstance is a struct materialized from a template and concrete
// arguments. Its Name carries the argument keys.
type TemplateInstance struct {
	header
	Name     Identifier
	Template *StructDef
	Args     []*TypeRef
	Base     *TypeRef
	Fields   []*Field
}

func (ti *TemplateInstance) TypeName() Identifier { return ti.Name }

type TypeRef struct {
	header
	Name       Identifier
	Args       []*TypeRef
	Optional   bool
	ErrorUnion bool
	Def        TypeDef
	Symbol     *Entry
}

func (tr *TypeRef) IsResolved() bool { return tr != nil && !IsNil(tr.Def) }

// Expr is implemented by the nodes that produce a value.
type Expr interface {
	Node
	TypeOf() *TypeRef
}

type VariableDef struct {
	header
	Name     Identifier
	Locality Locality
	Type     *TypeRef
}

// VariableRef is a use of a variable, parameter, enum option or member. The
// reference that declares a variable owns the synthesized definition in Decl.
type VariableRef struct {
	header
	Name       Identifier
	Annotation *TypeRef
	Decl       *VariableDef
	Type       *TypeRef

	Def     Node // *VariableDef, *Parameter or *EnumOption
	Symbol  *Entry
	Members []string // canonical member path after the bound base name
	Member  *Field
}

func (vr *VariableRef) TypeOf() *TypeRef { return vr.Type }

type LiteralKind int

const (
	NumberLiteral LiteralKind = iota
	StringLiteral
	BoolLiteral
)

type Literal struct {
	header
	Kind     LiteralKind
	Raw      string
	Negative bool
	Type     *TypeRef
}

func (l *Literal) TypeOf() *TypeRef { return l.Type }

// Expression is a binary operation, or a unary one when Left is nil.
type Expression struct {
	header
	Op    Operator
	Left  Expr
	Right Expr
	Type  *TypeRef
}

func (e *Expression) TypeOf() *TypeRef { return e.Type }
func (e *Expression) IsUnary() bool    { return IsNil(e.Left) }

type FunctionRef struct {
	header
	Name     Identifier
	TypeArgs []*TypeRef
	Args     []Expr
	Type     *TypeRef

	Def    *FunctionDef
	Symbol *Entry
	// MustUse is cleared when the result is explicitly discarded.
	MustUse bool
}

func (fr *FunctionRef) TypeOf() *TypeRef { return fr.Type }

type CodeBlock struct {
	header
	Stmts []Node
	Table *Table
}

type Assignment struct {
	header
	Target *VariableRef
	Value  Expr // nil for a bare declaration
}

type ExprStmt struct {
	header
	X Expr
}

type Return struct {
	header
	Value Expr
}

type If struct {
	header
	Cond Expr
	Then *CodeBlock
	Else *CodeBlock
}

// Children returns the child slots of n in structural order.
func Children(n Node) []Node {
	var out []Node
	add := func(c Node) {
		if !IsNil(c) {
			out = append(out, c)
		}
	}
	switch n := n.(type) {
	case *Module:
		for _, f := range n.Files {
			add(f)
		}
		for _, x := range n.Instances {
			add(x)
		}
	case *File:
		for _, imp := range n.Imports {
			add(imp)
		}
		for _, x := range n.Body {
			add(x)
		}
	case *Import, *Export, *EnumOption, *IntrinsicType:
	case *FunctionDef:
		for _, a := range n.TemplateArgs {
			add(a)
		}
		add(n.Type)
		add(n.Body)
	case *FunctionType:
		for _, p := range n.Params {
			add(p)
		}
		add(n.Return)
	case *Parameter:
		add(n.Type)
	case *StructDef:
		add(n.Base)
		for _, f := range n.Fields {
			add(f)
		}
	case *EnumDef:
		add(n.Base)
		for _, o := range n.Options {
			add(o)
		}
	case *Field:
		add(n.Type)
	case *ExternalType:
		for _, f := range n.Fields {
			add(f)
		}
	case *TemplateInstance:
		for _, a := range n.Args {
			add(a)
		}
		add(n.Base)
		for _, f := range n.Fields {
			add(f)
		}
	case *TypeRef:
		for _, a := range n.Args {
			add(a)
		}
	case *VariableDef:
		add(n.Type)
	case *VariableRef:
		add(n.Annotation)
		add(n.Decl)
		add(n.Type)
	case *Literal:
		add(n.Type)
	case *Expression:
		add(n.Left)
		add(n.Right)
		add(n.Type)
	case *FunctionRef:
		for _, a := range n.TypeArgs {
			add(a)
		}
		for _, a := range n.Args {
			add(a)
		}
		add(n.Type)
	case *CodeBlock:
		for _, s := range n.Stmts {
			add(s)
		}
	case *Assignment:
		add(n.Target)
		add(n.Value)
	case *ExprStmt:
		add(n.X)
	case *Return:
		add(n.Value)
	case *If:
		add(n.Cond)
		add(n.Then)
		add(n.Else)
	default:
		panic(Fault{Msg: fmt.Sprintf("unhandled node %T", n)})
	}
	return out
}

// ScopeOf returns the table a node opens, if any.
func ScopeOf(n Node) *Table {
	switch n := n.(type) {
	case *Module:
		return n.Table
	case *File:
		return n.Table
	case *FunctionDef:
		return n.Table
	case *CodeBlock:
		return n.Table
	}
	return nil
}
