package types_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/smasher164/zs/ast"
	"github.com/smasher164/zs/diag"
	"github.com/smasher164/zs/names"
	"github.com/smasher164/zs/parser"
	"github.com/smasher164/zs/types"
)

type build struct {
	tree  *ast.Tree
	diags *diag.List
	names *names.Resolver
	types *types.Resolver
}

func resolve(t *testing.T, src string, widen bool) (*ast.Module, *build) {
	t.Helper()
	tree := ast.NewTree()
	b := &build{tree: tree, diags: new(diag.List)}
	b.names = &names.Resolver{Tree: tree, Diags: b.diags}
	b.types = &types.Resolver{Tree: tree, Diags: b.diags, Names: b.names, Widen: widen}
	pb := parser.Build{Tree: tree, Diags: b.diags}
	tab := ast.NewTable(tree.Universe())
	f, _ := pb.ParseSource("main.zs", src, tab)
	m := pb.NewModule("Main", tab, f)
	b.names.Resolve(m)
	b.types.Resolve(m)
	return m, b
}

func noErrors(t *testing.T, diags *diag.List) {
	t.Helper()
	for _, d := range diags.Items() {
		t.Errorf("unexpected diagnostic: %v", d)
	}
}

// typeOf returns the type key of the module variable name.
func typeOf(m *ast.Module, name string) string {
	e := m.Table.FindLocal(name, ast.KindVariable)
	def, ok := e.Def().(*ast.VariableDef)
	if !ok {
		return "<undefined>"
	}
	if k := types.TypeKey(def.Type); k != "" {
		return k
	}
	return "<untyped>"
}

func TestLiteralType(t *testing.T) {
	tests := []struct {
		raw      string
		negative bool
		want     ast.Intrinsic
		err      bool
	}{
		{raw: "0", want: ast.U8},
		{raw: "255", want: ast.U8},
		{raw: "256", want: ast.U16},
		{raw: "65536", want: ast.U32},
		{raw: "4294967296", want: ast.U64},
		{raw: "18446744073709551615", want: ast.U64},
		{raw: "18446744073709551616", err: true},
		{raw: "0x10", want: ast.U8},
		{raw: "0x1e", want: ast.U8},
		{raw: "1", negative: true, want: ast.I8},
		{raw: "128", negative: true, want: ast.I8},
		{raw: "129", negative: true, want: ast.I16},
		{raw: "9223372036854775808", negative: true, want: ast.I64},
		{raw: "9223372036854775809", negative: true, err: true},
		{raw: "1.5", want: ast.F64},
		{raw: "2e3", want: ast.F64},
	}
	for _, tt := range tests {
		got, err := types.LiteralType(tt.raw, tt.negative)
		if tt.err {
			if err == nil {
				t.Errorf("LiteralType(%s, %v) = %v, want error", tt.raw, tt.negative, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("LiteralType(%s, %v) = %v, %v, want %v", tt.raw, tt.negative, got, err, tt.want)
		}
	}
}

func TestOperandTypes(t *testing.T) {
	m, b := resolve(t, `MyEnum
    Zero
    One
Add: (a: U16, b: U16): U16
    ret a + b
a = 300
b = -1
c = "s"
d = 1.5
e = 1 < 2
f = true
g = MyEnum.One
h = Add(a, 2)
i = a
j = not f
`, true)
	noErrors(t, b.diags)
	want := map[string]string{
		"a": "U16",
		"b": "I8",
		"c": "Str",
		"d": "F64",
		"e": "Bool",
		"f": "Bool",
		"g": "Myenum",
		"h": "U16",
		"i": "U16",
		"j": "Bool",
	}
	for name, w := range want {
		if got := typeOf(m, name); got != w {
			t.Errorf("type of %s = %s, want %s", name, got, w)
		}
	}
}

func TestMismatchPolicy(t *testing.T) {
	src := `a: U16 = 1
b: U8 = 2
s: I32 = 5
n: I8 = 1
wide = a + b
lit = b + 300
signed = s + 1
mixed = a + n
text = a + "x"
`
	tests := []struct {
		widen      bool
		mismatches int
		want       map[string]string
	}{
		{true, 2, map[string]string{"wide": "U16", "lit": "U16", "signed": "I32", "mixed": "<untyped>", "text": "<untyped>"}},
		{false, 5, map[string]string{"wide": "<untyped>", "lit": "<untyped>", "signed": "<untyped>"}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("widen=%v", tt.widen), func(t *testing.T) {
			m, b := resolve(t, src, tt.widen)
			if n := b.diags.Count(diag.TypeMismatch); n != tt.mismatches {
				t.Errorf("got %d TypeMismatch diagnostics, want %d: %v", n, tt.mismatches, b.diags.Items())
			}
			for name, w := range tt.want {
				if got := typeOf(m, name); got != w {
					t.Errorf("type of %s = %s, want %s", name, got, w)
				}
			}
		})
	}
}

func TestEnumBase(t *testing.T) {
	m, b := resolve(t, `Small
    A
    B
Big
    A
    B = 300
Text: Str
    A
Tiny: U8
    A = 256
`, true)
	if n := b.diags.Count(diag.InvalidEnumBase); n != 1 {
		t.Errorf("got %d InvalidEnumBase diagnostics, want 1", n)
	}
	if n := b.diags.Count(diag.InvalidLiteral); n != 1 {
		t.Errorf("got %d InvalidLiteral diagnostics, want 1", n)
	}
	body := m.Files[0].Body
	for i, want := range []string{"U8", "U16"} {
		ed := body[i].(*ast.EnumDef)
		if got := types.TypeKey(ed.Base); got != want {
			t.Errorf("base of %s = %s, want %s", ed.Name.Name, got, want)
		}
	}
}

func TestLiteralOutOfRange(t *testing.T) {
	_, b := resolve(t, `big = 18446744073709551616
`, true)
	if n := b.diags.Count(diag.InvalidLiteral); n != 1 {
		t.Errorf("got %d InvalidLiteral diagnostics, want 1", n)
	}
}

func TestStructInstance(t *testing.T) {
	m, b := resolve(t, `Box<T>
    V: T
    Next: Box<T>?
p: Box<U8>
q: Box<U8>
r: Box<Str>
v = p.V
w = r.Next.V
`, true)
	noErrors(t, b.diags)
	body := m.Files[0].Body
	annot := func(i int) *ast.TypeRef { return body[i].(*ast.Assignment).Target.Annotation }
	p, q, r := annot(1), annot(2), annot(3)
	if p.Def == nil || p.Def != q.Def {
		t.Fatalf("Box<U8> instantiated twice:\n%s", ast.Bindings(m))
	}
	if p.Def == r.Def {
		t.Errorf("Box<U8> and Box<Str> share an instance")
	}
	inst, ok := p.Def.(*ast.TemplateInstance)
	if !ok || inst.Name.Key() != "Box;U8" {
		t.Fatalf("p: Box<U8> bound to %T %v", p.Def, p.Def)
	}
	if next := inst.Fields[1].Type; next.Def != ast.TypeDef(inst) || !next.Optional {
		t.Errorf("Box<U8>.Next is not the instance itself")
	}
	if len(m.Instances) != 2 {
		t.Errorf("got %d instances, want 2", len(m.Instances))
	}
	if got := typeOf(m, "v"); got != "U8" {
		t.Errorf("type of p.V = %s", got)
	}
	if got := typeOf(m, "w"); got != "Str" {
		t.Errorf("type of r.Next.V = %s", got)
	}
	if e := m.Table.FindLocal("Box;U8", ast.KindType); e == nil || e.Def() != ast.Node(inst) {
		t.Errorf("instance not registered:\n%s", m.Table)
	}
}

func TestFunctionInstance(t *testing.T) {
	m, b := resolve(t, `Id<T>: (x: T): T
    y: T = x
    ret y
a = Id<U8>(3)
c = Id<U8>(4)
d = Id<Str>("s")
`, true)
	noErrors(t, b.diags)
	call := func(i int) *ast.FunctionRef {
		return m.Files[0].Body[i].(*ast.Assignment).Value.(*ast.FunctionRef)
	}
	a, c, d := call(1), call(2), call(3)
	if a.Def == nil || a.Def != c.Def || a.Def == d.Def {
		t.Fatalf("instances:\n%s", ast.Bindings(m))
	}
	inst := a.Def
	if inst.Template == nil || inst.IsTemplate() || inst.Name.Key() != "Id;U8" {
		t.Errorf("unexpected instance:\n%s", ast.Dump(inst))
	}
	if got := typeOf(m, "a"); got != "U8" {
		t.Errorf("type of a = %s", got)
	}
	if got := typeOf(m, "d"); got != "Str" {
		t.Errorf("type of d = %s", got)
	}
	decl := inst.Body.Stmts[0].(*ast.Assignment).Target
	if decl.Def == nil || types.TypeKey(decl.Type) != "U8" {
		t.Errorf("instance body not resolved:\n%s", ast.Bindings(inst))
	}
	ret := inst.Body.Stmts[1].(*ast.Return).Value.(*ast.VariableRef)
	if ret.Def != decl.Def {
		t.Errorf("ret y bound to %v", ret.Def)
	}
	if n := len(b.types.TakeInstances()); n != 2 {
		t.Errorf("got %d new instances, want 2", n)
	}
}

// snapshot renders every type slot under n.
func snapshot(n ast.Node) string {
	var sb strings.Builder
	ast.Inspect(n, func(n ast.Node) bool {
		switch n := n.(type) {
		case ast.Expr:
			fmt.Fprintf(&sb, "#%d %s\n", n.ID(), types.TypeKey(n.TypeOf()))
		case *ast.TypeRef:
			if n.IsResolved() {
				fmt.Fprintf(&sb, "#%d -> %T #%d\n", n.ID(), n.Def, n.Def.ID())
			}
		}
		return true
	})
	return sb.String()
}

func TestIdempotent(t *testing.T) {
	m, b := resolve(t, `Box<T>
    V: T
E
    A
Fn: (a: U8): U8
    ret a * 2
Id<T>: (x: T): T
    ret x
p: Box<U8>
x = Fn(1) + 3
y = Id<U8>(x)
z = E.A
w = p.V
`, true)
	noErrors(t, b.diags)
	before, nodes := snapshot(m), b.tree.Len()
	b.types.Resolve(m)
	if after := snapshot(m); after != before {
		t.Errorf("second run changed types:\nbefore:\n%s\nafter:\n%s", before, after)
	}
	if b.tree.Len() != nodes {
		t.Errorf("second run created %d nodes", b.tree.Len()-nodes)
	}
	if b.diags.Len() != 0 {
		t.Errorf("second run reported %v", b.diags.Items())
	}
}
