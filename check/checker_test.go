package check_test

import (
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/smasher164/zs/ast"
	"github.com/smasher164/zs/check"
	"github.com/smasher164/zs/config"
	"github.com/smasher164/zs/diag"
	"github.com/smasher164/zs/types"
)

const sysIo = `module: Sys.Io
types:
  - name: Handle
    fields:
      - {name: Fd, type: U32}
functions:
  - name: Print
    params:
      - {name: S, type: Str}
  - name: Open
    params:
      - {name: Path, type: Str}
    return: Handle
`

func run(t *testing.T, fsys, ext fstest.MapFS, opts *config.Options) *check.Checker {
	t.Helper()
	if opts == nil {
		opts = config.Default()
	}
	var extFS fs.FS
	if ext != nil {
		extFS = ext
	}
	c, err := check.Run(fsys, extFS, "Main", opts, nil)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func runMain(t *testing.T, src string, opts *config.Options) (*check.Checker, *ast.Module) {
	t.Helper()
	c := run(t, fstest.MapFS{"Main/main.zs": &fstest.MapFile{Data: []byte(src)}}, nil, opts)
	mods := c.Modules()
	return c, mods[len(mods)-1]
}

func noErrors(t *testing.T, diags *diag.List) {
	t.Helper()
	for _, d := range diags.Items() {
		t.Errorf("unexpected diagnostic: %v", d)
	}
}

func value(m *ast.Module, i int) ast.Expr {
	return m.Files[0].Body[i].(*ast.Assignment).Value
}

func TestOverloadResolution(t *testing.T) {
	c, m := runMain(t, `Fn: (a: U8): U8
    ret a
Fn: (s: Str): U8
    ret 2
x = Fn(42)
y = Fn("x")
z = Fn(true)
`, nil)
	u8, str := m.Files[0].Body[0], m.Files[0].Body[1]
	if call := value(m, 2).(*ast.FunctionRef); call.Def != u8 {
		t.Errorf("Fn(42) bound to %v", call.Def)
	}
	if call := value(m, 3).(*ast.FunctionRef); call.Def != str {
		t.Errorf("Fn(\"x\") bound to %v", call.Def)
	}
	if call := value(m, 4).(*ast.FunctionRef); call.Def != nil {
		t.Errorf("Fn(true) bound to %v", call.Def)
	}
	if n := c.Diags.Count(diag.OverloadNotFound); n != 1 {
		t.Errorf("got %d OverloadNotFound diagnostics, want 1", n)
	}
	if n := c.Diags.Count(diag.UndefinedFunction); n != 0 {
		t.Errorf("got %d UndefinedFunction diagnostics, want 0", n)
	}
}

func TestReturnValueNotAssigned(t *testing.T) {
	fn := `Fn: (p: U8): U8
    ret p
P: (s: Str)
    t = s
P("a")
`
	tests := []struct {
		name    string
		stmt    string
		mustUse bool
		want    int
	}{
		{"dropped", "Fn(42)\n", true, 1},
		{"discarded", "_ = Fn(42)\n", true, 0},
		{"assigned", "v = Fn(42)\n", true, 0},
		{"disabled", "Fn(42)\n", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := config.Default()
			opts.MustUseResults = &tt.mustUse
			c, _ := runMain(t, fn+tt.stmt, opts)
			if n := c.Diags.Count(diag.ReturnValueNotAssigned); n != tt.want {
				t.Errorf("got %d ReturnValueNotAssigned diagnostics, want %d", n, tt.want)
			}
			if c.Diags.Len() != tt.want {
				t.Errorf("unexpected diagnostics: %v", c.Diags.Items())
			}
		})
	}
}

// resolved fails for every reference under n that lacks a binding.
func resolved(t *testing.T, n ast.Node) {
	t.Helper()
	ast.Walk(n, func(n ast.Node, rec func(ast.Node) bool) bool {
		switch n := n.(type) {
		case *ast.FunctionDef:
			if n.IsTemplate() {
				return false
			}
		case *ast.StructDef:
			if n.IsTemplate() {
				return false
			}
		case *ast.VariableRef:
			if !n.Name.IsDiscard() && (n.Def == nil || !n.Type.IsResolved()) {
				t.Errorf("%s at %v is half resolved", n.Name.Name, n.Span().Start)
			}
		case *ast.FunctionRef:
			if n.Def == nil || !n.Type.IsResolved() {
				t.Errorf("call of %s at %v is half resolved", n.Name.Name, n.Span().Start)
			}
		case *ast.Expression:
			if !n.Type.IsResolved() {
				t.Errorf("expression at %v is untyped", n.Span().Start)
			}
		case *ast.TypeRef:
			if !n.IsResolved() {
				t.Errorf("type %s at %v is unresolved", ast.TypeRefString(n), n.Span().Start)
			}
		}
		return rec(n)
	})
}

func TestCleanProgram(t *testing.T) {
	c, m := runMain(t, `module Main
Color: U8
    Red
    Green = 4
Point<T>
    X: T
    Y: T
Scale: (p: Point<U16>, k: U16): U16
    ret p.X * k + p.Y
Max<T>: (a: T, b: T): T
    if a > b
        ret a
    ret b
origin: Point<U16>
c = Color.Green
n = Scale(origin, 3)
m = Max<U16>(n, 7)
if m == 7 and c == Color.Red
    m = 0
`, nil)
	noErrors(t, c.Diags)
	resolved(t, m)
	if len(m.Instances) != 2 {
		t.Errorf("got %d instances, want 2", len(m.Instances))
	}
}

func TestUndefined(t *testing.T) {
	tests := []struct {
		src  string
		code diag.Code
	}{
		{"x = y + 1\n", diag.UndefinedVariable},
		{"x = F(1)\n", diag.UndefinedFunction},
		{"x = Id<U8>(1)\n", diag.UndefinedFunction},
		{"x = Lib.Id<U8>(1)\n", diag.UndefinedFunction},
		{"x: Missing\n", diag.UndefinedType},
		{"p: Box<U8>\n", diag.UndefinedType},
		{"E\n    A\nx = E.B\n", diag.UndefinedEnumOption},
		{"Box<T>\n    V: T\np: Box<U8>\nx = p.W\n", diag.UndefinedMember},
		{"import Nowhere\n", diag.UndefinedModule},
	}
	for _, tt := range tests {
		c, _ := runMain(t, tt.src, nil)
		if n := c.Diags.Count(tt.code); n != 1 {
			t.Errorf("%q: got %d %v diagnostics, want 1: %v", tt.src, n, tt.code, c.Diags.Items())
		}
	}
}

func TestBridgedModule(t *testing.T) {
	src := fstest.MapFS{"Main/main.zs": &fstest.MapFile{Data: []byte(`import Sys.Io
Print("hi")
h = Open("f")
fd = h.Fd
Sys.Io.Print("x")
_ = Open("g")
`)}}
	ext := fstest.MapFS{"Sys/Io.yaml": &fstest.MapFile{Data: []byte(sysIo)}}
	c := run(t, src, ext, nil)
	noErrors(t, c.Diags)
	m := c.Modules()[0]
	resolved(t, m)
	body := m.Files[0].Body
	call := body[0].(*ast.ExprStmt).X.(*ast.FunctionRef)
	if call.Def.Kind != ast.ExternalFunction || call.Def.Locality != ast.Imported {
		t.Errorf("Print bound to %s %s function", call.Def.Locality, call.Def.Kind)
	}
	h := m.Table.FindLocal("h", ast.KindVariable).Def().(*ast.VariableDef)
	if _, ok := h.Type.Def.(*ast.ExternalType); !ok {
		t.Errorf("h has type %T", h.Type.Def)
	}
	fd := m.Table.FindLocal("fd", ast.KindVariable).Def().(*ast.VariableDef)
	if got := types.TypeKey(fd.Type); got != "U32" {
		t.Errorf("h.Fd has type %s", got)
	}
}

func TestNamespaces(t *testing.T) {
	src := fstest.MapFS{"Main/main.zs": &fstest.MapFile{Data: []byte("x = 1\n")}}
	ext := fstest.MapFS{
		"Sys/Io.yaml":        &fstest.MapFile{Data: []byte(sysIo)},
		"Sys/Net/Sock.yaml":  &fstest.MapFile{Data: []byte("functions:\n  - name: Dial\n    return: U32\n")},
		"Other/Thing.yaml":   &fstest.MapFile{Data: []byte("module: Other.Thing\n")},
		"Sys/Broken.notyaml": &fstest.MapFile{Data: []byte("{")},
	}
	opts := config.Default()
	opts.Namespaces = []string{"Sys"}
	c := run(t, src, ext, opts)
	noErrors(t, c.Diags)
	for _, name := range []string{"Sys.Io", "Sys.Net.Sock"} {
		if m, err := c.LoadModule(name); err != nil || m == nil {
			t.Errorf("LoadModule(%s) = %v, %v", name, m, err)
		}
	}
}

func TestSourceImports(t *testing.T) {
	fsys := fstest.MapFS{
		"Lib/lib.zs": &fstest.MapFile{Data: []byte(`module Lib
export Box
Box<T>
    V: T
export Twice
Twice: (x: U8): U8
    ret x * 2
`)},
		"Main/main.zs": &fstest.MapFile{Data: []byte(`import Lib
p: Box<U8>
v = p.V
w = Twice(v)
`)},
	}
	c := run(t, fsys, nil, nil)
	noErrors(t, c.Diags)
	mods := c.Modules()
	if len(mods) != 2 || mods[0].Name.Name != "Lib" {
		t.Fatalf("modules checked in the wrong order")
	}
	lib, main := mods[0], mods[1]
	resolved(t, main)
	if len(lib.Instances) != 1 || len(main.Instances) != 0 {
		t.Errorf("instance owned by the wrong module: Lib has %d, Main has %d", len(lib.Instances), len(main.Instances))
	}
}

const libTemplates = `module Lib
export Box
Box<T>
    V: T
export Id
Id<T>: (x: T): T
    ret x
`

func TestQualifiedTypeTemplate(t *testing.T) {
	fsys := fstest.MapFS{
		"Lib/lib.zs": &fstest.MapFile{Data: []byte(libTemplates)},
		"Main/main.zs": &fstest.MapFile{Data: []byte(`import Lib
p: Lib.Box<U8>
q: Lib.Box<U8>
r: Box<U8>
v = q.V
`)},
	}
	c := run(t, fsys, nil, nil)
	noErrors(t, c.Diags)
	mods := c.Modules()
	lib, main := mods[0], mods[1]
	resolved(t, main)
	if len(lib.Instances) != 1 || len(main.Instances) != 0 {
		t.Fatalf("got %d instances in Lib and %d in Main, want 1 and 0", len(lib.Instances), len(main.Instances))
	}
	for _, name := range []string{"p", "q", "r"} {
		def := main.Table.FindLocal(name, ast.KindVariable).Def().(*ast.VariableDef)
		if def.Type.Def != lib.Instances[0] {
			t.Errorf("%s has type %v, want the Lib instance", name, def.Type.Def)
		}
	}
	v := main.Table.FindLocal("v", ast.KindVariable).Def().(*ast.VariableDef)
	if got := types.TypeKey(v.Type); got != "U8" {
		t.Errorf("q.V has type %s", got)
	}
}

func TestQualifiedFunctionTemplate(t *testing.T) {
	fsys := fstest.MapFS{
		"Lib/lib.zs": &fstest.MapFile{Data: []byte(libTemplates)},
		"Main/main.zs": &fstest.MapFile{Data: []byte(`import Lib
a = Lib.Id<U8>(1)
b = Lib.Id<U8>(2)
c = Id<U8>(3)
`)},
	}
	c := run(t, fsys, nil, nil)
	noErrors(t, c.Diags)
	mods := c.Modules()
	lib, main := mods[0], mods[1]
	resolved(t, main)
	if len(lib.Instances) != 1 || len(main.Instances) != 0 {
		t.Fatalf("got %d instances in Lib and %d in Main, want 1 and 0", len(lib.Instances), len(main.Instances))
	}
	for i := 0; i < 3; i++ {
		if call := value(main, i).(*ast.FunctionRef); call.Def != lib.Instances[0] {
			t.Errorf("call %d bound to %v, want the Lib instance", i, call.Def)
		}
	}
}

func TestUseBeforeAssignment(t *testing.T) {
	c, _ := runMain(t, "b = a\na = 1\n", nil)
	items := c.Diags.Items()
	if len(items) != 1 || items[0].Code != diag.UndefinedVariable || !strings.Contains(items[0].Msg, "before it is assigned") {
		t.Errorf("diagnostics = %v, want one use-before-assignment", items)
	}
}

func TestTypesIdempotent(t *testing.T) {
	c, m := runMain(t, `Pair<T>
    A: T
    B: T
Sum: (p: Pair<U8>): U8
    ret p.A + p.B
p: Pair<U8>
s = Sum(p)
t = s + 1000
`, nil)
	noErrors(t, c.Diags)
	nodes, diags := c.Tree.Len(), c.Diags.Len()
	before := ast.Bindings(m)
	c.ResolveTypes(m)
	if c.Tree.Len() != nodes || c.Diags.Len() != diags {
		t.Errorf("second type resolution created %d nodes and %d diagnostics", c.Tree.Len()-nodes, c.Diags.Len()-diags)
	}
	if after := ast.Bindings(m); after != before {
		t.Errorf("bindings changed:\nbefore:\n%s\nafter:\n%s", before, after)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		src  fstest.MapFS
		ext  fstest.MapFS
		want string
	}{
		{"missing root", fstest.MapFS{}, nil, "reading module Main"},
		{"bad metadata", fstest.MapFS{"Main/main.zs": &fstest.MapFile{Data: []byte("import Sys.Io\n")}},
			fstest.MapFS{"Sys/Io.yaml": &fstest.MapFile{Data: []byte("functions: {")}}, "parsing Sys/Io.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ext fs.FS
			if tt.ext != nil {
				ext = tt.ext
			}
			_, err := check.Run(tt.src, ext, "Main", config.Default(), nil)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}
