package parser_test

import (
	"testing"

	"github.com/smasher164/zs/ast"
	"github.com/smasher164/zs/diag"
	"github.com/smasher164/zs/parser"
)

func parse(t *testing.T, src string) (*ast.File, *diag.List) {
	t.Helper()
	tree := ast.NewTree()
	var diags diag.List
	b := parser.Build{Tree: tree, Diags: &diags}
	f, _ := b.ParseSource("test.zs", src, tree.Universe())
	return f, &diags
}

func noErrors(t *testing.T, diags *diag.List) {
	t.Helper()
	for _, d := range diags.Items() {
		t.Errorf("unexpected diagnostic: %v", d)
	}
}

func TestFunction(t *testing.T) {
	f, diags := parse(t, `module Demo
add: (a: U8, b: U8): U8
    c = a + b
    ret c
`)
	noErrors(t, diags)
	if len(f.Body) != 1 {
		t.Fatalf("got %d top-level nodes:\n%s", len(f.Body), ast.Dump(f))
	}
	fn, ok := f.Body[0].(*ast.FunctionDef)
	if !ok {
		t.Fatalf("got %T, want *ast.FunctionDef", f.Body[0])
	}
	if fn.Name.Key() != "add" || len(fn.Type.Params) != 2 || fn.Type.Return.Name.Name != "U8" {
		t.Errorf("unexpected signature:\n%s", ast.Dump(fn))
	}
	if len(fn.Body.Stmts) != 2 {
		t.Fatalf("got %d statements", len(fn.Body.Stmts))
	}
	asg := fn.Body.Stmts[0].(*ast.Assignment)
	sum, ok := asg.Value.(*ast.Expression)
	if !ok || sum.Op != ast.OpAdd {
		t.Errorf("c = a + b parsed as %s", ast.Dump(asg))
	}
	if _, ok := fn.Body.Stmts[1].(*ast.Return); !ok {
		t.Errorf("got %T, want *ast.Return", fn.Body.Stmts[1])
	}
	if fn.Body.Table.Parent != fn.Table || fn.Table.Parent != f.Table {
		t.Errorf("scopes are not chained")
	}
}

func TestTypeDefs(t *testing.T) {
	f, diags := parse(t, `MyEnum
    Zero
    One = 4
Point<T>
    X: T
    Y: T
Small: U8
    A
`)
	noErrors(t, diags)
	if len(f.Body) != 3 {
		t.Fatalf("got %d nodes:\n%s", len(f.Body), ast.Dump(f))
	}
	enum := f.Body[0].(*ast.EnumDef)
	if len(enum.Options) != 2 || enum.Options[0].Name.Canonical != "Myenum.Zero" || enum.Options[1].Raw != "4" {
		t.Errorf("unexpected enum:\n%s", ast.Dump(enum))
	}
	point := f.Body[1].(*ast.StructDef)
	if point.Name.Key() != "Point%1" || len(point.Fields) != 2 {
		t.Errorf("unexpected struct:\n%s", ast.Dump(point))
	}
	small := f.Body[2].(*ast.EnumDef)
	if small.Base == nil || small.Base.Name.Name != "U8" {
		t.Errorf("enum base not parsed:\n%s", ast.Dump(small))
	}
}

func TestStatements(t *testing.T) {
	f, diags := parse(t, `x: I32 = -5
y: Str
_ = f(1, "a")
if x < 3 and not b
    print(x)
else if x == 4
    ret
else
    x = x << 2
`)
	noErrors(t, diags)
	if len(f.Body) != 4 {
		t.Fatalf("got %d nodes:\n%s", len(f.Body), ast.Dump(f))
	}
	decl := f.Body[0].(*ast.Assignment)
	lit := decl.Value.(*ast.Literal)
	if decl.Target.Annotation == nil || !lit.Negative || lit.Raw != "5" {
		t.Errorf("x: I32 = -5 parsed as\n%s", ast.Dump(decl))
	}
	bare := f.Body[1].(*ast.Assignment)
	if bare.Value != nil || bare.Target.Annotation.Name.Name != "Str" {
		t.Errorf("y: Str parsed as\n%s", ast.Dump(bare))
	}
	discard := f.Body[2].(*ast.Assignment)
	call := discard.Value.(*ast.FunctionRef)
	if !discard.Target.Name.IsDiscard() || len(call.Args) != 2 || !call.MustUse {
		t.Errorf("_ = f(1, \"a\") parsed as\n%s", ast.Dump(discard))
	}
	cond := f.Body[3].(*ast.If)
	and := cond.Cond.(*ast.Expression)
	if and.Op != ast.OpAnd {
		t.Errorf("condition root is %v, want and", and.Op)
	}
	if cond.Else == nil || len(cond.Else.Stmts) != 1 {
		t.Fatalf("else if not parsed:\n%s", ast.Dump(cond))
	}
	inner := cond.Else.Stmts[0].(*ast.If)
	if inner.Else == nil {
		t.Errorf("final else missing")
	}
}

func TestTemplateArgs(t *testing.T) {
	f, diags := parse(t, `a = id<U8>(3)
b = x < y
c: List<Box<U8>> = make<List<Box<U8>>>()
`)
	noErrors(t, diags)
	call := f.Body[0].(*ast.Assignment).Value.(*ast.FunctionRef)
	if len(call.TypeArgs) != 1 || call.TypeArgs[0].Name.Name != "U8" {
		t.Errorf("id<U8>(3) parsed as\n%s", ast.Dump(call))
	}
	cmp := f.Body[1].(*ast.Assignment).Value.(*ast.Expression)
	if cmp.Op != ast.OpLt {
		t.Errorf("x < y parsed as\n%s", ast.Dump(cmp))
	}
	nested := f.Body[2].(*ast.Assignment)
	if got := ast.TypeRefString(nested.Target.Annotation); got != "List<Box<U8>>" {
		t.Errorf("annotation = %s", got)
	}
	mk := nested.Value.(*ast.FunctionRef)
	if got := ast.TypeRefString(mk.TypeArgs[0]); got != "List<Box<U8>>" {
		t.Errorf("type argument = %s", got)
	}
}

func TestErrors(t *testing.T) {
	_, diags := parse(t, `f: (a: U8)
g: ()
    x = )
    ret 1
`)
	if n := diags.Count(diag.EmptyCodeBlock); n != 1 {
		t.Errorf("got %d EmptyCodeBlock diagnostics, want 1", n)
	}
	if n := diags.Count(diag.SyntaxError); n != 1 {
		t.Errorf("got %d SyntaxError diagnostics, want 1: %v", n, diags.Items())
	}
}

func TestParentsSetOnce(t *testing.T) {
	f, _ := parse(t, `f: (a: U8): U8
    ret a * 2
`)
	ast.Inspect(f, func(n ast.Node) bool {
		for _, c := range ast.Children(n) {
			if c.Parent() != n.ID() {
				t.Errorf("%T #%d has parent #%d, want #%d", c, c.ID(), c.Parent(), n.ID())
			}
		}
		return true
	})
}
