package diag_test

import (
	"strings"
	"testing"

	"github.com/smasher164/zs/ast"
	"github.com/smasher164/zs/diag"
	"github.com/smasher164/zs/lexer"
)

func at(line, col int) lexer.Span {
	p := lexer.Pos{Line: line, Column: col}
	return lexer.Span{Start: p, End: p}
}

func ref(tree *ast.Tree, name string, line, col int) *ast.VariableRef {
	return ast.New(tree, at(line, col), &ast.VariableRef{Name: ast.NewIdentifier(name)})
}

func TestReport(t *testing.T) {
	tree := ast.NewTree()
	x, y := ref(tree, "x", 2, 5), ref(tree, "y", 1, 1)
	ast.New(tree, lexer.Span{}, &ast.File{Name: "main.zs", Body: []ast.Node{x, y}})
	orphan := ref(tree, "z", 3, 1)

	var l diag.List
	l.Report(tree, diag.UndefinedVariable, x, "undefined variable %s", "x")
	l.Report(tree, diag.TypeMismatch, y, "mismatch")
	l.Report(tree, diag.UndefinedVariable, orphan, "undefined variable z")
	l.Add(diag.Diagnostic{Code: diag.SyntaxError, File: "a.zs", Span: at(1, 2), Msg: "unexpected Newline"})

	if l.Len() != 4 || l.Count(diag.UndefinedVariable) != 2 {
		t.Errorf("got %d diagnostics, %d UndefinedVariable", l.Len(), l.Count(diag.UndefinedVariable))
	}
	if !l.Has(x, diag.UndefinedVariable) || l.Has(x, diag.TypeMismatch) || !l.About(y) {
		t.Errorf("diagnostics not attached to their nodes")
	}
	d := l.Items()[0]
	if d.File != "main.zs" || d.Span.Start.Line != 2 {
		t.Errorf("located at %s:%v", d.File, d.Span)
	}
	if got := d.Error(); got != "main.zs:2:5: UndefinedVariable: undefined variable x" {
		t.Errorf("Error() = %q", got)
	}
	if f := l.Items()[2].File; f != "" {
		t.Errorf("node outside any file located in %q", f)
	}

	var sb strings.Builder
	if err := l.Fprint(&sb, diag.ColorNever); err != nil {
		t.Fatal(err)
	}
	want := `:3:1: error [UndefinedVariable]: undefined variable z
a.zs:1:2: error [SyntaxError]: unexpected Newline
main.zs:1:1: error [TypeMismatch]: mismatch
main.zs:2:5: error [UndefinedVariable]: undefined variable x
`
	if got := sb.String(); got != want {
		t.Errorf("Fprint:\n%s\nwant:\n%s", got, want)
	}
}

func TestColor(t *testing.T) {
	var l diag.List
	l.Add(diag.Diagnostic{Code: diag.UndefinedType, File: "a.zs", Span: at(1, 1), Msg: "undefined type X"})
	var plain, color strings.Builder
	l.Fprint(&plain, diag.ColorAuto)
	l.Fprint(&color, diag.ColorAlways)
	if strings.Contains(plain.String(), "\x1b[") {
		t.Errorf("escape codes written to a non-terminal: %q", plain.String())
	}
	if !strings.Contains(color.String(), "\x1b[31merror") {
		t.Errorf("no color with ColorAlways: %q", color.String())
	}
}

func TestCodeString(t *testing.T) {
	if got := diag.ReturnValueNotAssigned.String(); got != "ReturnValueNotAssigned" {
		t.Errorf("String() = %s", got)
	}
	if got := diag.Code(99).String(); got != "Code(99)" {
		t.Errorf("String() = %s", got)
	}
}
