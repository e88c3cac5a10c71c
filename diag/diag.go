// Package diag collects the problems found in user source.
package diag

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/mattn/go-isatty"
	"github.com/smasher164/zs/ast"
	"github.com/smasher164/zs/lexer"
)

type Code int

const (
	UndefinedVariable Code = iota + 1
	UndefinedFunction
	UndefinedType
	UndefinedEnumOption
	UndefinedModule
	UndefinedMember
	UndefinedExport
	OverloadNotFound
	ReturnValueNotAssigned
	DuplicateDefinition
	TypeMismatch
	InvalidEnumBase
	InvalidLiteral
	EmptyCodeBlock
	SyntaxError
)

var codeNames = [...]string{
	UndefinedVariable:      "UndefinedVariable",
	UndefinedFunction:      "UndefinedFunction",
	UndefinedType:          "UndefinedType",
	UndefinedEnumOption:    "UndefinedEnumOption",
	UndefinedModule:        "UndefinedModule",
	UndefinedMember:        "UndefinedMember",
	UndefinedExport:        "UndefinedExport",
	OverloadNotFound:       "OverloadNotFound",
	ReturnValueNotAssigned: "ReturnValueNotAssigned",
	DuplicateDefinition:    "DuplicateDefinition",
	TypeMismatch:           "TypeMismatch",
	InvalidEnumBase:        "InvalidEnumBase",
	InvalidLiteral:         "InvalidLiteral",
	EmptyCodeBlock:         "EmptyCodeBlock",
	SyntaxError:            "SyntaxError",
}

func (c Code) String() string {
	if c > 0 && int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

type Diagnostic struct {
	Code Code
	Node ast.Node // nil for problems found before the tree exists
	File string
	Span lexer.Span
	Msg  string
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.File, d.Span.Start.Line, d.Span.Start.Column, d.Code, d.Msg)
}

// List is an ordered sink of diagnostics.
type List struct {
	items []Diagnostic
}

func (l *List) Add(d Diagnostic) {
	l.items = append(l.items, d)
}

// Report records a diagnostic about n, locating it through t.
func (l *List) Report(t *ast.Tree, code Code, n ast.Node, format string, args ...any) {
	d := Diagnostic{Code: code, Node: n, Msg: fmt.Sprintf(format, args...)}
	if !ast.IsNil(n) {
		d.Span = n.Span()
		if f := t.FileOf(n); f != nil {
			d.File = f.Name
		}
	}
	l.Add(d)
}

func (l *List) Len() int { return len(l.items) }

func (l *List) Items() []Diagnostic {
	return append([]Diagnostic(nil), l.items...)
}

func (l *List) Count(code Code) int {
	n := 0
	for _, d := range l.items {
		if d.Code == code {
			n++
		}
	}
	return n
}

// Has reports whether n carries a diagnostic with the given code.
func (l *List) Has(n ast.Node, code Code) bool {
	for _, d := range l.items {
		if d.Code == code && d.Node != nil && d.Node.ID() == n.ID() {
			return true
		}
	}
	return false
}

// About reports whether any diagnostic is attached to n.
func (l *List) About(n ast.Node) bool {
	for _, d := range l.items {
		if d.Node != nil && d.Node.ID() == n.ID() {
			return true
		}
	}
	return false
}

type ColorMode int

const (
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

func useColor(w io.Writer, mode ColorMode) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

const (
	bold  = "\x1b[1m"
	red   = "\x1b[31m"
	reset = "\x1b[0m"
)

// Fprint writes the diagnostics sorted by file and position.
func (l *List) Fprint(w io.Writer, mode ColorMode) error {
	items := l.Items()
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Span.Start.Line != b.Span.Start.Line {
			return a.Span.Start.Line < b.Span.Start.Line
		}
		return a.Span.Start.Column < b.Span.Start.Column
	})
	color := useColor(w, mode)
	for _, d := range items {
		var err error
		if color {
			_, err = fmt.Fprintf(w, "%s%s:%d:%d:%s %serror%s [%s]: %s\n",
				bold, d.File, d.Span.Start.Line, d.Span.Start.Column, reset, red, reset, d.Code, d.Msg)
		} else {
			_, err = fmt.Fprintf(w, "%s:%d:%d: error [%s]: %s\n",
				d.File, d.Span.Start.Line, d.Span.Start.Column, d.Code, d.Msg)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
