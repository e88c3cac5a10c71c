package parser

import (
	"fmt"
	"io/fs"
	"log"
	"strconv"

	"github.com/smasher164/zs/ast"
	"github.com/smasher164/zs/diag"
	"github.com/smasher164/zs/lexer"
	"golang.org/x/exp/slices"
)

// Build carries what every parsed file is attached to.
type Build struct {
	Tree  *ast.Tree
	Diags *diag.List
	Trace *log.Logger // may be nil
}

type parser struct {
	Build
	file string
	toks []lexer.Token
	i    int
	tok  lexer.Token

	indent     int
	speculate  int
	specFailed bool
	afterBlock bool
}

type mark struct {
	i    int
	toks []lexer.Token
}

func (p *parser) trace(msg string) func() {
	if p.Trace == nil {
		return func() {}
	}
	p.Trace.Printf("%*s%s %s", p.indent*2, "", msg, p.tok)
	p.indent++
	return func() {
		p.indent--
	}
}

func newParser(b Build, file string, l *lexer.Lexer) *parser {
	p := &parser{Build: b, file: file}
	for {
		t := l.Next()
		if t.Type == lexer.Illegal {
			p.errorf(t.Span, "%s", t.Data)
			continue
		}
		p.toks = append(p.toks, t)
		if t.Type == lexer.EOF {
			break
		}
	}
	p.tok = p.toks[0]
	return p
}

// ParseFile parses one source file whose scope is nested in parent. It
// returns the module name declared by the file, if any.
func (b Build) ParseFile(fsys fs.FS, filename string, parent *ast.Table) (*ast.File, string, error) {
	l, err := lexer.NewLexer(fsys, filename)
	if err != nil {
		return nil, "", err
	}
	f, name := newParser(b, filename, l).parseFile(parent)
	return f, name, nil
}

// ParseSource is ParseFile for in-memory source.
func (b Build) ParseSource(filename, src string, parent *ast.Table) (*ast.File, string) {
	return newParser(b, filename, lexer.NewLexerString(src)).parseFile(parent)
}

// ParseModule parses the files of one module. Every file must declare the
// same module name, if it declares one.
func (b Build) ParseModule(name string, fsys fs.FS, filenames ...string) (*ast.Module, error) {
	if len(filenames) == 0 {
		return nil, fmt.Errorf("module %s has no %s files", name, lexer.Ext)
	}
	tab := ast.NewTable(b.Tree.Universe())
	var files []*ast.File
	var first error
	for _, filename := range filenames {
		f, declared, err := b.ParseFile(fsys, filename, tab)
		if err != nil {
			if first == nil {
				first = err
			}
			continue
		}
		if declared != "" && ast.Canonical(declared) != ast.Canonical(name) {
			return nil, fmt.Errorf("%s: module name mismatch: %s != %s", filename, declared, name)
		}
		files = append(files, f)
	}
	if first != nil {
		return nil, first
	}
	return b.NewModule(name, tab, files...), nil
}

// NewModule adopts already parsed files into a module.
func (b Build) NewModule(name string, tab *ast.Table, files ...*ast.File) *ast.Module {
	var span lexer.Span
	for _, f := range files {
		span = span.Add(f.Span())
	}
	return ast.New(b.Tree, span, &ast.Module{
		Name:  ast.NewIdentifier(name),
		Files: files,
		Table: tab,
	})
}

func (p *parser) errorf(span lexer.Span, format string, args ...any) {
	if p.speculate > 0 {
		p.specFailed = true
		return
	}
	p.Diags.Add(diag.Diagnostic{
		Code: diag.SyntaxError,
		File: p.file,
		Span: span,
		Msg:  fmt.Sprintf(format, args...),
	})
}

func (p *parser) next() {
	if p.i < len(p.toks)-1 {
		p.i++
	}
	p.tok = p.toks[p.i]
}

func (p *parser) peek() lexer.Token {
	if p.i+1 < len(p.toks) {
		return p.toks[p.i+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) mark() mark { return mark{p.i, p.toks} }

func (p *parser) reset(m mark) {
	p.i, p.toks = m.i, m.toks
	p.tok = p.toks[p.i]
}

// try runs f without reporting errors. On failure the token position is
// restored.
func (p *parser) try(f func() bool) bool {
	m := p.mark()
	p.speculate++
	failed := p.specFailed
	p.specFailed = false
	ok := f() && !p.specFailed
	p.speculate--
	p.specFailed = failed
	if !ok {
		p.reset(m)
	}
	return ok
}

func (p *parser) expect(tt lexer.TokenType) (lexer.Token, bool) {
	t := p.tok
	if t.Type != tt {
		p.errorf(t.Span, "expected %s, found %s", tt, t.Type)
		return t, false
	}
	p.next()
	return t, true
}

// sync skips the rest of a malformed line, including any block nested in
// it.
func (p *parser) sync() {
	depth := 0
	for p.tok.Type != lexer.EOF {
		switch p.tok.Type {
		case lexer.Newline:
			if depth == 0 && p.peek().Type != lexer.Indent {
				return
			}
		case lexer.Indent:
			depth++
		case lexer.Dedent:
			if depth == 0 {
				return
			}
			depth--
			if depth == 0 {
				p.next()
				p.afterBlock = true
				return
			}
		}
		p.next()
	}
}

// endLine finishes a statement. Statements ending in a block have already
// consumed their line break.
func (p *parser) endLine() {
	if p.afterBlock {
		p.afterBlock = false
		return
	}
	switch p.tok.Type {
	case lexer.Newline:
		p.next()
	case lexer.EOF, lexer.Dedent:
	default:
		p.errorf(p.tok.Span, "unexpected %s at end of statement", p.tok.Type)
		p.sync()
		p.endLine()
	}
}

func (p *parser) atBlock() bool {
	return p.tok.Type == lexer.Newline && p.peek().Type == lexer.Indent
}

func (p *parser) parseFile(parent *ast.Table) (*ast.File, string) {
	defer p.trace("parseFile")()
	tab := ast.NewTable(parent)
	span := p.tok.Span
	var moduleName string
	if p.tok.Type == lexer.Module {
		p.next()
		id, _ := p.parseDottedName()
		moduleName = id.Name
		p.endLine()
	}
	var imports []*ast.Import
	var body []ast.Node
	for p.tok.Type != lexer.EOF {
		p.afterBlock = false
		switch p.tok.Type {
		case lexer.Newline:
			p.next()
			continue
		case lexer.Import:
			if imp := p.parseImport(); imp != nil {
				imports = append(imports, imp)
			}
		case lexer.Export:
			if exp := p.parseExport(); exp != nil {
				body = append(body, exp)
			}
		case lexer.Indent:
			p.errorf(p.tok.Span, "unexpected indentation")
			for depth := 0; p.tok.Type != lexer.EOF; {
				if p.tok.Type == lexer.Indent {
					depth++
				} else if p.tok.Type == lexer.Dedent {
					if depth--; depth == 0 {
						p.next()
						break
					}
				}
				p.next()
			}
			continue
		case lexer.Dedent:
			p.next()
			continue
		default:
			if n := p.parseStmt(tab, true); !ast.IsNil(n) {
				body = append(body, n)
			}
		}
		p.endLine()
	}
	span = span.Add(p.tok.Span)
	return ast.New(p.Tree, span, &ast.File{
		Name:    p.file,
		Imports: imports,
		Body:    body,
		Table:   tab,
	}), moduleName
}

func (p *parser) parseImport() *ast.Import {
	defer p.trace("parseImport")()
	start := p.tok.Span
	p.next()
	id, span := p.parseDottedName()
	if id.Name == "" {
		return nil
	}
	return ast.New(p.Tree, start.Add(span), &ast.Import{Module: id})
}

func (p *parser) parseExport() *ast.Export {
	defer p.trace("parseExport")()
	start := p.tok.Span
	p.next()
	id, span := p.parseDottedName()
	if id.Name == "" {
		return nil
	}
	return ast.New(p.Tree, start.Add(span), &ast.Export{Name: id})
}

func (p *parser) parseDottedName() (ast.Identifier, lexer.Span) {
	t, ok := p.expect(lexer.Ident)
	if !ok {
		return ast.Identifier{}, t.Span
	}
	name, span := t.Data, t.Span
	for p.tok.Type == lexer.Period && p.peek().Type == lexer.Ident {
		p.next()
		name += "." + p.tok.Data
		span = span.Add(p.tok.Span)
		p.next()
	}
	return ast.NewIdentifier(name), span
}

// parseBlock parses an indented block. A missing block is reported and
// yields an empty one.
func (p *parser) parseBlock(parent *ast.Table) *ast.CodeBlock {
	defer p.trace("parseBlock")()
	tab := ast.NewTable(parent)
	span := p.tok.Span
	if !p.atBlock() {
		p.Diags.Add(diag.Diagnostic{Code: diag.EmptyCodeBlock, File: p.file, Span: span, Msg: "expected an indented block"})
		return ast.New(p.Tree, span, &ast.CodeBlock{Table: tab})
	}
	p.next()
	p.next()
	var stmts []ast.Node
	for p.tok.Type != lexer.Dedent && p.tok.Type != lexer.EOF {
		p.afterBlock = false
		if p.tok.Type == lexer.Newline {
			p.next()
			continue
		}
		if s := p.parseStmt(tab, false); !ast.IsNil(s) {
			stmts = append(stmts, s)
			span = span.Add(s.Span())
		}
		p.endLine()
	}
	if p.tok.Type == lexer.Dedent {
		p.next()
	}
	p.afterBlock = true
	return ast.New(p.Tree, span, &ast.CodeBlock{Stmts: stmts, Table: tab})
}

func (p *parser) parseStmt(tab *ast.Table, top bool) ast.Node {
	defer p.trace("parseStmt")()
	switch p.tok.Type {
	case lexer.Ret:
		return p.parseReturn()
	case lexer.If:
		return p.parseIf(tab)
	case lexer.Ident:
		return p.parseIdentStmt(tab, top)
	}
	if p.tok.BeginsExpr() {
		x := p.parseExpr()
		if ast.IsNil(x) {
			return nil
		}
		return ast.New(p.Tree, x.Span(), &ast.ExprStmt{X: x})
	}
	p.errorf(p.tok.Span, "expected statement, found %s", p.tok.Type)
	p.sync()
	return nil
}

func (p *parser) parseReturn() *ast.Return {
	defer p.trace("parseReturn")()
	span := p.tok.Span
	p.next()
	var x ast.Expr
	if p.tok.BeginsExpr() {
		if x = p.parseExpr(); !ast.IsNil(x) {
			span = span.Add(x.Span())
		}
	}
	return ast.New(p.Tree, span, &ast.Return{Value: x})
}

func (p *parser) parseIf(tab *ast.Table) *ast.If {
	defer p.trace("parseIf")()
	span := p.tok.Span
	p.next()
	cond := p.parseExpr()
	then := p.parseBlock(tab)
	span = span.Add(then.Span())
	var els *ast.CodeBlock
	if p.tok.Type == lexer.Else {
		p.afterBlock = false
		elseSpan := p.tok.Span
		p.next()
		if p.tok.Type == lexer.If {
			inner := ast.NewTable(tab)
			nested := p.parseIf(inner)
			els = ast.New(p.Tree, elseSpan.Add(nested.Span()), &ast.CodeBlock{Stmts: []ast.Node{nested}, Table: inner})
		} else {
			els = p.parseBlock(tab)
		}
		span = span.Add(els.Span())
	}
	return ast.New(p.Tree, span, &ast.If{Cond: cond, Then: then, Else: els})
}

// parseIdentStmt handles everything that starts with a name: definitions,
// declarations, assignments and expression statements.
func (p *parser) parseIdentStmt(tab *ast.Table, top bool) ast.Node {
	defer p.trace("parseIdentStmt")()
	m := p.mark()
	name, span := p.parseDottedName()
	if p.tok.Type == lexer.LessThan && top {
		var params []ast.Identifier
		if p.try(func() bool { params = p.parseTypeParams(); return true }) {
			switch {
			case p.tok.Type == lexer.Colon && p.peek().Type == lexer.LeftParen:
				return p.parseFunction(tab, name, params, span)
			case p.tok.Type == lexer.Colon || p.atBlock():
				return p.parseTypeDef(name, params, span)
			}
		}
		p.reset(m)
		return p.parseExprStmtOrAssign()
	}
	if p.tok.Type == lexer.Colon && p.peek().Type == lexer.LeftParen {
		if !top {
			p.errorf(span, "functions must be defined at module level")
		}
		return p.parseFunction(tab, name, nil, span)
	}
	if p.tok.Type == lexer.Colon {
		if top && p.isTypeDefWithBase() {
			return p.parseTypeDef(name, nil, span)
		}
		p.next()
		typ := p.parseTypeRef()
		target := ast.New(p.Tree, span.Add(typ.Span()), &ast.VariableRef{Name: name, Annotation: typ})
		return p.finishAssignment(target)
	}
	if top && p.atBlock() {
		return p.parseTypeDef(name, nil, span)
	}
	if p.tok.Type == lexer.Equals {
		target := ast.New(p.Tree, span, &ast.VariableRef{Name: name})
		return p.finishAssignment(target)
	}
	p.reset(m)
	return p.parseExprStmtOrAssign()
}

func (p *parser) isTypeDefWithBase() bool {
	m := p.mark()
	defer p.reset(m)
	return p.try(func() bool {
		p.next()
		p.parseTypeRef()
		return p.atBlock()
	})
}

func (p *parser) finishAssignment(target *ast.VariableRef) *ast.Assignment {
	span := target.Span()
	var value ast.Expr
	if p.tok.Type == lexer.Equals {
		p.next()
		if value = p.parseExpr(); !ast.IsNil(value) {
			span = span.Add(value.Span())
		}
	}
	return ast.New(p.Tree, span, &ast.Assignment{Target: target, Value: value})
}

func (p *parser) parseExprStmtOrAssign() ast.Node {
	x := p.parseExpr()
	if ast.IsNil(x) {
		return nil
	}
	return ast.New(p.Tree, x.Span(), &ast.ExprStmt{X: x})
}

func (p *parser) parseTypeParams() []ast.Identifier {
	p.next()
	var params []ast.Identifier
	for {
		t, ok := p.expect(lexer.Ident)
		if !ok {
			return nil
		}
		params = append(params, ast.NewIdentifier(t.Data))
		if p.tok.Type != lexer.Comma {
			break
		}
		p.next()
	}
	p.closeAngle()
	return params
}

// closeAngle consumes a '>' and splits a '>>' closing two argument lists.
func (p *parser) closeAngle() {
	switch p.tok.Type {
	case lexer.GreaterThan:
		p.next()
	case lexer.RightShift:
		second := p.tok
		second.Type = lexer.GreaterThan
		second.Span.Start.Offset++
		second.Span.Start.Column++
		p.toks = slices.Clone(p.toks)
		p.toks[p.i] = second
		p.tok = second
	default:
		p.errorf(p.tok.Span, "expected >, found %s", p.tok.Type)
	}
}

func (p *parser) parseFunction(tab *ast.Table, name ast.Identifier, params []ast.Identifier, span lexer.Span) *ast.FunctionDef {
	defer p.trace("parseFunction")()
	p.next()
	name.Arity = len(params)
	sig := p.parseSignature()
	fn := &ast.FunctionDef{
		Name:       name,
		TypeParams: params,
		Type:       sig,
		Table:      ast.NewTable(tab),
	}
	fn.Body = p.parseBlock(fn.Table)
	return ast.New(p.Tree, span.Add(sig.Span()).Add(fn.Body.Span()), fn)
}

func (p *parser) parseSignature() *ast.FunctionType {
	defer p.trace("parseSignature")()
	span := p.tok.Span
	p.expect(lexer.LeftParen)
	var params []*ast.Parameter
	for p.tok.Type == lexer.Ident {
		id, pspan := p.parseDottedName()
		p.expect(lexer.Colon)
		typ := p.parseTypeRef()
		params = append(params, ast.New(p.Tree, pspan.Add(typ.Span()), &ast.Parameter{Name: id, Type: typ}))
		if p.tok.Type != lexer.Comma {
			break
		}
		p.next()
	}
	span = span.Add(p.tok.Span)
	p.expect(lexer.RightParen)
	var ret *ast.TypeRef
	if p.tok.Type == lexer.Colon {
		p.next()
		ret = p.parseTypeRef()
		span = span.Add(ret.Span())
	}
	return ast.New(p.Tree, span, &ast.FunctionType{Params: params, Return: ret})
}

func (p *parser) parseTypeRef() *ast.TypeRef {
	defer p.trace("parseTypeRef")()
	name, span := p.parseDottedName()
	var args []*ast.TypeRef
	if p.tok.Type == lexer.LessThan {
		p.next()
		for {
			a := p.parseTypeRef()
			args = append(args, a)
			if p.tok.Type != lexer.Comma {
				break
			}
			p.next()
		}
		span = span.Add(p.tok.Span)
		p.closeAngle()
	}
	tr := &ast.TypeRef{Name: name, Args: args}
	if p.tok.Type == lexer.QuestionMark {
		tr.Optional = true
		span = span.Add(p.tok.Span)
		p.next()
	}
	if p.tok.Type == lexer.Not {
		tr.ErrorUnion = true
		span = span.Add(p.tok.Span)
		p.next()
	}
	return ast.New(p.Tree, span, tr)
}

// parseTypeDef parses a struct or an enum. Enum blocks list bare option
// names; struct blocks list typed fields.
func (p *parser) parseTypeDef(name ast.Identifier, params []ast.Identifier, span lexer.Span) ast.Node {
	defer p.trace("parseTypeDef")()
	var base *ast.TypeRef
	if p.tok.Type == lexer.Colon {
		p.next()
		base = p.parseTypeRef()
	}
	if !p.atBlock() {
		p.errorf(p.tok.Span, "expected fields or options of %s", name.Name)
		return nil
	}
	p.next() // Newline
	p.next() // Indent
	if p.tok.Type == lexer.Ident && p.peek().Type == lexer.Colon {
		name.Arity = len(params)
		fields := p.parseFields()
		for _, f := range fields {
			span = span.Add(f.Span())
		}
		return ast.New(p.Tree, span, &ast.StructDef{Name: name, TypeParams: params, Base: base, Fields: fields})
	}
	if len(params) > 0 {
		p.errorf(span, "enum %s cannot have type parameters", name.Name)
	}
	opts := p.parseOptions(name)
	for _, o := range opts {
		span = span.Add(o.Span())
	}
	return ast.New(p.Tree, span, &ast.EnumDef{Name: name, Base: base, Options: opts})
}

func (p *parser) parseFields() []*ast.Field {
	var fields []*ast.Field
	for p.tok.Type != lexer.Dedent && p.tok.Type != lexer.EOF {
		p.afterBlock = false
		if p.tok.Type == lexer.Newline {
			p.next()
			continue
		}
		id, span := p.parseDottedName()
		if _, ok := p.expect(lexer.Colon); !ok {
			p.sync()
			p.endLine()
			continue
		}
		typ := p.parseTypeRef()
		fields = append(fields, ast.New(p.Tree, span.Add(typ.Span()), &ast.Field{Name: id, Type: typ}))
		p.endLine()
	}
	if p.tok.Type == lexer.Dedent {
		p.next()
	}
	p.afterBlock = true
	return fields
}

func (p *parser) parseOptions(enum ast.Identifier) []*ast.EnumOption {
	var opts []*ast.EnumOption
	for p.tok.Type != lexer.Dedent && p.tok.Type != lexer.EOF {
		p.afterBlock = false
		if p.tok.Type == lexer.Newline {
			p.next()
			continue
		}
		t, ok := p.expect(lexer.Ident)
		if !ok {
			p.sync()
			p.endLine()
			continue
		}
		opt := &ast.EnumOption{Name: ast.NewIdentifier(enum.Name + "." + t.Data)}
		span := t.Span
		if p.tok.Type == lexer.Equals {
			p.next()
			opt.Explicit = true
			if p.tok.Type == lexer.Minus {
				p.errorf(p.tok.Span, "enum values cannot be negative")
				p.next()
			}
			if v, ok := p.expect(lexer.Number); ok {
				opt.Raw = v.Data
				span = span.Add(v.Span)
			}
		}
		opts = append(opts, ast.New(p.Tree, span, opt))
		p.endLine()
	}
	if p.tok.Type == lexer.Dedent {
		p.next()
	}
	p.afterBlock = true
	return opts
}

func (p *parser) parseExpr() ast.Expr {
	defer p.trace("parseExpr")()
	return p.parseBinaryExpr(lexer.MinPrec)
}

func (p *parser) parseBinaryExpr(prec int) ast.Expr {
	x := p.parseUnaryExpr()
	for {
		op := p.tok
		oprec := op.Prec()
		if oprec < prec {
			return x
		}
		p.next()
		y := p.parseBinaryExpr(oprec + 1)
		if ast.IsNil(x) || ast.IsNil(y) {
			if ast.IsNil(x) {
				x = y
			}
			continue
		}
		bop, _ := ast.BinaryOp(op.Type)
		x = ast.New(p.Tree, x.Span().Add(y.Span()), &ast.Expression{Op: bop, Left: x, Right: y})
	}
}

func (p *parser) parseUnaryExpr() ast.Expr {
	if !p.tok.IsPrefixOp() {
		return p.parseOperand()
	}
	op := p.tok
	p.next()
	if op.Type == lexer.Minus && p.tok.Type == lexer.Number {
		num := p.tok
		p.next()
		return ast.New(p.Tree, op.Span.Add(num.Span), &ast.Literal{Kind: ast.NumberLiteral, Raw: num.Data, Negative: true})
	}
	x := p.parseUnaryExpr()
	if ast.IsNil(x) {
		return nil
	}
	uop, _ := ast.UnaryOp(op.Type)
	return ast.New(p.Tree, op.Span.Add(x.Span()), &ast.Expression{Op: uop, Right: x})
}

func (p *parser) parseOperand() ast.Expr {
	t := p.tok
	switch t.Type {
	case lexer.Number:
		p.next()
		return ast.New(p.Tree, t.Span, &ast.Literal{Kind: ast.NumberLiteral, Raw: t.Data})
	case lexer.String:
		p.next()
		s, err := strconv.Unquote(t.Data)
		if err != nil {
			p.errorf(t.Span, "invalid string literal: %v", err)
		}
		return ast.New(p.Tree, t.Span, &ast.Literal{Kind: ast.StringLiteral, Raw: s})
	case lexer.True, lexer.False:
		p.next()
		return ast.New(p.Tree, t.Span, &ast.Literal{Kind: ast.BoolLiteral, Raw: t.Data})
	case lexer.LeftParen:
		p.next()
		x := p.parseExpr()
		p.expect(lexer.RightParen)
		return x
	case lexer.Ident:
		return p.parseNameExpr()
	}
	p.errorf(t.Span, "expected expression, found %s", t.Type)
	switch t.Type {
	case lexer.Newline, lexer.Indent, lexer.Dedent, lexer.EOF:
	default:
		p.next()
	}
	return nil
}

// parseNameExpr parses a variable reference or a call. A '<' after the name
// starts type arguments only when the list closes and a call follows.
func (p *parser) parseNameExpr() ast.Expr {
	defer p.trace("parseNameExpr")()
	name, span := p.parseDottedName()
	var targs []*ast.TypeRef
	if p.tok.Type == lexer.LessThan {
		p.try(func() bool {
			targs = nil
			p.next()
			for {
				targs = append(targs, p.parseTypeRef())
				if p.tok.Type != lexer.Comma {
					break
				}
				p.next()
			}
			p.closeAngle()
			return p.tok.Type == lexer.LeftParen
		})
		if p.tok.Type != lexer.LeftParen {
			targs = nil
		}
	}
	if p.tok.Type != lexer.LeftParen {
		return ast.New(p.Tree, span, &ast.VariableRef{Name: name})
	}
	p.next()
	var args []ast.Expr
	for p.tok.Type != lexer.RightParen && p.tok.Type != lexer.EOF {
		a := p.parseExpr()
		if ast.IsNil(a) {
			break
		}
		args = append(args, a)
		if p.tok.Type != lexer.Comma {
			break
		}
		p.next()
	}
	span = span.Add(p.tok.Span)
	p.expect(lexer.RightParen)
	return ast.New(p.Tree, span, &ast.FunctionRef{Name: name, TypeArgs: targs, Args: args, MustUse: true})
}
