package lexer

import (
	"fmt"

	"golang.org/x/exp/slices"
)

type TokenType int

const (
	EOF TokenType = iota
	Newline
	Indent
	Dedent
	Plus
	Minus
	Times
	Divide
	Remainder
	And
	Or
	Caret
	Tilde
	LessThan
	GreaterThan

	Equals
	Colon
	Not
	Comma
	Period
	LeftParen
	RightParen
	QuestionMark

	LeftShift
	RightShift
	LogicalEquals
	NotEquals
	LessThanEquals
	GreaterThanEquals

	Module
	Import
	Export
	Ret
	If
	Else
	LogicalAnd
	LogicalOr
	LogicalNot
	True
	False

	Ident
	Number
	String
	Whitespace
	SingleLineComment
	Illegal
)

var tokenNames = [...]string{
	EOF:               "EOF",
	Newline:           "Newline",
	Indent:            "Indent",
	Dedent:            "Dedent",
	Plus:              "+",
	Minus:             "-",
	Times:             "*",
	Divide:            "/",
	Remainder:         "%",
	And:               "&",
	Or:                "|",
	Caret:             "^",
	Tilde:             "~",
	LessThan:          "<",
	GreaterThan:       ">",
	Equals:            "=",
	Colon:             ":",
	Not:               "!",
	Comma:             ",",
	Period:            ".",
	LeftParen:         "(",
	RightParen:        ")",
	QuestionMark:      "?",
	LeftShift:         "<<",
	RightShift:        ">>",
	LogicalEquals:     "==",
	NotEquals:         "<>",
	LessThanEquals:    "<=",
	GreaterThanEquals: ">=",
	Module:            "module",
	Import:            "import",
	Export:            "export",
	Ret:               "ret",
	If:                "if",
	Else:              "else",
	LogicalAnd:        "and",
	LogicalOr:         "or",
	LogicalNot:        "not",
	True:              "true",
	False:             "false",
	Ident:             "Ident",
	Number:            "Number",
	String:            "String",
	Whitespace:        "Whitespace",
	SingleLineComment: "SingleLineComment",
	Illegal:           "Illegal",
}

func (t TokenType) String() string {
	if t >= 0 && int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

var SingleCharTokens = map[rune]TokenType{
	'+': Plus,
	'-': Minus,
	'*': Times,
	'/': Divide,
	'%': Remainder,
	'&': And,
	'|': Or,
	'^': Caret,
	'~': Tilde,
	'<': LessThan,
	'>': GreaterThan,
	'=': Equals,
	':': Colon,
	'!': Not,
	',': Comma,
	'.': Period,
	'(': LeftParen,
	')': RightParen,
	'?': QuestionMark,
}

var DoubleCharTokens = map[[2]rune]TokenType{
	{'<', '<'}: LeftShift,
	{'>', '>'}: RightShift,
	{'=', '='}: LogicalEquals,
	{'<', '>'}: NotEquals,
	{'!', '='}: NotEquals,
	{'<', '='}: LessThanEquals,
	{'>', '='}: GreaterThanEquals,
}

var Keywords = map[string]TokenType{
	"module": Module,
	"import": Import,
	"export": Export,
	"ret":    Ret,
	"if":     If,
	"else":   Else,
	"and":    LogicalAnd,
	"or":     LogicalOr,
	"not":    LogicalNot,
	"true":   True,
	"false":  False,
}

type Pos struct {
	Offset int
	Line   int
	Column int
}

func (p Pos) Min(other Pos) Pos {
	if p.Line == 0 {
		return other
	}
	if other.Line == 0 {
		return p
	}
	if p.Offset < other.Offset {
		return p
	}
	return other
}

func (p Pos) Max(other Pos) Pos {
	if p.Line == 0 {
		return other
	}
	if other.Line == 0 {
		return p
	}
	if p.Offset > other.Offset {
		return p
	}
	return other
}

type Span struct {
	Start Pos
	End   Pos
}

func (span Span) Add(other Span) Span {
	return Span{span.Start.Min(other.Start), span.End.Max(other.End)}
}

func (s Span) String() string {
	if s.Start == s.End {
		return fmt.Sprintf("%d:%d", s.Start.Line, s.Start.Column)
	}
	if s.Start.Line == s.End.Line {
		return fmt.Sprintf("%d:%d-%d", s.Start.Line, s.Start.Column, s.End.Column)
	}
	return fmt.Sprintf("%d:%d-%d:%d", s.Start.Line, s.Start.Column, s.End.Line, s.End.Column)
}

type Token struct {
	LeadingTrivia []Token
	Type          TokenType
	Span          Span
	Data          string
}

func (t Token) String() string {
	if t.Data == "" {
		return fmt.Sprintf("%s:%s", t.Span, t.Type)
	}
	return fmt.Sprintf("%s:%s %q", t.Span, t.Type, t.Data)
}

func (b Token) Eq(a Token) bool {
	return a.Type == b.Type && a.Data == b.Data
}

func (a Token) ExactEq(b Token) bool {
	return a.Type == b.Type && a.Span == b.Span && a.Data == b.Data && slices.EqualFunc(a.LeadingTrivia, b.LeadingTrivia, Token.ExactEq)
}

func (t Token) IsBinaryOp() bool {
	return t.Prec() > 0
}

func (t Token) IsPrefixOp() bool {
	switch t.Type {
	case Minus, Tilde, LogicalNot:
		return true
	}
	return false
}

const MinPrec = 1

func (t Token) Prec() int {
	switch t.Type {
	case Times, Divide, Remainder:
		return 9
	case Plus, Minus:
		return 8
	case LeftShift, RightShift:
		return 7
	case And:
		return 6
	case Caret:
		return 5
	case Or:
		return 4
	case LogicalEquals, NotEquals, LessThan, GreaterThan, LessThanEquals, GreaterThanEquals:
		return 3
	case LogicalAnd:
		return 2
	case LogicalOr:
		return 1
	}
	return 0
}

func (t Token) IsArithmetic() bool {
	switch t.Type {
	case Plus, Minus, Times, Divide, Remainder:
		return true
	}
	return false
}

func (t Token) IsBitwise() bool {
	switch t.Type {
	case LeftShift, RightShift, And, Or, Caret, Tilde:
		return true
	}
	return false
}

func (t Token) IsComparison() bool {
	switch t.Type {
	case LogicalEquals, NotEquals, LessThan, GreaterThan, LessThanEquals, GreaterThanEquals:
		return true
	}
	return false
}

func (a Token) OnDifferentLines(b Token) bool {
	return a.Span.End.Line != b.Span.Start.Line
}

// IsTrivia reports whether the token is dropped from the token stream.
func (t Token) IsTrivia() bool {
	return t.Type == Whitespace || t.Type == SingleLineComment
}

// BeginsExpr reports whether the token may start an expression.
func (t Token) BeginsExpr() bool {
	if t.IsPrefixOp() {
		return true
	}
	switch t.Type {
	case LeftParen, Ident, Number, String, True, False:
		return true
	}
	return false
}
