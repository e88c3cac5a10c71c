package lexer

import (
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strconv"
	"unicode"

	"github.com/smasher164/xid"
)

// Ext is the file extension of zs source files.
const Ext = ".zs"

type Lexer struct {
	src     []rune
	i       int // index of ch in src
	ch      rune
	line    int
	col     int
	last    Pos // position of the most recently consumed rune
	prev    Token
	started bool
	pending []Token
	indents []int
	parens  int
}

const eof = -1

func (l *Lexer) pos() Pos {
	return Pos{Offset: l.i, Line: l.line, Column: l.col}
}

func (l *Lexer) spanFrom(start Pos) Span {
	if l.last.Offset < start.Offset {
		return Span{Start: start, End: start}
	}
	return Span{Start: start, End: l.last}
}

func (l *Lexer) text(start Pos) string {
	return string(l.src[start.Offset:l.i])
}

func (l *Lexer) next() {
	if l.ch == eof {
		return
	}
	l.last = l.pos()
	if l.ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	l.i++
	if l.i < len(l.src) {
		l.ch = l.src[l.i]
	} else {
		l.ch = eof
	}
}

func (l *Lexer) peek() rune {
	if l.i+1 < len(l.src) {
		return l.src[l.i+1]
	}
	return eof
}

func (l *Lexer) until(r rune) {
	for l.ch != r && l.ch != eof {
		l.next()
	}
}

func (l *Lexer) lexWS() Token {
	start := l.pos()
	for l.ch != eof && unicode.IsSpace(l.ch) {
		l.next()
	}
	return Token{Type: Whitespace, Span: l.spanFrom(start), Data: l.text(start)}
}

func (l *Lexer) lexLineComment() Token {
	start := l.pos()
	l.until('\n')
	return Token{Type: SingleLineComment, Span: l.spanFrom(start), Data: l.text(start)}
}

func isLetter(ch rune) bool {
	return ch == '_' || ch >= 0 && xid.Start(ch)
}

func (l *Lexer) lexIdentOrKeyword() Token {
	start := l.pos()
	l.next()
	for l.ch >= 0 && xid.Continue(l.ch) {
		l.next()
	}
	ident := l.text(start)
	if ttyp, ok := Keywords[ident]; ok {
		return Token{Type: ttyp, Span: l.spanFrom(start), Data: ident}
	}
	return Token{Type: Ident, Span: l.spanFrom(start), Data: ident}
}

func isDecimal(ch rune) bool { return '0' <= ch && ch <= '9' }
func isHex(ch rune) bool {
	return '0' <= ch && ch <= '9' || 'a' <= ch && ch <= 'f' || 'A' <= ch && ch <= 'F'
}
func isValidDigit(base int, ch rune) bool {
	switch base {
	case 2, 8, 10:
		return ch >= '0' && ch < rune('0'+base)
	default:
		return isHex(ch)
	}
}

// lexDigits consumes digits and '_' separators. The first problem found is
// recorded in err.
func (l *Lexer) lexDigits(err *string, base int) (digitCount int) {
	underscoreOK := false
	for {
		switch {
		case l.ch == '_':
			if !underscoreOK && *err == "" {
				*err = "'_' must separate successive digits"
			}
			underscoreOK = false
		case base != 16 && (l.ch == 'e' || l.ch == 'E'):
			return digitCount
		case isHex(l.ch):
			if !isValidDigit(base, l.ch) && *err == "" {
				*err = fmt.Sprintf("%q is not a valid digit in base %d", l.ch, base)
			}
			underscoreOK = true
			digitCount++
		default:
			if !underscoreOK && digitCount > 0 && *err == "" {
				*err = "'_' must separate successive digits"
			}
			return digitCount
		}
		l.next()
	}
}

func (l *Lexer) lexNumber() Token {
	start := l.pos()
	base := 10
	var msg string
	if l.ch == '0' {
		switch l.peek() {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 10 {
			l.next()
			l.next()
		}
	}
	if l.lexDigits(&msg, base) == 0 && msg == "" {
		msg = "no digits in number"
	}
	if l.ch == '.' && isDecimal(l.peek()) {
		if base != 10 && msg == "" {
			msg = "only decimal numbers can have a decimal point"
		}
		l.next()
		l.lexDigits(&msg, 10)
	}
	if base == 10 && (l.ch == 'e' || l.ch == 'E') {
		l.next()
		if l.ch == '+' || l.ch == '-' {
			l.next()
		}
		if l.lexDigits(&msg, 10) == 0 && msg == "" {
			msg = "no digits in exponent"
		}
	}
	if l.ch >= 0 && xid.Continue(l.ch) && msg == "" {
		msg = fmt.Sprintf("unexpected %q in number", l.ch)
		for l.ch >= 0 && xid.Continue(l.ch) {
			l.next()
		}
	}
	if msg != "" {
		return Token{Type: Illegal, Span: l.spanFrom(start), Data: msg}
	}
	return Token{Type: Number, Span: l.spanFrom(start), Data: l.text(start)}
}

func (l *Lexer) lexEscape() string {
	var n int
	var base, max uint32
	switch l.ch {
	case 'a', 'b', 'f', 'n', 'r', 't', 'v', '\\', '"':
		l.next()
		return ""
	case 'x':
		l.next()
		n, base, max = 2, 16, 255
	case 'u':
		l.next()
		n, base, max = 4, 16, unicode.MaxRune
	case 'U':
		l.next()
		n, base, max = 8, 16, unicode.MaxRune
	default:
		if l.ch == eof {
			return "escape sequence not terminated"
		}
		l.next()
		return "unknown escape sequence"
	}

	var x uint32
	for n > 0 {
		d, err := strconv.ParseUint(string(l.ch), int(base), 8)
		if err != nil {
			if l.ch == eof {
				return "escape sequence not terminated"
			}
			msg := fmt.Sprintf("illegal character %#U in escape sequence", l.ch)
			l.next()
			return msg
		}
		x = x*base + uint32(d)
		l.next()
		n--
	}

	if x > max || 0xD800 <= x && x < 0xE000 {
		return "escape sequence is invalid Unicode code point"
	}
	return ""
}

func (l *Lexer) lexString() Token {
	start := l.pos()
	var msg string
	l.next()
	for l.ch != '"' {
		switch l.ch {
		case eof, '\n':
			return Token{Type: Illegal, Span: l.spanFrom(start), Data: "unterminated string"}
		case '\\':
			l.next()
			if m := l.lexEscape(); m != "" && msg == "" {
				msg = m
			}
		default:
			l.next()
		}
	}
	l.next()
	if msg != "" {
		return Token{Type: Illegal, Span: l.spanFrom(start), Data: msg}
	}
	return Token{Type: String, Span: l.spanFrom(start), Data: l.text(start)}
}

// NextToken returns the next raw token, trivia included.
func (l *Lexer) NextToken() Token {
	start := l.pos()
	switch {
	case l.ch == eof:
		return Token{Type: EOF, Span: Span{Start: start, End: start}}
	case unicode.IsSpace(l.ch):
		return l.lexWS()
	case l.ch == '#':
		return l.lexLineComment()
	case isLetter(l.ch):
		return l.lexIdentOrKeyword()
	case isDecimal(l.ch):
		return l.lexNumber()
	case l.ch == '"':
		return l.lexString()
	}
	if ttyp, ok := DoubleCharTokens[[2]rune{l.ch, l.peek()}]; ok {
		l.next()
		l.next()
		return Token{Type: ttyp, Span: l.spanFrom(start)}
	}
	if ttyp, ok := SingleCharTokens[l.ch]; ok {
		l.next()
		return Token{Type: ttyp, Span: l.spanFrom(start)}
	}
	ch := l.ch
	l.next()
	return Token{Type: Illegal, Span: l.spanFrom(start), Data: fmt.Sprintf("unexpected character %q", ch)}
}

// Next returns the next significant token. Line structure is reported with
// Newline, Indent and Dedent tokens; line breaks inside parentheses are
// ignored. The indentation of the first token is the file's base level.
func (l *Lexer) Next() Token {
	if len(l.pending) > 0 {
		t := l.pending[0]
		l.pending = l.pending[1:]
		return t
	}
	if l.started && l.prev.Type == EOF {
		return l.prev
	}
	var trivia []Token
	t := l.NextToken()
	for t.IsTrivia() {
		trivia = append(trivia, t)
		t = l.NextToken()
	}
	t.LeadingTrivia = trivia
	if !l.started {
		l.started = true
		l.indents = []int{t.Span.Start.Column}
		l.emit(t)
		return t
	}
	if l.parens == 0 && (t.Type == EOF || l.prev.OnDifferentLines(t)) {
		l.layout(t)
		t, l.pending = l.pending[0], l.pending[1:]
		return t
	}
	l.emit(t)
	return t
}

func (l *Lexer) emit(t Token) {
	switch t.Type {
	case LeftParen:
		l.parens++
	case RightParen:
		if l.parens > 0 {
			l.parens--
		}
	}
	l.prev = t
}

// layout queues the tokens that close the previous line and open the line
// starting at t, followed by t itself.
func (l *Lexer) layout(t Token) {
	at := Span{Start: t.Span.Start, End: t.Span.Start}
	l.pending = append(l.pending, Token{Type: Newline, Span: Span{Start: l.prev.Span.End, End: l.prev.Span.End}})
	col := t.Span.Start.Column
	if t.Type == EOF {
		col = l.indents[0]
	}
	top := l.indents[len(l.indents)-1]
	switch {
	case col > top:
		l.indents = append(l.indents, col)
		l.pending = append(l.pending, Token{Type: Indent, Span: at})
	case col < top:
		for len(l.indents) > 1 && col < l.indents[len(l.indents)-1] {
			l.indents = l.indents[:len(l.indents)-1]
			l.pending = append(l.pending, Token{Type: Dedent, Span: at})
		}
		if col != l.indents[len(l.indents)-1] {
			l.pending = append(l.pending, Token{Type: Illegal, Span: at, Data: "inconsistent indentation"})
		}
	}
	l.emit(t)
	l.pending = append(l.pending, t)
}

// NewLexerString lexes src directly.
func NewLexerString(src string) *Lexer {
	l := &Lexer{src: []rune(src), line: 1, col: 1}
	l.ch = eof
	if len(l.src) > 0 {
		l.ch = l.src[0]
	}
	return l
}

func NewLexer(fsys fs.FS, filename string) (*Lexer, error) {
	if filepath.Ext(filename) != Ext {
		return nil, fmt.Errorf("invalid file extension %q, expected %q", filepath.Ext(filename), Ext)
	}
	f, err := fsys.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	src, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	return NewLexerString(string(src)), nil
}
