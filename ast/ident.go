package ast

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Identifier is a name as written together with its lookup form.
//
// Canonical is the case-normalized name used as a symbol table key. Template
// definitions carry their parameter count in Arity and are keyed "Name%N";
// concrete instantiations carry the keys of their arguments in Args and are
// keyed "Name;A;B".
type Identifier struct {
	Name      string
	Canonical string
	Namespace string
	Arity     int
	Args      []string
}

func NewIdentifier(name string) Identifier {
	return Identifier{Name: name, Canonical: Canonical(name)}
}

// Canonical normalizes each dotted segment of name: the first rune is kept,
// the remaining runes are lower-cased and underscores are dropped.
func Canonical(name string) string {
	if !strings.Contains(name, ".") {
		return canonicalPart(name)
	}
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = canonicalPart(parts[i])
	}
	return strings.Join(parts, ".")
}

func canonicalPart(s string) string {
	if s == "" || s == "_" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	var sb strings.Builder
	sb.Grow(len(s))
	sb.WriteRune(r)
	for _, c := range s[size:] {
		if c == '_' {
			continue
		}
		sb.WriteRune(unicode.ToLower(c))
	}
	return sb.String()
}

// Local is the last dotted segment as written.
func (id Identifier) Local() string {
	if i := strings.LastIndexByte(id.Name, '.'); i >= 0 {
		return id.Name[i+1:]
	}
	return id.Name
}

// Qualifier is everything before the last dot, as written.
func (id Identifier) Qualifier() string {
	if i := strings.LastIndexByte(id.Name, '.'); i >= 0 {
		return id.Name[:i]
	}
	return ""
}

func (id Identifier) IsDotted() bool {
	return strings.IndexByte(id.Name, '.') >= 0
}

func (id Identifier) IsDiscard() bool {
	return id.Name == "_"
}

// External is the namespace-qualified name.
func (id Identifier) External() string {
	if id.Namespace == "" {
		return id.Name
	}
	return id.Namespace + "." + id.Name
}

// Key is the symbol table key.
func (id Identifier) Key() string {
	switch {
	case id.Arity > 0:
		return TemplateKey(id.Canonical, id.Arity)
	case len(id.Args) > 0:
		return InstanceKey(id.Canonical, id.Args)
	}
	return id.Canonical
}

func (id Identifier) String() string {
	return id.Key()
}

func TemplateKey(canonical string, arity int) string {
	return canonical + "%" + strconv.Itoa(arity)
}

func InstanceKey(canonical string, args []string) string {
	var sb strings.Builder
	sb.WriteString(canonical)
	for _, a := range args {
		sb.WriteByte(';')
		if strings.IndexByte(a, ';') >= 0 {
			sb.WriteByte('(')
			sb.WriteString(a)
			sb.WriteByte(')')
		} else {
			sb.WriteString(a)
		}
	}
	return sb.String()
}

// Segments splits a canonical dotted name.
func Segments(name string) []string {
	return strings.Split(name, ".")
}
