package ast

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sanity-io/litter"
)

var dumpOptions = litter.Options{
	HidePrivateFields: true,
	HideZeroValues:    true,
	StripPackageNames: true,
	// bindings point across the tree
	FieldExclusions: regexp.MustCompile(`^(Def|Symbol|Table|Template|Member|Target)$`),
}

// Dump renders the subtree at n without its binding slots.
func Dump(n Node) string {
	return dumpOptions.Sdump(n)
}

// Bindings lists every reference under n with the definition it is bound to.
func Bindings(n Node) string {
	var sb strings.Builder
	Inspect(n, func(n Node) bool {
		var name string
		var def Node
		switch n := n.(type) {
		case *VariableRef:
			name, def = n.Name.Name, n.Def
		case *FunctionRef:
			name, def = n.Name.Name, n.Def
		case *TypeRef:
			name = TypeRefString(n)
			if !IsNil(n.Def) {
				def = n.Def
			}
		default:
			return true
		}
		pos := n.Span().Start
		if IsNil(def) {
			fmt.Fprintf(&sb, "%d:%d %s -> <unbound>\n", pos.Line, pos.Column, name)
		} else {
			fmt.Fprintf(&sb, "%d:%d %s -> %T #%d\n", pos.Line, pos.Column, name, def, def.ID())
		}
		return true
	})
	return sb.String()
}
