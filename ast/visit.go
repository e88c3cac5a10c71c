package ast

// VisitFunc is called for each node. It decides whether to descend by
// calling rec; returning true from either stops the walk.
type VisitFunc func(n Node, rec func(Node) bool) (quit bool)

func Walk(n Node, f VisitFunc) {
	walk1(n, f)
}

func walk1(n Node, f VisitFunc) bool {
	if IsNil(n) {
		return false
	}
	rec := func(x Node) bool {
		for _, c := range Children(x) {
			if walk1(c, f) {
				return true
			}
		}
		return false
	}
	return f(n, rec)
}

// ScopedFunc receives the table in effect at n. rec descends into n's
// children, handing them the table n opens, if any.
type ScopedFunc func(scope *Table, n Node, rec func(Node) bool) (quit bool)

// WalkScoped is Walk with the active scope passed explicitly. Entering a
// Module, File, FunctionDef or CodeBlock switches children to that node's
// own table.
func WalkScoped(scope *Table, n Node, f ScopedFunc) {
	walkScoped1(scope, n, f)
}

func walkScoped1(scope *Table, n Node, f ScopedFunc) bool {
	if IsNil(n) {
		return false
	}
	rec := func(x Node) bool {
		inner := scope
		if t := ScopeOf(x); t != nil {
			inner = t
		}
		for _, c := range Children(x) {
			if walkScoped1(inner, c, f) {
				return true
			}
		}
		return false
	}
	return f(scope, n, rec)
}

// Inspect visits every node under n in structural order.
func Inspect(n Node, f func(Node) bool) {
	Walk(n, func(n Node, rec func(Node) bool) bool {
		if !f(n) {
			return false
		}
		return rec(n)
	})
}
