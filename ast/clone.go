package ast

import "fmt"

// Clone deep-copies the subtree at n into t. The copy gets fresh node IDs,
// fresh symbol tables parented on scope, and empty binding slots. Type
// references naming a key of subst are replaced by a resolved copy of the
// substitute.
func Clone[T Node](t *Tree, n T, subst map[string]*TypeRef, scope *Table) T {
	c := cloner{t: t, subst: subst}
	return c.node(n, scope).(T)
}

// CloneTypeRef copies tr together with its bindings.
func CloneTypeRef(t *Tree, tr *TypeRef) *TypeRef {
	if tr == nil {
		return nil
	}
	args := make([]*TypeRef, len(tr.Args))
	for i, a := range tr.Args {
		args[i] = CloneTypeRef(t, a)
	}
	return New(t, tr.Span(), &TypeRef{
		Name:       tr.Name,
		Args:       args,
		Optional:   tr.Optional,
		ErrorUnion: tr.ErrorUnion,
		Def:        tr.Def,
		Symbol:     tr.Symbol,
	})
}

type cloner struct {
	t     *Tree
	subst map[string]*TypeRef
}

func (c *cloner) typeRef(tr *TypeRef) *TypeRef {
	if tr == nil {
		return nil
	}
	if s, ok := c.subst[tr.Name.Canonical]; ok && len(tr.Args) == 0 {
		out := CloneTypeRef(c.t, s)
		out.Optional = out.Optional || tr.Optional
		out.ErrorUnion = out.ErrorUnion || tr.ErrorUnion
		return out
	}
	args := make([]*TypeRef, len(tr.Args))
	for i, a := range tr.Args {
		args[i] = c.typeRef(a)
	}
	return New(c.t, tr.Span(), &TypeRef{
		Name:       tr.Name,
		Args:       args,
		Optional:   tr.Optional,
		ErrorUnion: tr.ErrorUnion,
	})
}

func (c *cloner) expr(e Expr, scope *Table) Expr {
	if IsNil(e) {
		return nil
	}
	return c.node(e, scope).(Expr)
}

func (c *cloner) block(b *CodeBlock, scope *Table) *CodeBlock {
	if b == nil {
		return nil
	}
	tab := NewTable(scope)
	stmts := make([]Node, len(b.Stmts))
	for i, s := range b.Stmts {
		stmts[i] = c.node(s, tab)
	}
	return New(c.t, b.Span(), &CodeBlock{Stmts: stmts, Table: tab})
}

func (c *cloner) fields(fs []*Field) []*Field {
	out := make([]*Field, len(fs))
	for i, f := range fs {
		out[i] = New(c.t, f.Span(), &Field{Name: f.Name, Type: c.typeRef(f.Type)})
	}
	return out
}

func (c *cloner) signature(ft *FunctionType) *FunctionType {
	if ft == nil {
		return nil
	}
	params := make([]*Parameter, len(ft.Params))
	for i, p := range ft.Params {
		params[i] = New(c.t, p.Span(), &Parameter{Name: p.Name, Type: c.typeRef(p.Type)})
	}
	return New(c.t, ft.Span(), &FunctionType{Params: params, Return: c.typeRef(ft.Return)})
}

func (c *cloner) node(n Node, scope *Table) Node {
	switch n := n.(type) {
	case *FunctionDef:
		tab := NewTable(scope)
		return New(c.t, n.Span(), &FunctionDef{
			Name:       n.Name,
			Kind:       n.Kind,
			Locality:   n.Locality,
			TypeParams: append([]Identifier(nil), n.TypeParams...),
			Type:       c.signature(n.Type),
			Body:       c.block(n.Body, tab),
			Table:      tab,
		})
	case *FunctionType:
		return c.signature(n)
	case *StructDef:
		return New(c.t, n.Span(), &StructDef{
			Name:       n.Name,
			Locality:   n.Locality,
			TypeParams: append([]Identifier(nil), n.TypeParams...),
			Base:       c.typeRef(n.Base),
			Fields:     c.fields(n.Fields),
		})
	case *Field:
		return New(c.t, n.Span(), &Field{Name: n.Name, Type: c.typeRef(n.Type)})
	case *TypeRef:
		return c.typeRef(n)
	case *VariableRef:
		return New(c.t, n.Span(), &VariableRef{
			Name:       n.Name,
			Annotation: c.typeRef(n.Annotation),
		})
	case *Literal:
		return New(c.t, n.Span(), &Literal{Kind: n.Kind, Raw: n.Raw, Negative: n.Negative})
	case *Expression:
		return New(c.t, n.Span(), &Expression{
			Op:    n.Op,
			Left:  c.expr(n.Left, scope),
			Right: c.expr(n.Right, scope),
		})
	case *FunctionRef:
		targs := make([]*TypeRef, len(n.TypeArgs))
		for i, a := range n.TypeArgs {
			targs[i] = c.typeRef(a)
		}
		args := make([]Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = c.expr(a, scope)
		}
		return New(c.t, n.Span(), &FunctionRef{
			Name:     n.Name,
			TypeArgs: targs,
			Args:     args,
			MustUse:  n.MustUse,
		})
	case *CodeBlock:
		return c.block(n, scope)
	case *Assignment:
		return New(c.t, n.Span(), &Assignment{
			Target: c.node(n.Target, scope).(*VariableRef),
			Value:  c.expr(n.Value, scope),
		})
	case *ExprStmt:
		return New(c.t, n.Span(), &ExprStmt{X: c.expr(n.X, scope)})
	case *Return:
		return New(c.t, n.Span(), &Return{Value: c.expr(n.Value, scope)})
	case *If:
		return New(c.t, n.Span(), &If{
			Cond: c.expr(n.Cond, scope),
			Then: c.block(n.Then, scope),
			Else: c.block(n.Else, scope),
		})
	}
	panic(Fault{Msg: fmt.Sprintf("cannot clone %T", n)})
}
