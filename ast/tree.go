package ast

import (
	"fmt"
	"reflect"

	"github.com/smasher164/zs/lexer"
)

// NodeID addresses a node in its Tree. The zero value means no node.
type NodeID int32

const NoNode NodeID = 0

type header struct {
	id     NodeID
	parent NodeID
	span   lexer.Span
}

func (h *header) ID() NodeID       { return h.id }
func (h *header) Parent() NodeID   { return h.parent }
func (h *header) Span() lexer.Span { return h.span }
func (h *header) base() *header    { return h }

// Fault is the panic value for violated structural invariants. A Fault is a
// defect in whoever built the tree, not a problem in user source.
type Fault struct {
	Msg string
}

func (f Fault) Error() string { return "internal error: " + f.Msg }

func Assert(cond bool, format string, args ...any) {
	if !cond {
		panic(Fault{Msg: fmt.Sprintf(format, args...)})
	}
}

// IsNil reports whether n is nil or a typed nil pointer.
func IsNil(n Node) bool {
	if n == nil {
		return true
	}
	v := reflect.ValueOf(n)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// Tree is the arena owning every node of a build. Parents are stored as
// NodeIDs into the same arena.
type Tree struct {
	nodes    []Node
	universe *Table
	builtins map[Intrinsic]*IntrinsicType
}

func NewTree() *Tree {
	return &Tree{nodes: []Node{nil}}
}

// New registers n in t and adopts its current children.
func New[T Node](t *Tree, span lexer.Span, n T) T {
	h := n.base()
	Assert(h.id == NoNode, "node %T registered twice", n)
	h.id = NodeID(len(t.nodes))
	h.span = span
	t.nodes = append(t.nodes, n)
	for _, c := range Children(n) {
		t.Adopt(n, c)
	}
	return n
}

// Adopt records parent as child's parent. A parent is assigned once.
func (t *Tree) Adopt(parent, child Node) {
	if IsNil(child) {
		return
	}
	h := child.base()
	Assert(h.id != NoNode, "adopting unregistered %T", child)
	Assert(h.parent == NoNode || h.parent == parent.ID(), "%T #%d already has parent #%d", child, h.id, h.parent)
	Assert(child.ID() != parent.ID(), "%T #%d cannot be its own parent", child, h.id)
	h.parent = parent.ID()
}

func (t *Tree) Node(id NodeID) Node {
	if id <= NoNode || int(id) >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}

func (t *Tree) Len() int { return len(t.nodes) - 1 }

func (t *Tree) ParentOf(n Node) Node {
	return t.Node(n.Parent())
}

// FileOf returns the File enclosing n, or nil for nodes outside any file.
func (t *Tree) FileOf(n Node) *File {
	for p := n; !IsNil(p); p = t.ParentOf(p) {
		if f, ok := p.(*File); ok {
			return f
		}
	}
	return nil
}

func (t *Tree) ModuleOf(n Node) *Module {
	for p := n; !IsNil(p); p = t.ParentOf(p) {
		if m, ok := p.(*Module); ok {
			return m
		}
	}
	return nil
}
