// Package check drives the resolution passes over a build and runs the
// passes that only validate: overload selection and rule checking.
package check

import (
	"fmt"
	"io/fs"
	"log"

	"github.com/smasher164/zs/ast"
	"github.com/smasher164/zs/config"
	"github.com/smasher164/zs/diag"
	"github.com/smasher164/zs/extern"
	"github.com/smasher164/zs/names"
	"github.com/smasher164/zs/parser"
	"github.com/smasher164/zs/types"
)

// Checker runs every pass over the modules of one build, dependencies
// first.
type Checker struct {
	Tree  *ast.Tree
	Diags *diag.List
	// MustUse enables ReturnValueNotAssigned.
	MustUse bool
	Log     *log.Logger // may be nil

	importer *parser.Importer
	bridge   *extern.Bridge
	names    *names.Resolver
	types    *types.Resolver
	reported map[ast.Node]bool
}

// NewChecker builds a checker for the sources in src and the bridged module
// metadata in ext, which may be nil.
func NewChecker(src, ext fs.FS, opts *config.Options, logger *log.Logger) *Checker {
	tree := ast.NewTree()
	diags := new(diag.List)
	c := &Checker{
		Tree:     tree,
		Diags:    diags,
		MustUse:  opts.MustUse(),
		Log:      logger,
		importer: parser.NewImporter(src, parser.Build{Tree: tree, Diags: diags, Trace: traceParser(opts, logger)}),
		reported: make(map[ast.Node]bool),
	}
	if ext != nil {
		c.bridge = extern.NewBridge(tree, ext)
	}
	c.names = &names.Resolver{Tree: tree, Diags: diags, Loader: c, Log: logger}
	c.types = &types.Resolver{Tree: tree, Diags: diags, Names: c.names, Widen: opts.Widen(), Log: logger}
	return c
}

// traceParser returns the parser trace logger. Parser traces are verbose and
// only produced when tracing is on.
func traceParser(opts *config.Options, logger *log.Logger) *log.Logger {
	if !opts.Trace {
		return nil
	}
	return logger
}

func (c *Checker) tracef(format string, args ...any) {
	if c.Log != nil {
		c.Log.Printf("check: "+format, args...)
	}
}

// LoadModule finds an imported module among the parsed sources, then among
// the bridged modules.
func (c *Checker) LoadModule(name string) (*ast.Module, error) {
	if m, ok := c.importer.ModCache[name]; ok {
		return m, nil
	}
	if c.bridge == nil {
		return nil, nil
	}
	return c.bridge.LoadExternal(name)
}

// Load parses root and its source dependencies and loads the bridged
// modules they import, plus every module of the given namespaces.
func (c *Checker) Load(root string, namespaces ...string) error {
	if err := c.importer.ImportCrawl(root); err != nil {
		return err
	}
	if c.bridge == nil {
		return nil
	}
	for _, ns := range namespaces {
		if _, err := c.bridge.LoadAll(ns); err != nil {
			return err
		}
	}
	for _, name := range c.importer.Foreign {
		if _, err := c.bridge.LoadExternal(name); err != nil {
			return fmt.Errorf("loading bridged module: %w", err)
		}
	}
	return nil
}

// Modules lists the source modules in the order they are checked.
func (c *Checker) Modules() []*ast.Module {
	return c.importer.Modules()
}

// ProcessBuild runs every pass over each loaded module. Problems in the
// source are reported to Diags.
func (c *Checker) ProcessBuild() {
	for _, m := range c.importer.Modules() {
		c.ProcessModule(m)
	}
}

func (c *Checker) ProcessModule(m *ast.Module) {
	c.tracef("pass 1 %s", m.Name)
	c.names.Resolve(m)
	c.tracef("pass 2 %s", m.Name)
	c.types.Resolve(m)
	insts := c.types.TakeInstances()
	c.tracef("pass 3 %s", m.Name)
	for _, f := range m.Files {
		c.Overloads(f)
	}
	for _, n := range insts {
		c.Overloads(n)
	}
	c.tracef("pass 4 %s", m.Name)
	for _, f := range m.Files {
		c.Rules(f.Table, f)
	}
	for _, n := range insts {
		c.Rules(instanceScope(c.Tree, n), n)
	}
}

// ResolveTypes reruns type resolution over m.
func (c *Checker) ResolveTypes(m *ast.Module) {
	c.types.Resolve(m)
}

func instanceScope(t *ast.Tree, n ast.Node) *ast.Table {
	if fn, ok := n.(*ast.FunctionDef); ok {
		return fn.Table.Parent
	}
	return t.Universe()
}

// Run loads root and checks it with the options found in opts.
func Run(src, ext fs.FS, root string, opts *config.Options, logger *log.Logger) (*Checker, error) {
	c := NewChecker(src, ext, opts, logger)
	if err := c.Load(root, opts.Namespaces...); err != nil {
		return c, err
	}
	c.ProcessBuild()
	return c, nil
}
