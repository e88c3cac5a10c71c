// Package extern turns metadata of precompiled modules into the same nodes
// and symbols that source declarations produce.
//
// Metadata is stored as one YAML document per module. Module Sys.Io is read
// from Sys/Io.yaml:
//
//	module: Sys.Io
//	types:
//	  - name: Handle
//	    fields:
//	      - {name: Fd, type: U32}
//	functions:
//	  - name: Print
//	    params:
//	      - {name: S, type: Str}
//	  - name: Open
//	    params:
//	      - {name: Path, type: Str}
//	    return: Handle
package extern

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/samber/lo"
	"github.com/smasher164/zs/ast"
	"github.com/smasher164/zs/lexer"
	"golang.org/x/mod/module"
	"gopkg.in/yaml.v3"
)

const Ext = ".yaml"

type moduleMeta struct {
	Module    string         `yaml:"module"`
	Types     []typeMeta     `yaml:"types"`
	Functions []functionMeta `yaml:"functions"`
}

type typeMeta struct {
	Name   string      `yaml:"name"`
	Fields []valueMeta `yaml:"fields"`
}

type functionMeta struct {
	Name      string      `yaml:"name"`
	Params    []valueMeta `yaml:"params"`
	Return    string      `yaml:"return,omitempty"`
	Intrinsic bool        `yaml:"intrinsic,omitempty"`
}

type valueMeta struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Bridge loads bridged modules from fsys. Loaded modules are cached by
// canonical name.
type Bridge struct {
	tree  *ast.Tree
	fsys  fs.FS
	cache map[string]*ast.Module
}

func NewBridge(t *ast.Tree, fsys fs.FS) *Bridge {
	return &Bridge{tree: t, fsys: fsys, cache: make(map[string]*ast.Module)}
}

func metaPath(name string) string {
	return strings.ReplaceAll(name, ".", "/") + Ext
}

// LoadExternal loads one module. It returns nil and no error when there is no
// metadata for name.
func (b *Bridge) LoadExternal(name string) (*ast.Module, error) {
	key := ast.Canonical(name)
	if m, ok := b.cache[key]; ok {
		return m, nil
	}
	p := metaPath(name)
	if err := module.CheckFilePath(p); err != nil {
		return nil, fmt.Errorf("invalid module name %s: %w", name, err)
	}
	data, err := fs.ReadFile(b.fsys, p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}
	var meta moduleMeta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", p, err)
	}
	if meta.Module == "" {
		meta.Module = name
	}
	if ast.Canonical(meta.Module) != key {
		return nil, fmt.Errorf("%s: module name mismatch: %s != %s", p, meta.Module, name)
	}
	m, err := b.build(p, &meta)
	if err != nil {
		return nil, err
	}
	b.cache[key] = m
	return m, nil
}

// LoadNamespace loads the modules directly inside namespace.
func (b *Bridge) LoadNamespace(namespace string) ([]*ast.Module, error) {
	dir := strings.ReplaceAll(namespace, ".", "/")
	entries, err := fs.ReadDir(b.fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading namespace %s: %w", namespace, err)
	}
	names := lo.FilterMap(entries, func(e fs.DirEntry, _ int) (string, bool) {
		return namespace + "." + strings.TrimSuffix(e.Name(), Ext), !e.IsDir() && path.Ext(e.Name()) == Ext
	})
	return b.loadAll(names)
}

// LoadAll loads every module below rootNamespace, nested namespaces
// included.
func (b *Bridge) LoadAll(rootNamespace string) ([]*ast.Module, error) {
	root := strings.ReplaceAll(rootNamespace, ".", "/")
	var names []string
	err := fs.WalkDir(b.fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != Ext {
			return nil
		}
		names = append(names, strings.ReplaceAll(strings.TrimSuffix(p, Ext), "/", "."))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading namespace %s: %w", rootNamespace, err)
	}
	return b.loadAll(names)
}

func (b *Bridge) loadAll(names []string) ([]*ast.Module, error) {
	mods := make([]*ast.Module, 0, len(names))
	for _, name := range names {
		m, err := b.LoadExternal(name)
		if err != nil {
			return nil, err
		}
		mods = append(mods, m)
	}
	return mods, nil
}

// build creates the module with every definition registered and every type
// reference already bound.
func (b *Bridge) build(file string, meta *moduleMeta) (*ast.Module, error) {
	modTab := ast.NewTable(b.tree.Universe())
	fileTab := ast.NewTable(modTab)
	types := make(map[string]*ast.ExternalType)
	var body []ast.Node
	var pending []*ast.TypeRef
	ref := func(name string) *ast.TypeRef {
		if name == "" || ast.Canonical(name) == ast.Void.String() {
			return nil
		}
		tr := ast.New(b.tree, lexer.Span{}, &ast.TypeRef{Name: ast.NewIdentifier(name)})
		pending = append(pending, tr)
		return tr
	}

	for _, tm := range meta.Types {
		fields := lo.Map(tm.Fields, func(f valueMeta, _ int) *ast.Field {
			return ast.New(b.tree, lexer.Span{}, &ast.Field{Name: ast.NewIdentifier(f.Name), Type: ref(f.Type)})
		})
		et := ast.New(b.tree, lexer.Span{}, &ast.ExternalType{Name: ast.NewIdentifier(tm.Name), Fields: fields})
		et.Name.Namespace = meta.Module
		if _, err := modTab.Add(et); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		types[et.Name.Canonical] = et
		body = append(body, et)
	}

	for _, fm := range meta.Functions {
		params := lo.Map(fm.Params, func(p valueMeta, _ int) *ast.Parameter {
			return ast.New(b.tree, lexer.Span{}, &ast.Parameter{Name: ast.NewIdentifier(p.Name), Type: ref(p.Type)})
		})
		kind := ast.ExternalFunction
		if fm.Intrinsic {
			kind = ast.IntrinsicFunction
		}
		fn := ast.New(b.tree, lexer.Span{}, &ast.FunctionDef{
			Name:     ast.NewIdentifier(fm.Name),
			Kind:     kind,
			Locality: ast.Imported,
			Type:     ast.New(b.tree, lexer.Span{}, &ast.FunctionType{Params: params, Return: ref(fm.Return)}),
			Table:    ast.NewTable(fileTab),
		})
		fn.Name.Namespace = meta.Module
		for _, p := range params {
			if _, err := fn.Table.Add(p); err != nil {
				return nil, fmt.Errorf("%s: %s: %w", file, fm.Name, err)
			}
		}
		if _, err := modTab.Add(fn); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		body = append(body, fn)
	}

	for _, tr := range pending {
		if in, ok := ast.IntrinsicByName(tr.Name.Canonical); ok {
			tr.Def = b.tree.Intrinsic(in)
			tr.Symbol = b.tree.Universe().FindLocal(tr.Name.Canonical, ast.KindType)
			continue
		}
		et, ok := types[tr.Name.Canonical]
		if !ok {
			return nil, fmt.Errorf("%s: unknown type %s", file, tr.Name.Name)
		}
		tr.Def = et
		tr.Symbol = modTab.FindLocal(tr.Name.Canonical, ast.KindType)
		tr.Symbol.AddReference(tr)
	}

	f := ast.New(b.tree, lexer.Span{}, &ast.File{Name: file, Body: body, Table: fileTab})
	m := ast.New(b.tree, lexer.Span{}, &ast.Module{
		Name:     ast.NewIdentifier(meta.Module),
		Locality: ast.Imported,
		Files:    []*ast.File{f},
		Table:    modTab,
	})
	return m, nil
}
