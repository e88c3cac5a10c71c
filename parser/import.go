package parser

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"github.com/smasher164/zs/ast"
	"github.com/smasher164/zs/lexer"
	"golang.org/x/mod/module"
)

// Importer loads source modules from a directory tree. Module A.B lives in
// the directory A/B of root.
type Importer struct {
	Build
	root     fs.FS
	ModCache map[string]*ast.Module
	// Sorted lists loaded modules with dependencies first.
	Sorted []string
	// Foreign lists imported modules with no source directory, left to the
	// bridge.
	Foreign []string
}

func NewImporter(root fs.FS, b Build) *Importer {
	return &Importer{
		Build:    b,
		root:     root,
		ModCache: make(map[string]*ast.Module),
	}
}

// ModulePath maps a dotted module name to its directory.
func ModulePath(name string) string {
	return strings.ReplaceAll(name, ".", "/")
}

// Imports lists the distinct modules imported by m's files.
func Imports(m *ast.Module) []string {
	names := lo.FlatMap(m.Files, func(f *ast.File, _ int) []string {
		return lo.Map(f.Imports, func(imp *ast.Import, _ int) string { return imp.Module.Name })
	})
	return lo.Uniq(names)
}

func (i *Importer) hasSource(name string) bool {
	info, err := fs.Stat(i.root, ModulePath(name))
	return err == nil && info.IsDir()
}

func (i *Importer) importCrawl(name string) (err error) {
	m, err := i.ImportSingle(name)
	if err != nil {
		return err
	}
	for _, dep := range Imports(m) {
		if _, ok := i.ModCache[dep]; ok {
			continue
		}
		if !i.hasSource(dep) {
			if !lo.Contains(i.Foreign, dep) {
				i.Foreign = append(i.Foreign, dep)
			}
			continue
		}
		if err := i.importCrawl(dep); err != nil {
			return err
		}
	}
	i.Sorted = append(i.Sorted, name)
	return nil
}

func (i *Importer) checkCycle() error {
	pos := make(map[string]int)
	for idx, name := range i.Sorted {
		pos[name] = idx
	}
	for _, name := range i.Sorted {
		for _, dep := range Imports(i.ModCache[name]) {
			if at, ok := pos[dep]; ok && pos[name] <= at {
				return fmt.Errorf("import cycle detected: %s -> %s", name, dep)
			}
		}
	}
	return nil
}

// ImportCrawl imports a module and all its source dependencies. Modules
// already imported are skipped; a dependency cycle is an error.
func (i *Importer) ImportCrawl(name string) error {
	if err := i.importCrawl(name); err != nil {
		return err
	}
	return i.checkCycle()
}

// ImportSingle parses the module in the directory for name.
func (i *Importer) ImportSingle(name string) (*ast.Module, error) {
	if m, ok := i.ModCache[name]; ok {
		return m, nil
	}
	dir := ModulePath(name)
	if dir != "." {
		if err := module.CheckFilePath(dir); err != nil {
			return nil, fmt.Errorf("invalid module name %s: %w", name, err)
		}
	}
	entries, err := fs.ReadDir(i.root, dir)
	if err != nil {
		return nil, fmt.Errorf("reading module %s: %w", name, err)
	}
	filenames := lo.FilterMap(entries, func(entry fs.DirEntry, _ int) (string, bool) {
		return path.Join(dir, entry.Name()), !entry.IsDir() && filepath.Ext(entry.Name()) == lexer.Ext
	})
	m, err := i.ParseModule(name, i.root, filenames...)
	if err != nil {
		return nil, err
	}
	i.ModCache[name] = m
	return m, nil
}

// Modules returns the loaded modules in dependency order.
func (i *Importer) Modules() []*ast.Module {
	return lo.Map(i.Sorted, func(name string, _ int) *ast.Module { return i.ModCache[name] })
}
