// Command zsc resolves and checks a zs program.
//
//	zsc [options] <dir> [module]
//
// dir holds one directory per source module. The root module defaults to
// Main. Options are read from the nearest zs.yaml at or above dir.
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/smasher164/zs/ast"
	"github.com/smasher164/zs/check"
	"github.com/smasher164/zs/config"
)

func main() {
	configPath := flag.String("config", "", "path to zs.yaml (default: search upward from dir)")
	trace := flag.Bool("trace", false, "log every pass to stderr")
	color := flag.String("color", "", "color diagnostics: auto, always or never")
	dump := flag.Bool("dump", false, "print the bindings of the root module")
	flag.Parse()

	dir := flag.Arg(0)
	if dir == "" || flag.NArg() > 2 {
		fmt.Fprintln(os.Stderr, "usage: zsc [options] <dir> [module]")
		flag.PrintDefaults()
		os.Exit(2)
	}
	root := "Main"
	if flag.NArg() == 2 {
		root = flag.Arg(1)
	}

	opts, err := loadOptions(*configPath, dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *trace {
		opts.Trace = true
	}
	if *color != "" {
		opts.Color = *color
	}

	var ext fs.FS
	if d := opts.ExternDir(); d != "" {
		ext = os.DirFS(d)
	}
	c, err := check.Run(os.DirFS(dir), ext, root, opts, opts.Logger(os.Stderr))
	if err != nil {
		fmt.Fprintln(os.Stderr, "zsc:", err)
		os.Exit(1)
	}
	if *dump {
		mods := c.Modules()
		fmt.Print(ast.Bindings(mods[len(mods)-1]))
	}
	if c.Diags.Len() > 0 {
		c.Diags.Fprint(os.Stderr, opts.ColorMode())
		os.Exit(1)
	}
}

func loadOptions(path, dir string) (*config.Options, error) {
	if path == "" {
		found, err := config.Find(dir)
		if err != nil {
			return nil, err
		}
		if found == "" {
			return config.Default(), nil
		}
		path = found
	}
	return config.Load(path)
}
