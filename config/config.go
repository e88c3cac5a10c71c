// Package config loads zs.yaml.
package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/smasher164/zs/diag"
	"gopkg.in/yaml.v3"
)

const FileName = "zs.yaml"

// Mismatch policies for binary operands of different types.
const (
	MismatchWiden  = "widen"
	MismatchReject = "reject"
)

type Options struct {
	// ExternRoot is the directory holding bridged module metadata, relative
	// to the config file.
	ExternRoot string `yaml:"extern_root,omitempty"`

	// Namespaces are loaded from ExternRoot up front.
	Namespaces []string `yaml:"namespaces,omitempty"`

	Mismatch string `yaml:"mismatch,omitempty"`

	// MustUseResults enables ReturnValueNotAssigned. Defaults to true.
	MustUseResults *bool `yaml:"must_use_results,omitempty"`

	Trace bool   `yaml:"trace,omitempty"`
	Color string `yaml:"color,omitempty"`

	dir string
}

func Default() *Options {
	o := &Options{}
	o.setDefaults()
	return o
}

func Load(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	o, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	o.dir = filepath.Dir(path)
	return o, nil
}

// Parse parses zs.yaml content. path is used only for error messages.
func Parse(data []byte, path string) (*Options, error) {
	var o Options
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	o.setDefaults()
	if err := o.validate(path); err != nil {
		return nil, err
	}
	return &o, nil
}

// Find searches for zs.yaml from dir upward. It returns "" when there is
// none.
func Find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func (o *Options) setDefaults() {
	if o.Mismatch == "" {
		o.Mismatch = MismatchWiden
	}
	if o.MustUseResults == nil {
		t := true
		o.MustUseResults = &t
	}
	if o.Color == "" {
		o.Color = "auto"
	}
}

func (o *Options) validate(path string) error {
	switch o.Mismatch {
	case MismatchWiden, MismatchReject:
	default:
		return fmt.Errorf("%s: mismatch must be %q or %q, got %q", path, MismatchWiden, MismatchReject, o.Mismatch)
	}
	switch o.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("%s: color must be auto, always or never, got %q", path, o.Color)
	}
	for i, ns := range o.Namespaces {
		if ns == "" {
			return fmt.Errorf("%s: namespaces[%d] is empty", path, i)
		}
	}
	return nil
}

func (o *Options) Widen() bool { return o.Mismatch != MismatchReject }

func (o *Options) MustUse() bool { return o.MustUseResults == nil || *o.MustUseResults }

// ExternDir resolves ExternRoot against the directory of the config file.
func (o *Options) ExternDir() string {
	if o.ExternRoot == "" || filepath.IsAbs(o.ExternRoot) {
		return o.ExternRoot
	}
	return filepath.Join(o.dir, o.ExternRoot)
}

func (o *Options) ColorMode() diag.ColorMode {
	switch o.Color {
	case "always":
		return diag.ColorAlways
	case "never":
		return diag.ColorNever
	}
	return diag.ColorAuto
}

// Logger returns the trace logger. It discards everything unless tracing
// is enabled.
func (o *Options) Logger(w io.Writer) *log.Logger {
	if !o.Trace {
		w = io.Discard
	}
	return log.New(w, "zs: ", 0)
}
