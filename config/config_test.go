package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kr/pretty"
	"github.com/smasher164/zs/diag"
)

func TestDefaults(t *testing.T) {
	o := Default()
	if !o.Widen() {
		t.Errorf("default mismatch policy is %q, want widen", o.Mismatch)
	}
	if !o.MustUse() {
		t.Errorf("must_use_results should default to true")
	}
	if o.ColorMode() != diag.ColorAuto {
		t.Errorf("color = %q, want auto", o.Color)
	}
	parsed, err := Parse(nil, "empty.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Diff(o, parsed); len(diff) > 0 {
		t.Errorf("empty config differs from defaults: %v", diff)
	}
}

func TestParse(t *testing.T) {
	src := `
extern_root: meta
namespaces: [Sys, Gfx]
mismatch: reject
must_use_results: false
trace: true
color: never
`
	o, err := Parse([]byte(src), "zs.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if o.Widen() || o.MustUse() || !o.Trace || o.ColorMode() != diag.ColorNever {
		t.Errorf("unexpected options: %# v", pretty.Formatter(o))
	}
	if len(o.Namespaces) != 2 || o.Namespaces[1] != "Gfx" {
		t.Errorf("namespaces = %v", o.Namespaces)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"mismatch: coerce", "mismatch must be"},
		{"color: blue", "color must be"},
		{"namespaces: ['']", "namespaces[0] is empty"},
		{"trace: [", "parsing bad.yaml"},
	}
	for _, tt := range tests {
		_, err := Parse([]byte(tt.src), "bad.yaml")
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("Parse(%q) error = %v, want containing %q", tt.src, err, tt.want)
		}
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, FileName), []byte("extern_root: meta\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	path, err := Find(nested)
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(root, FileName) {
		t.Fatalf("Find = %q", path)
	}
	o, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := o.ExternDir(), filepath.Join(root, "meta"); got != want {
		t.Errorf("ExternDir = %q, want %q", got, want)
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	Default().Logger(&buf).Print("hidden")
	if buf.Len() != 0 {
		t.Errorf("tracing disabled but logger wrote %q", buf.String())
	}
	o := Default()
	o.Trace = true
	o.Logger(&buf).Print("shown")
	if !strings.Contains(buf.String(), "zs: shown") {
		t.Errorf("logger wrote %q", buf.String())
	}
}
