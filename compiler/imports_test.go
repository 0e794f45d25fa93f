package compiler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseImports(t *testing.T) {
	src := `# host functions
host [输出] 0

misc extra [read line] 1
[len] 2
`
	decls, err := ParseImports(strings.NewReader(src))
	if err == nil {
		t.Fatalf("name with a space should not parse, got %v", decls)
	}

	src = strings.Replace(src, "[read line]", "[readline]", 1)
	decls, err = ParseImports(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	want := []ImportDecl{{"输出", 0}, {"readline", 1}, {"len", 2}}
	if len(decls) != len(want) {
		t.Fatalf("decls = %v, want %v", decls, want)
	}
	for i := range want {
		if decls[i] != want[i] {
			t.Errorf("decl %d = %v, want %v", i, decls[i], want[i])
		}
	}
}

func TestParseImportsErrors(t *testing.T) {
	for _, src := range []string{
		"lonely",
		"host name 1",
		"host [] 1",
		"host [f] many",
		"host [f] -1",
	} {
		if _, err := ParseImports(strings.NewReader(src)); err == nil {
			t.Errorf("%q: expected an error", src)
		} else if !strings.Contains(err.Error(), "line 1") {
			t.Errorf("%q: error %q does not name the line", src, err)
		}
	}
}

func TestLoadImportFileDispatchOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "import.def")
	if err := os.WriteFile(path, []byte("host [a] 0\nhost [b] 1\nhost [c] 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := NewCompiler()
	if err := c.LoadImportFile(path); err != nil {
		t.Fatal(err)
	}
	for i, name := range []string{"a", "b", "c"} {
		f, ok := c.Symbols().Function(name)
		if !ok || !f.Native() || f.Dispatch != i {
			t.Errorf("%s = %+v, want native dispatch %d", name, f, i)
		}
	}
	if f, _ := c.Symbols().Function("b"); f.Minimum != 1 {
		t.Errorf("b minimum = %d", f.Minimum)
	}

	if err := c.LoadImportFile(filepath.Join(t.TempDir(), "missing.def")); err == nil {
		t.Error("missing file should fail")
	}
}
