package compiler

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chazu/cnpl/vm"
)

func helloTree() *Program {
	return prog(
		callStmt("say", lit(vm.String("hello"))),
		ret(num(3)),
	)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuildAllFormats(t *testing.T) {
	dir := t.TempDir()
	imports := writeFile(t, dir, "import.def", "host [say] 1\n")
	loader := writeFile(t, dir, "link.Loader", "LOADER")
	clock := func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	asm, linked, err := Build(helloTree(), BuildOptions{Format: vm.FormatListing, ImportFile: imports})
	if err != nil {
		t.Fatalf("asm: %v", err)
	}
	if !bytes.Contains(asm, []byte("CALLSYS 1 0\n")) {
		t.Errorf("listing lacks the native call:\n%s", asm)
	}
	if len(linked.Instructions) == 0 {
		t.Error("no linked program returned")
	}

	bin, _, err := Build(helloTree(), BuildOptions{Format: vm.FormatBytecode, ImportFile: imports, Clock: clock})
	if err != nil {
		t.Fatalf("bin: %v", err)
	}
	decoded, err := vm.DecodeProgram(bin)
	if err != nil {
		t.Fatal(err)
	}
	if !decoded.Created.Equal(clock()) {
		t.Errorf("Created = %v", decoded.Created)
	}

	exe, _, err := Build(helloTree(), BuildOptions{
		Format: vm.FormatExecutable, ImportFile: imports, LoaderFile: loader, Clock: clock,
	})
	if err != nil {
		t.Fatalf("exe: %v", err)
	}
	if !bytes.Equal(exe, vm.PackExecutable([]byte("LOADER"), bin)) {
		t.Error("executable is not loader + bytecode + trailer")
	}
}

func TestBuildNativesOption(t *testing.T) {
	data, _, err := Build(helloTree(), BuildOptions{
		Format:  vm.FormatListing,
		Natives: []ImportDecl{{Name: "pad", Minimum: 0}, {Name: "say", Minimum: 1}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte("CALLSYS 1 1\n")) {
		t.Errorf("say should dispatch at 1:\n%s", data)
	}
}

func TestBuildFailuresProduceNothing(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		opts BuildOptions
	}{
		{"undeclared native", BuildOptions{Format: vm.FormatBytecode}},
		{"missing imports", BuildOptions{Format: vm.FormatBytecode, ImportFile: filepath.Join(dir, "none.def")}},
		{"missing loader", BuildOptions{
			Format:     vm.FormatExecutable,
			Natives:    []ImportDecl{{Name: "say"}},
			LoaderFile: filepath.Join(dir, "none.Loader"),
		}},
		{"no loader", BuildOptions{Format: vm.FormatExecutable, Natives: []ImportDecl{{Name: "say"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, p, err := Build(helloTree(), tt.opts)
			if err == nil {
				t.Fatal("expected an error")
			}
			if data != nil || p != nil {
				t.Error("failed build returned output")
			}
		})
	}
}

func TestCompile(t *testing.T) {
	p, err := Compile(helloTree(), []ImportDecl{{Name: "say", Minimum: 1}})
	if err != nil {
		t.Fatal(err)
	}
	last := p.Instructions[len(p.Instructions)-1]
	if last.Op != vm.OpRET {
		t.Errorf("last instruction = %v", last)
	}
}
