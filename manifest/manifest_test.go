package manifest

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[project]
name = "hello"
version = "0.1.0"

[build]
format = "exe"
output = "out/hello"
imports = "defs/import.def"
loader = "/opt/cnpl/link.Loader"

[run]
seed = 7
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "hello" || m.Project.Version != "0.1.0" {
		t.Errorf("project = %+v", m.Project)
	}
	if m.Build.Format != "exe" {
		t.Errorf("format = %q, want exe", m.Build.Format)
	}
	if m.Run.Seed != 7 {
		t.Errorf("seed = %d, want 7", m.Run.Seed)
	}
	if got, want := m.OutputPath(), filepath.Join(dir, "out", "hello"); got != want {
		t.Errorf("OutputPath = %q, want %q", got, want)
	}
	if got, want := m.ImportsPath(), filepath.Join(dir, "defs", "import.def"); got != want {
		t.Errorf("ImportsPath = %q, want %q", got, want)
	}
	if got := m.LoaderPath(); got != "/opt/cnpl/link.Loader" {
		t.Errorf("LoaderPath = %q", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("[project]\nname = \"x\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	m, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if m.Build.Format != "bin" {
		t.Errorf("default format = %q, want bin", m.Build.Format)
	}
	if m.OutputPath() != "" {
		t.Errorf("OutputPath = %q, want empty", m.OutputPath())
	}
	if m.ImportsPath() != "" {
		t.Errorf("ImportsPath = %q, want empty without a conventional file", m.ImportsPath())
	}

	conventional := filepath.Join(dir, DefaultImportsName())
	if err := os.WriteFile(conventional, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if m.ImportsPath() != conventional {
		t.Errorf("ImportsPath = %q, want %q", m.ImportsPath(), conventional)
	}
	if got, want := m.LoaderPath(), filepath.Join(dir, DefaultLoaderName()); got != want {
		t.Errorf("LoaderPath = %q, want %q", got, want)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load of a directory without cnpl.toml should fail")
	}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("[build\nformat="), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("malformed TOML should fail")
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, FileName), []byte("[project]\nname = \"outer\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "src", "deep")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(nested)
	if err != nil {
		t.Fatal(err)
	}
	if m == nil || m.Project.Name != "outer" {
		t.Fatalf("FindAndLoad = %+v", m)
	}
	abs, _ := filepath.Abs(root)
	if m.Dir != abs {
		t.Errorf("Dir = %q, want %q", m.Dir, abs)
	}
}

func TestPlatformNames(t *testing.T) {
	if got, want := DefaultImportsName(), "import."+runtime.GOARCH+"."+runtime.GOOS+".def"; got != want {
		t.Errorf("DefaultImportsName = %q, want %q", got, want)
	}
	if got, want := DefaultLoaderName(), "link."+runtime.GOOS+"."+runtime.GOARCH+".Loader"; got != want {
		t.Errorf("DefaultLoaderName = %q, want %q", got, want)
	}
	if got := DefaultOutput("dir/prog.cbor", ".bin"); got != "dir/prog.bin" {
		t.Errorf("DefaultOutput = %q", got)
	}
}
