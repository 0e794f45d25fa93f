// Package manifest handles cnpl.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest file looked for in a project directory.
const FileName = "cnpl.toml"

// Manifest represents a cnpl.toml project configuration.
type Manifest struct {
	Project Project     `toml:"project"`
	Build   BuildConfig `toml:"build"`
	Run     RunConfig   `toml:"run"`

	// Dir is the directory containing the cnpl.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// BuildConfig configures compilation output.
type BuildConfig struct {
	Format  string `toml:"format"`
	Output  string `toml:"output"`
	Imports string `toml:"imports"`
	Loader  string `toml:"loader"`
}

// RunConfig configures the interpreter.
type RunConfig struct {
	Seed uint64 `toml:"seed"`
}

// Load parses a cnpl.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Build.Format == "" {
		m.Build.Format = "bin"
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a cnpl.toml file, then loads
// and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// resolve makes a manifest-relative path absolute.
func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// ImportsPath returns the import declaration file. Without an explicit
// setting it is import.<arch>.<os>.def in the project directory, if present.
func (m *Manifest) ImportsPath() string {
	if m.Build.Imports != "" {
		return m.resolve(m.Build.Imports)
	}
	p := filepath.Join(m.Dir, DefaultImportsName())
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

// LoaderPath returns the loader stub used for executables. Without an
// explicit setting it is link.<os>.<arch>.Loader in the project directory.
func (m *Manifest) LoaderPath() string {
	if m.Build.Loader != "" {
		return m.resolve(m.Build.Loader)
	}
	return filepath.Join(m.Dir, DefaultLoaderName())
}

// OutputPath returns the configured output path, or "" when unset.
func (m *Manifest) OutputPath() string {
	return m.resolve(m.Build.Output)
}

// DefaultImportsName is the conventional import declaration file name for
// the running platform.
func DefaultImportsName() string {
	return fmt.Sprintf("import.%s.%s.def", runtime.GOARCH, runtime.GOOS)
}

// DefaultLoaderName is the conventional loader stub name for the running
// platform.
func DefaultLoaderName() string {
	return fmt.Sprintf("link.%s.%s.Loader", runtime.GOOS, runtime.GOARCH)
}

// DefaultOutput derives an output path from the input path and the format
// extension.
func DefaultOutput(input, ext string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + ext
}
