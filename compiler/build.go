package compiler

import (
	"fmt"
	"os"
	"time"

	"github.com/chazu/cnpl/vm"
)

// BuildOptions controls Build.
type BuildOptions struct {
	Format vm.Format

	// ImportFile declares native functions; empty means none.
	ImportFile string
	// Natives are declared after ImportFile, in order.
	Natives []ImportDecl

	// LoaderFile is the stub prepended to executables.
	LoaderFile string

	// Clock overrides the bytecode header timestamp.
	Clock func() time.Time
}

// Compile generates and links prog with the given native declarations.
func Compile(prog *Program, natives []ImportDecl) (*vm.Program, error) {
	c := NewCompiler()
	for _, d := range natives {
		c.DeclareNative(d.Name, d.Minimum)
	}
	if err := c.CompileProgram(prog); err != nil {
		return nil, err
	}
	return c.Link()
}

// Build runs the whole backend: imports, generation, linking and
// serialization. The artifact is returned in memory; nothing is written
// unless every phase succeeded, so callers can write it in one step.
func Build(prog *Program, opts BuildOptions) ([]byte, *vm.Program, error) {
	c := NewCompiler()
	if opts.ImportFile != "" {
		if err := c.LoadImportFile(opts.ImportFile); err != nil {
			return nil, nil, err
		}
	}
	for _, d := range opts.Natives {
		c.DeclareNative(d.Name, d.Minimum)
	}

	if err := c.CompileProgram(prog); err != nil {
		return nil, nil, err
	}
	linked, err := c.Link()
	if err != nil {
		return nil, nil, err
	}

	sopts := vm.SerializeOptions{Format: opts.Format, Clock: opts.Clock}
	if opts.Format == vm.FormatExecutable {
		if opts.LoaderFile == "" {
			return nil, nil, fmt.Errorf("executable output needs a loader stub file")
		}
		if sopts.LoaderStub, err = os.ReadFile(opts.LoaderFile); err != nil {
			return nil, nil, fmt.Errorf("cannot read loader stub: %w", err)
		}
	}
	data, err := vm.Serialize(linked, sopts)
	if err != nil {
		return nil, nil, err
	}
	log.Debugf("built %s artifact: %d bytes", opts.Format, len(data))
	return data, linked, nil
}
