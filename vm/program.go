package vm

import (
	"fmt"
	"strings"
	"time"
)

// Program is a linked instruction stream together with the constants it
// loads. Jump and call operands are absolute instruction indices.
type Program struct {
	Constants    []Value
	Instructions []Instruction

	// Created is the timestamp read from a bytecode header. It is zero for
	// programs that came straight from the linker.
	Created time.Time
}

// Format selects one of the serialized forms of a program.
type Format int

const (
	// FormatListing is the human-readable text dump.
	FormatListing Format = iota
	// FormatBytecode is the binary bytecode file.
	FormatBytecode
	// FormatExecutable is a loader stub followed by bytecode and a length trailer.
	FormatExecutable
)

var formatNames = map[Format]string{
	FormatListing:    "asm",
	FormatBytecode:   "bin",
	FormatExecutable: "exe",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Extension returns the conventional file extension, including the dot.
func (f Format) Extension() string {
	return "." + f.String()
}

// ParseFormat accepts asm, bin or exe in any case.
func ParseFormat(s string) (Format, error) {
	for f, name := range formatNames {
		if strings.EqualFold(s, name) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown output format %q (want asm, bin or exe)", s)
}

// SerializeOptions controls Serialize.
type SerializeOptions struct {
	Format Format
	// LoaderStub is copied in front of the bytecode for FormatExecutable.
	LoaderStub []byte
	// Clock overrides the header timestamp source.
	Clock func() time.Time
}

// Serialize renders p in the requested form entirely in memory.
func Serialize(p *Program, opts SerializeOptions) ([]byte, error) {
	if opts.Format == FormatListing {
		return Listing(p), nil
	}

	w := NewImageWriter()
	if opts.Clock != nil {
		w.SetClock(opts.Clock)
	}
	if err := w.WriteProgram(p); err != nil {
		return nil, err
	}

	switch opts.Format {
	case FormatBytecode:
		return w.Bytes(), nil
	case FormatExecutable:
		if len(opts.LoaderStub) == 0 {
			return nil, fmt.Errorf("executable output needs a loader stub")
		}
		return PackExecutable(opts.LoaderStub, w.Bytes()), nil
	}
	return nil, fmt.Errorf("unsupported output format %v", opts.Format)
}
