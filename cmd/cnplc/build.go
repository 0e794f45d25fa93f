package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/tebeka/atexit"

	"github.com/chazu/cnpl/compiler"
	"github.com/chazu/cnpl/manifest"
	"github.com/chazu/cnpl/vm"
)

func handleBuildCommand(args []string) {
	var v verbosity
	fs := newFlagSet("build", &v)
	format := fs.String("T", "", "output type: asm, bin or exe (default from cnpl.toml, else bin)")
	output := fs.String("o", "", "output file, or - for standard output")
	imports := fs.String("I", "", "import declaration file")
	loader := fs.String("L", "", "loader stub for exe output")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cnplc build [options] tree.cbor\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	configureLogging(v)

	if fs.NArg() != 1 {
		fs.Usage()
		atexit.Exit(2)
	}
	input := fs.Arg(0)
	m := loadManifest()

	if *format == "" {
		*format = m.Build.Format
	}
	f, err := vm.ParseFormat(*format)
	if err != nil {
		fatalf("%v", err)
	}
	if *imports == "" {
		*imports = m.ImportsPath()
	}
	if *loader == "" && f == vm.FormatExecutable {
		*loader = m.LoaderPath()
	}
	if *output == "" {
		*output = m.OutputPath()
	}
	if *output == "" {
		*output = manifest.DefaultOutput(input, f.Extension())
	}

	prog, err := compiler.LoadProgramFile(input)
	if err != nil {
		fatalf("%v", err)
	}
	start := time.Now()
	data, linked, err := compiler.Build(prog, compiler.BuildOptions{
		Format:     f,
		ImportFile: *imports,
		LoaderFile: *loader,
	})
	if err != nil {
		fatalf("%v", err)
	}
	log.Infof("compiled %s: %d constants, %d instructions in %s",
		input, len(linked.Constants), len(linked.Instructions), time.Since(start))

	if *output == "-" {
		if f != vm.FormatListing && isatty.IsTerminal(os.Stdout.Fd()) {
			fatalf("refusing to write %s output to a terminal", f)
		}
		if _, err := os.Stdout.Write(data); err != nil {
			fatalf("%v", err)
		}
		return
	}

	perm := os.FileMode(0o644)
	if f == vm.FormatExecutable {
		perm = 0o755
	}
	if err := vm.WriteFileAtomic(*output, data, perm); err != nil {
		fatalf("%v", err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s (%d bytes)\n", *output, len(data))
}
