package main

import (
	"fmt"
	"os"

	"github.com/tebeka/atexit"

	"github.com/chazu/cnpl/vm"
)

func handleDisCommand(args []string) {
	var v verbosity
	fs := newFlagSet("dis", &v)
	listing := fs.Bool("listing", false, "print the plain listing instead of the annotated disassembly")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cnplc dis [options] file\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	configureLogging(v)

	if fs.NArg() != 1 {
		fs.Usage()
		atexit.Exit(2)
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fatalf("%v", err)
	}
	prog, err := vm.LoadProgram(data)
	if err != nil {
		fatalf("%s: %v", fs.Arg(0), err)
	}

	if *listing {
		err = vm.WriteListing(os.Stdout, prog)
	} else {
		err = vm.Disassemble(os.Stdout, prog)
	}
	if err != nil {
		fatalf("%v", err)
	}
}
