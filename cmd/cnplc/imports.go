package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/chazu/cnpl/manifest"
	"github.com/chazu/cnpl/vm"
)

func handleImportsCommand(args []string) {
	var v verbosity
	fs := newFlagSet("imports", &v)
	output := fs.String("o", "-", "output file ("+manifest.DefaultImportsName()+" by convention)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cnplc imports [-o file]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	configureLogging(v)

	var buf bytes.Buffer
	if err := vm.WriteImportDefinitions(&buf, vm.StandardHostCalls()); err != nil {
		fatalf("%v", err)
	}
	if *output == "-" {
		os.Stdout.Write(buf.Bytes())
		return
	}
	if err := vm.WriteFileAtomic(*output, buf.Bytes(), 0o644); err != nil {
		fatalf("%v", err)
	}
	log.Infof("wrote %d host declarations to %s", len(vm.StandardHostCalls()), *output)
}
