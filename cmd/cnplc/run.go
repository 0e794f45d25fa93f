package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/tebeka/atexit"

	"github.com/chazu/cnpl/compiler"
	"github.com/chazu/cnpl/vm"
)

func handleRunCommand(args []string) {
	var v verbosity
	fs := newFlagSet("run", &v)
	imports := fs.String("I", "", "extra import declaration file (tree input only)")
	seed := fs.Uint64("seed", 0, "random seed (default from cnpl.toml, else time based)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cnplc run [options] file [args...]\n\n")
		fmt.Fprintf(os.Stderr, "file is a syntax tree (.cbor), bytecode or an executable.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	configureLogging(v)

	if fs.NArg() < 1 {
		fs.Usage()
		atexit.Exit(2)
	}
	input := fs.Arg(0)
	m := loadManifest()

	prog, err := loadRunnable(input, *imports)
	if err != nil {
		fatalf("%v", err)
	}

	opts := []vm.EngineOption{vm.WithArgs(fs.Args())}
	switch {
	case *seed != 0:
		opts = append(opts, vm.WithSeed(*seed))
	case m.Run.Seed != 0:
		opts = append(opts, vm.WithSeed(m.Run.Seed))
	}

	// Programs can change terminal colours and the cursor; put them back
	// however we leave.
	if isatty.IsTerminal(os.Stdout.Fd()) {
		atexit.Register(func() { fmt.Fprint(os.Stdout, "\x1b[0m") })
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	code, err := vm.NewEngine(prog, opts...).Run(ctx)
	if err != nil {
		fatalf("%v", err)
	}
	log.Debugf("%s exited with %d", input, code)
	stop()
	atexit.Exit(code)
}

// loadRunnable compiles a syntax tree against the standard host library, or
// loads a bytecode file or executable as is.
func loadRunnable(path, imports string) (*vm.Program, error) {
	if strings.EqualFold(filepath.Ext(path), ".cbor") {
		tree, err := compiler.LoadProgramFile(path)
		if err != nil {
			return nil, err
		}
		c := compiler.NewCompiler()
		for _, hc := range vm.StandardHostCalls() {
			c.DeclareNative(hc.Name, hc.MinArgs)
		}
		if imports != "" {
			if err := c.LoadImportFile(imports); err != nil {
				return nil, err
			}
		}
		if err := c.CompileProgram(tree); err != nil {
			return nil, err
		}
		return c.Link()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return vm.LoadProgram(data)
}
