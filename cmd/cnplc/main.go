// cnplc - compiler backend and bytecode toolkit for the scripting language
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/tebeka/atexit"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/cnpl/manifest"
)

var log = commonlog.GetLogger("cnpl.cli")

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: cnplc <command> [options] [file]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  build    compile a syntax tree (.cbor) to a listing, bytecode or executable\n")
	fmt.Fprintf(os.Stderr, "  run      compile a syntax tree, or load bytecode/executable, and interpret it\n")
	fmt.Fprintf(os.Stderr, "  dis      disassemble bytecode or an executable\n")
	fmt.Fprintf(os.Stderr, "  imports  write the host library's import declaration file\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  cnplc build -T exe -o hello hello.cbor\n")
	fmt.Fprintf(os.Stderr, "  cnplc run hello.bin\n")
	fmt.Fprintf(os.Stderr, "  cnplc imports -o import.def\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		atexit.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "build":
		handleBuildCommand(args)
	case "run":
		handleRunCommand(args)
	case "dis":
		handleDisCommand(args)
	case "imports":
		handleImportsCommand(args)
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", cmd)
		usage()
		atexit.Exit(2)
	}
	atexit.Exit(0)
}

// fatalf reports an error and exits through atexit so registered cleanups run.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	atexit.Exit(1)
}

// verbosity counts repeated -v flags.
type verbosity int

func (v *verbosity) String() string   { return strconv.Itoa(int(*v)) }
func (v *verbosity) IsBoolFlag() bool { return true }
func (v *verbosity) Set(s string) error {
	if s == "true" {
		*v++
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*v = verbosity(n)
	return nil
}

// newFlagSet returns a flag set with the common -v flag wired to logging.
func newFlagSet(name string, v *verbosity) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Var(v, "v", "verbose logging (repeat for debug output)")
	return fs
}

func configureLogging(v verbosity) {
	commonlog.Configure(int(v), nil)
}

// loadManifest returns the project manifest, or an empty one rooted at the
// working directory when there is none.
func loadManifest() *manifest.Manifest {
	m, err := manifest.FindAndLoad(".")
	if err != nil {
		fatalf("loading manifest: %v", err)
	}
	if m == nil {
		wd, _ := os.Getwd()
		m = &manifest.Manifest{Dir: wd}
		m.Build.Format = "bin"
	} else {
		log.Debugf("using manifest in %s", m.Dir)
	}
	return m
}
