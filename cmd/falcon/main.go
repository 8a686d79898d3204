// Command falcon is the CLI collaborator driving pkg/vm: it parses flags,
// loads a script or starts an interactive REPL, and maps the VM's error
// taxonomy onto process exit codes (spec.md §6 "EXTERNAL INTERFACES").
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mna/mainer"
	"github.com/peterh/liner"

	"github.com/falcon-lang/falcon/pkg/object"
	"github.com/falcon-lang/falcon/pkg/vm"
)

// Exit codes distinguish usage errors, OS errors, and the two VM error
// kinds, per spec.md §6 ("distinct nonzero codes for usage error, OS
// error, compile error, runtime error").
const (
	exitSuccess = 0
	exitUsage   = 1
	exitOSError = 2
	exitCompile = 3
	exitRuntime = 4
)

var version = "0.1.0"

const usage = `usage: falcon [-d] [script]
       falcon [-d] -i <expr>
       falcon -h | -v

  -h, --help      show this help and exit
  -v, --version   print version and exit
  -d, --debug     trace every executed instruction to stdout
  -i <expr>       run expr and exit, stopping option parsing
  --              stop option parsing; the next argument is the script path

With no script and no -i, falcon starts an interactive REPL.
`

// cmd is the flag destination mainer.Parser fills in; the struct tags name
// the short/long flag spellings the way mna-nenuphar's own cmd/main.go
// wires mainer.Parser.
type cmd struct {
	Help    bool   `flag:"h,help"`
	Version bool   `flag:"v,version"`
	Debug   bool   `flag:"d,debug"`
	Inline  string `flag:"i"`

	args []string
}

func (c *cmd) SetArgs(args []string)          { c.args = args }
func (c *cmd) SetFlags(flags map[string]bool) {}
func (c *cmd) Validate() error                { return nil }

func main() {
	os.Exit(run(os.Args[1:], mainer.CurrentStdio()))
}

func run(args []string, stdio mainer.Stdio) int {
	c := &cmd{}
	p := mainer.Parser{EnvVars: false, EnvPrefix: "falcon_"}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "falcon: %s\n%s", err, usage)
		return exitUsage
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, usage)
		return exitSuccess
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "falcon %s\n", version)
		return exitSuccess
	}

	heap := object.NewHeap(false)
	machine := vm.New(heap)
	if c.Debug {
		machine.Tracer = vm.NewStdoutTracer(stdio.Stdout)
	}

	switch {
	case c.Inline != "":
		return interpret(machine, c.Inline, stdio)
	case len(c.args) > 0:
		return runFile(machine, c.args[0], stdio)
	default:
		return runREPL(machine, stdio)
	}
}

// runFile reads and runs a whole script in one Interpret call.
func runFile(machine *vm.VM, path string, stdio mainer.Stdio) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "falcon: %s\n", err)
		return exitOSError
	}
	return interpret(machine, string(data), stdio)
}

// interpret runs source and maps the result onto an exit code, printing
// whichever error taxonomy (spec.md §7) the VM raised.
func interpret(machine *vm.VM, source string, stdio mainer.Stdio) int {
	err := machine.Interpret(source)
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintln(stdio.Stderr, err)
	switch err.(type) {
	case *vm.CompileError:
		return exitCompile
	default:
		return exitRuntime
	}
}

// runREPL reads and evaluates one line at a time against a single
// persistent VM, so globals and classes declared in one line remain
// visible to the next (spec.md §9's open question: EOF exits cleanly with
// status 0, empty lines are ignored).
func runREPL(machine *vm.VM, stdio mainer.Stdio) int {
	term := liner.NewLiner()
	defer term.Close()
	term.SetCtrlCAborts(true)

	fmt.Fprintf(stdio.Stdout, "falcon %s\n", version)
	for {
		input, err := term.Prompt("falcon> ")
		if err == io.EOF {
			fmt.Fprintln(stdio.Stdout)
			return exitSuccess
		}
		if err != nil {
			fmt.Fprintf(stdio.Stderr, "falcon: %s\n", err)
			return exitOSError
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		term.AppendHistory(input)
		if err := machine.Interpret(input); err != nil {
			fmt.Fprintln(stdio.Stderr, err)
		}
	}
}
