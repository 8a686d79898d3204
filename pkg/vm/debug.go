package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/falcon-lang/falcon/pkg/chunk"
	"github.com/falcon-lang/falcon/pkg/value"
)

// StdoutTracer is the Tracer cmd/falcon installs under `-d`: it prints
// one disassembled instruction per step, followed by the live operand
// stack, colorizing the output when stdout is a real terminal (replacing
// the teacher's pkg/vm/debugger.go, which did the equivalent for the
// Smalltalk VM's bytecode).
type StdoutTracer struct {
	w       io.Writer
	colored bool
}

// NewStdoutTracer creates a tracer writing to w, auto-detecting whether w
// is a terminal (and so whether ANSI color is safe to emit) via
// mattn/go-isatty when w is an *os.File.
func NewStdoutTracer(w io.Writer) *StdoutTracer {
	colored := false
	if f, ok := w.(*os.File); ok {
		colored = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &StdoutTracer{w: w, colored: colored}
}

var (
	opColor    = color.New(color.FgCyan)
	lineColor  = color.New(color.FgHiBlack)
	stackColor = color.New(color.FgYellow)
)

// TraceInstruction implements Tracer. offset is the instruction pointer
// value before the opcode byte itself is consumed.
func (t *StdoutTracer) TraceInstruction(c *chunk.Chunk, offset int, stack []value.Value) {
	line := c.GetLine(offset)
	op := chunk.OpCode(c.Code[offset])

	if !t.colored {
		fmt.Fprintf(t.w, "%04d %4d  %s\n", offset, line, op)
		t.printStack(stack, false)
		return
	}
	fmt.Fprintf(t.w, "%04d ", offset)
	lineColor.Fprintf(t.w, "%4d", line)
	fmt.Fprint(t.w, "  ")
	opColor.Fprintln(t.w, op)
	t.printStack(stack, true)
}

func (t *StdoutTracer) printStack(stack []value.Value, colored bool) {
	if len(stack) == 0 {
		return
	}
	fmt.Fprint(t.w, "       ")
	for _, v := range stack {
		if colored {
			stackColor.Fprintf(t.w, "[ %s ]", v.String())
			continue
		}
		fmt.Fprintf(t.w, "[ %s ]", v.String())
	}
	fmt.Fprintln(t.w)
}
