package vm

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// TraceFrame is one entry in a RuntimeError's captured call stack: the
// name of the running closure and the source line its instruction
// pointer had reached when the error was raised (spec.md §7.2's runtime
// stack trace, grounded in the teacher's StackFrame/RuntimeError design
// in pkg/vm/errors.go, adapted from Smalltalk selectors to Falcon's
// closure-per-frame call model).
type TraceFrame struct {
	Name string
	Line int
}

// RuntimeError is a runtime fault together with the call stack active
// when it was raised (spec.md §7.2 "RuntimeError: message, stack trace").
type RuntimeError struct {
	Message string
	Trace   []TraceFrame
}

// Error implements the error interface, printing frames innermost-first
// the way the teacher's RuntimeError.Error does, but over Falcon's
// Name/Line pair instead of a message selector.
func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Trace) > 0 {
		b.WriteString("\n\nStack trace:")
		frames := append([]TraceFrame(nil), e.Trace...)
		slices.Reverse(frames)
		for _, fr := range frames {
			fmt.Fprintf(&b, "\n  at %s [line %d]", fr.Name, fr.Line)
		}
	}
	return b.String()
}

// CompileError wraps the accumulated compile-time diagnostics a failed
// Compile call returns (spec.md §7.1).
type CompileError struct {
	Messages []string
}

func (e *CompileError) Error() string {
	return "compile error:\n" + strings.Join(e.Messages, "\n")
}

// runtimeError wraps err as a RuntimeError, capturing the current call
// stack (innermost frame last, matching the order vm.frames stores them
// in) before the VM unwinds.
func (vm *VM) runtimeError(err error) error {
	if err == nil {
		return nil
	}
	trace := make([]TraceFrame, 0, vm.frameCount)
	for i := 0; i < vm.frameCount; i++ {
		fr := &vm.frames[i]
		name := fr.Closure.Name()
		line := fr.Closure.Fn.Chunk.GetLine(fr.IP - 1)
		trace = append(trace, TraceFrame{Name: name, Line: line})
	}
	return &RuntimeError{Message: err.Error(), Trace: trace}
}
