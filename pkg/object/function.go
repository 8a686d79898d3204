package object

import (
	"fmt"

	"github.com/falcon-lang/falcon/pkg/chunk"
)

// Function is a compiled Falcon function: its arity, the number of
// upvalues its closures must capture, an optional name (empty for the
// top-level script), and the chunk of bytecode the compiler emitted for it
// (spec.md §3).
type Function struct {
	header
	Arity        int
	UpvalueCount int
	Name         *String // nil for the anonymous top-level script
	Chunk        *chunk.Chunk
}

var _ Traceable = (*Function)(nil)

// NewFunction allocates an (initially empty) function object; the caller
// fills in Arity/UpvalueCount/Chunk as compilation of its body proceeds.
func (h *Heap) NewFunction(name *String) *Function {
	fn := &Function{Name: name, Chunk: chunk.New()}
	fn.kind = KindFunction
	h.track(fn, &fn.header, 64)
	return fn
}

func (f *Function) FalconString() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.FalconString())
}

func (f *Function) FalconTruthy() bool { return true }
func (f *Function) TypeName() string   { return "function" }

// Trace marks the function's name and every heap-allocated constant in its
// chunk's constant pool (spec.md §4.C step 2: "function -> chunk constants
// + name").
func (f *Function) Trace(mark func(Traceable)) {
	if f.Name != nil {
		mark(f.Name)
	}
	for _, c := range f.Chunk.Constants {
		if c.IsObj() {
			if t, ok := c.AsObj().(Traceable); ok {
				mark(t)
			}
		}
	}
}
