package object

import (
	"fmt"

	"github.com/falcon-lang/falcon/pkg/value"
)

// NativeFn is a host callback registered as a global via define_native
// (spec.md §4.G, §6). The VM passes it the argument slice taken directly
// off its operand stack; a non-nil error or a value.Err result is treated
// as a runtime error by the VM (spec.md §4.G).
type NativeFn func(args []value.Value) (value.Value, error)

// Native wraps a host-provided function so it can be stored as an
// ordinary Value and invoked through OP_CALL like any other callable
// (spec.md §3 "Native | function pointer (host callback), name").
type Native struct {
	header
	Name string
	Fn   NativeFn
}

var _ Traceable = (*Native)(nil)

// NewNative allocates a native function object.
func (h *Heap) NewNative(name string, fn NativeFn) *Native {
	n := &Native{Name: name, Fn: fn}
	n.kind = KindNative
	h.track(n, &n.header, 32)
	return n
}

func (n *Native) FalconString() string      { return fmt.Sprintf("<native fn %s>", n.Name) }
func (n *Native) FalconTruthy() bool        { return true }
func (n *Native) TypeName() string          { return "native" }
func (n *Native) Trace(func(Traceable)) {}
