package object

import "github.com/falcon-lang/falcon/pkg/value"

// BoundMethod pairs a receiver with a method Closure, produced by
// OP_GET_PROP when the attribute resolved to a method rather than a field
// (spec.md §3). OP_INVOKE bypasses allocating one of these when it can
// fuse the lookup with the call (spec.md §4.F).
type BoundMethod struct {
	header
	Receiver value.Value
	Method   *Closure
}

var _ Traceable = (*BoundMethod)(nil)

// NewBoundMethod allocates a bound method.
func (h *Heap) NewBoundMethod(receiver value.Value, method *Closure) *BoundMethod {
	bm := &BoundMethod{Receiver: receiver, Method: method}
	bm.kind = KindBoundMethod
	h.track(bm, &bm.header, 40)
	return bm
}

func (bm *BoundMethod) FalconString() string { return bm.Method.FalconString() }
func (bm *BoundMethod) FalconTruthy() bool   { return true }
func (bm *BoundMethod) TypeName() string     { return "bound method" }

// Trace marks the receiver and the method closure (spec.md §4.C step 2:
// "bound method -> receiver + closure").
func (bm *BoundMethod) Trace(mark func(Traceable)) {
	if bm.Receiver.IsObj() {
		if t, ok := bm.Receiver.AsObj().(Traceable); ok {
			mark(t)
		}
	}
	mark(bm.Method)
}
