package object

import "github.com/falcon-lang/falcon/pkg/value"

// Upvalue is either an open reference into a live stack slot, or — once
// closed — an owned copy of the value that slot used to hold (spec.md §3).
// While open, upvalues are threaded on the VM's open-upvalue list via
// OpenNext, kept sorted by descending stack slot address (invariant 3);
// that list is a distinct chain from the heap's object list (Next/header),
// which is why Upvalue carries both.
type Upvalue struct {
	header

	// Location points at the live stack slot while the upvalue is open; it
	// is nil once the upvalue has been closed.
	Location *value.Value
	// Closed holds the upvalue's own copy of the value once closed.
	Closed value.Value

	// OpenNext links this upvalue into the VM's open-upvalue list, ordered
	// by descending stack slot address. Only meaningful while Location is
	// non-nil.
	OpenNext *Upvalue
	// Slot records the stack index Location currently addresses, used to
	// maintain the descending-order invariant without re-deriving a slot
	// index from a raw pointer.
	Slot int
}

var _ Traceable = (*Upvalue)(nil)

// NewUpvalue allocates an open upvalue pointing at the given stack slot.
func (h *Heap) NewUpvalue(slot *value.Value, slotIndex int) *Upvalue {
	uv := &Upvalue{Location: slot, Slot: slotIndex}
	uv.kind = KindUpvalue
	h.track(uv, &uv.header, 40)
	return uv
}

// Close copies the current value out of the live slot and severs the
// Location pointer, transitioning the upvalue from open to closed exactly
// once (spec.md "Lifecycles").
func (uv *Upvalue) Close() {
	uv.Closed = *uv.Location
	uv.Location = nil
	uv.OpenNext = nil
}

// IsOpen reports whether the upvalue still references a live stack slot.
func (uv *Upvalue) IsOpen() bool { return uv.Location != nil }

// Get returns the upvalue's current value, whether open or closed.
func (uv *Upvalue) Get() value.Value {
	if uv.Location != nil {
		return *uv.Location
	}
	return uv.Closed
}

// Set stores a new value, whether open or closed.
func (uv *Upvalue) Set(v value.Value) {
	if uv.Location != nil {
		*uv.Location = v
		return
	}
	uv.Closed = v
}

func (uv *Upvalue) FalconString() string { return "<upvalue>" }
func (uv *Upvalue) FalconTruthy() bool   { return uv.Get().Truthy() }
func (uv *Upvalue) TypeName() string     { return "upvalue" }

// Trace marks the value an open upvalue's slot currently holds, or the
// stored value of a closed upvalue (spec.md §4.C step 2: "open upvalue ->
// slot value; closed upvalue -> stored value").
func (uv *Upvalue) Trace(mark func(Traceable)) {
	v := uv.Get()
	if v.IsObj() {
		if t, ok := v.AsObj().(Traceable); ok {
			mark(t)
		}
	}
}
