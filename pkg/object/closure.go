package object

// Closure pairs a compiled Function with the live Upvalue references it
// captured at creation time (spec.md §3). Every callable user-defined
// function value the VM pushes onto the stack is a Closure, even a
// function with zero upvalues — this matches the clox-family design
// spec.md is grounded on, keeping OP_CALL's callee-kind switch uniform.
type Closure struct {
	header
	Fn       *Function
	Upvalues []*Upvalue
}

var _ Traceable = (*Closure)(nil)

// NewClosure allocates a closure over fn with fn.UpvalueCount empty
// upvalue slots, to be filled in by the VM's OP_CLOSURE handler.
func (h *Heap) NewClosure(fn *Function) *Closure {
	cl := &Closure{Fn: fn, Upvalues: make([]*Upvalue, fn.UpvalueCount)}
	cl.kind = KindClosure
	h.track(cl, &cl.header, 32+8*fn.UpvalueCount)
	return cl
}

func (c *Closure) FalconString() string { return c.Fn.FalconString() }
func (c *Closure) FalconTruthy() bool   { return true }
func (c *Closure) TypeName() string     { return "closure" }
func (c *Closure) Name() string {
	if c.Fn.Name == nil {
		return "script"
	}
	return c.Fn.Name.FalconString()
}

// Trace marks the underlying function and every captured upvalue
// (spec.md §4.C step 2: "closure -> function + upvalues").
func (c *Closure) Trace(mark func(Traceable)) {
	mark(c.Fn)
	for _, uv := range c.Upvalues {
		// Slots not yet filled in by OP_CLOSURE are nil.
		if uv != nil {
			mark(uv)
		}
	}
}
