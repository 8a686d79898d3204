package object

import (
	"fmt"

	"github.com/falcon-lang/falcon/pkg/table"
	"github.com/falcon-lang/falcon/pkg/value"
)

// Instance is a live object of a Class, with a per-instance field table
// (spec.md §3). Field access that misses the instance's own table never
// falls back to the class (Falcon has methods and fields as distinct
// namespaces, resolved by OP_GET_PROP checking fields first, then
// methods, per spec.md §4.F).
type Instance struct {
	header
	Class  *Class
	Fields *table.Table
}

var _ Traceable = (*Instance)(nil)

// NewInstance allocates a new instance of class.
func (h *Heap) NewInstance(class *Class) *Instance {
	i := &Instance{Class: class, Fields: table.New()}
	i.kind = KindInstance
	h.track(i, &i.header, 48)
	return i
}

func (i *Instance) FalconString() string {
	return fmt.Sprintf("<%s instance>", i.Class.Name.FalconString())
}
func (i *Instance) FalconTruthy() bool { return true }
func (i *Instance) TypeName() string   { return "instance" }

// Trace marks the instance's class and every field value (spec.md §4.C
// step 2: "instance -> class + fields").
func (i *Instance) Trace(mark func(Traceable)) {
	mark(i.Class)
	i.Fields.Iter(func(_ table.Key, v value.Value) {
		if v.IsObj() {
			if t, ok := v.AsObj().(Traceable); ok {
				mark(t)
			}
		}
	})
}
