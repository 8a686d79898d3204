package object

import (
	"fmt"

	"github.com/falcon-lang/falcon/pkg/table"
	"github.com/falcon-lang/falcon/pkg/value"
)

// Class is a Falcon class: a name and a table of methods keyed by
// interned selector name, each value wrapping a *Closure (spec.md §3).
// OP_INHERIT copies a superclass's method table into the subclass at
// class-declaration time (spec.md §4.F), so Class does not itself keep a
// Super pointer — by the time the class is live, its own method table
// already reflects inheritance.
type Class struct {
	header
	Name    *String
	Methods *table.Table
}

var _ Traceable = (*Class)(nil)

// NewClass allocates an empty class.
func (h *Heap) NewClass(name *String) *Class {
	c := &Class{Name: name, Methods: table.New()}
	c.kind = KindClass
	h.track(c, &c.header, 48)
	return c
}

func (c *Class) FalconString() string { return fmt.Sprintf("<class %s>", c.Name.FalconString()) }
func (c *Class) FalconTruthy() bool   { return true }
func (c *Class) TypeName() string     { return "class" }

// Method looks up a method by name, returning its *Closure.
func (c *Class) Method(name *String) (*Closure, bool) {
	v, ok := c.Methods.Get(name)
	if !ok {
		return nil, false
	}
	return v.AsObj().(*Closure), true
}

// Trace marks the class name and every method closure (spec.md §4.C step
// 2: "class -> name + method map").
func (c *Class) Trace(mark func(Traceable)) {
	mark(c.Name)
	c.Methods.Iter(func(_ table.Key, v value.Value) {
		if v.IsObj() {
			if t, ok := v.AsObj().(Traceable); ok {
				mark(t)
			}
		}
	})
}
