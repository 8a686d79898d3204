package object

import (
	"fmt"
	"strings"

	"github.com/falcon-lang/falcon/pkg/value"
)

// List is Falcon's ordered aggregate (spec.md §3 "List | ordered sequence
// of Values"), built by OP_LIST and indexed by OP_GET_SUBSCRIPT /
// OP_SET_SUBSCRIPT with bounds checking (spec.md §4.F).
type List struct {
	header
	Elems []value.Value
}

var _ Traceable = (*List)(nil)

// NewList allocates a list containing a copy of elems.
func (h *Heap) NewList(elems []value.Value) *List {
	l := &List{Elems: append([]value.Value(nil), elems...)}
	l.kind = KindList
	h.track(l, &l.header, 24+16*len(elems))
	return l
}

func (l *List) FalconString() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, e := range l.Elems {
		if i > 0 {
			b.WriteString(", ")
		}
		if e.IsObj() {
			if s, ok := e.AsObj().(*String); ok {
				fmt.Fprintf(&b, "%q", s.FalconString())
				continue
			}
		}
		b.WriteString(e.String())
	}
	b.WriteByte(']')
	return b.String()
}

func (l *List) FalconTruthy() bool { return len(l.Elems) > 0 }
func (l *List) TypeName() string   { return "list" }
func (l *List) Len() int           { return len(l.Elems) }

// Trace marks every element (spec.md §4.C step 2: "list -> elements").
func (l *List) Trace(mark func(Traceable)) {
	for _, e := range l.Elems {
		if e.IsObj() {
			if t, ok := e.AsObj().(Traceable); ok {
				mark(t)
			}
		}
	}
}
