package object

import (
	"fmt"
	"strings"

	"github.com/falcon-lang/falcon/pkg/table"
	"github.com/falcon-lang/falcon/pkg/value"
)

// Map is Falcon's hash map object. Per spec.md §4.F ("GET_SUBSCRIPT /
// SET_SUBSCRIPT: ... on Map, any hashable key (strings in this design)"),
// Falcon restricts Map keys to strings, so the same open-addressed
// pkg/table implementation that backs globals, instance fields, and the
// string-interning set backs Map too (spec.md §4.D).
type Map struct {
	header
	Table *table.Table
}

var _ Traceable = (*Map)(nil)

// NewMap allocates an empty map.
func (h *Heap) NewMap() *Map {
	m := &Map{Table: table.New()}
	m.kind = KindMap
	h.track(m, &m.header, 48)
	return m
}

func (m *Map) FalconString() string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	m.Table.Iter(func(k table.Key, v value.Value) {
		if !first {
			b.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&b, "%q: %s", string(k.Bytes()), v.String())
	})
	b.WriteByte('}')
	return b.String()
}

func (m *Map) FalconTruthy() bool { return m.Table.Len() > 0 }
func (m *Map) TypeName() string   { return "map" }
func (m *Map) Len() int           { return m.Table.Len() }

// Trace marks every live key (an interned string) and value (spec.md
// §4.C step 2: "map -> keys and values").
func (m *Map) Trace(mark func(Traceable)) {
	m.Table.Iter(func(k table.Key, v value.Value) {
		if t, ok := k.(Traceable); ok {
			mark(t)
		}
		if v.IsObj() {
			if t, ok := v.AsObj().(Traceable); ok {
				mark(t)
			}
		}
	})
}
