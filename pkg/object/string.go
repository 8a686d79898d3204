package object

import (
	"hash/fnv"

	"github.com/falcon-lang/falcon/pkg/value"
)

// String is Falcon's interned string object: a length, a precomputed
// FNV-1a hash, and a flexible byte buffer (spec.md §3). Two string
// literals with identical content always share one *String handle
// (invariant 2), so string equality reduces to pointer identity.
//
// FNV-1a is used because spec.md names it explicitly; the standard
// library's hash/fnv implements exactly this algorithm, so no third-party
// hashing library is substituted here (see DESIGN.md).
type String struct {
	header
	Data  []byte
	HashV uint32
}

var (
	_ Traceable    = (*String)(nil)
	_ value.ObjRef = (*String)(nil)
)

func fnv1a(data []byte) uint32 {
	h := fnv.New32a()
	h.Write(data)
	return h.Sum32()
}

// InternString returns the canonical *String for the given content,
// allocating a new one only if no equal string is already interned
// (spec.md invariant 2; §9 "Interning weak references").
func (h *Heap) InternString(data []byte) *String {
	hash := fnv1a(data)
	if existing := h.strings.FindString(data, hash); existing != nil {
		return existing.(*String)
	}
	s := &String{Data: append([]byte(nil), data...), HashV: hash}
	s.kind = KindString
	h.track(s, &s.header, len(data)+24)
	h.strings.Set(s, value.Obj(s))
	return s
}

// InternGoString is a convenience wrapper around InternString for Go
// string literals produced by the compiler or natives.
func (h *Heap) InternGoString(s string) *String { return h.InternString([]byte(s)) }

func (s *String) GoString() string      { return string(s.Data) }
func (s *String) FalconString() string  { return string(s.Data) }
func (s *String) FalconTruthy() bool    { return len(s.Data) > 0 }
func (s *String) TypeName() string      { return "string" }
func (s *String) Bytes() []byte         { return s.Data }
func (s *String) Hash() uint32          { return s.HashV }
func (s *String) Trace(func(Traceable)) {}

// Len supports the language-visible `len` builtin's string case.
func (s *String) Len() int { return len(s.Data) }
