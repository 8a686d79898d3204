// Package object implements Falcon's heap objects and its tracing
// mark-sweep garbage collector (spec.md §3, §4.C).
//
// Every heap entity — string, function, closure, upvalue, class, instance,
// bound method, list, or map — embeds header, which carries the type tag,
// the mark bit, and the next-pointer threading it onto the Heap's object
// list (spec.md invariant 1). Object kinds are modeled as a flat tag plus
// per-kind payload rather than as a class hierarchy, per spec.md §9's
// "avoid inheritance hierarchies for object kinds": the only polymorphism
// is the Traceable interface the GC dispatches through, plus the
// value.ObjRef interface Values use for formatting/equality/truthiness.
package object

import "github.com/falcon-lang/falcon/pkg/value"

// Kind tags a heap object's concrete type.
type Kind uint8

const (
	KindString Kind = iota
	KindFunction
	KindNative
	KindClosure
	KindUpvalue
	KindClass
	KindInstance
	KindBoundMethod
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindFunction:
		return "function"
	case KindNative:
		return "native"
	case KindClosure:
		return "closure"
	case KindUpvalue:
		return "upvalue"
	case KindClass:
		return "class"
	case KindInstance:
		return "instance"
	case KindBoundMethod:
		return "bound method"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "object"
	}
}

// Traceable is implemented by every heap object kind. The GC's mark phase
// walks the gray stack calling Trace on each object to mark the objects it
// references (spec.md §4.C step 2); the sweep phase walks the Next chain
// unlinking and abandoning (to Go's own collector) anything left unmarked.
type Traceable interface {
	value.ObjRef
	Kind() Kind
	Marked() bool
	SetMarked(bool)
	Next() Traceable
	SetNext(Traceable)
	Size() int
	// Trace calls mark on every Traceable this object directly references.
	Trace(mark func(Traceable))
}

// header is embedded by every concrete object type. Its methods satisfy
// most of Traceable by promotion; each concrete type supplies Trace and the
// value.ObjRef methods (FalconString, FalconTruthy, TypeName) itself, since
// those are kind-specific.
type header struct {
	kind   Kind
	marked bool
	next   Traceable
	size   int
	id     uint64
}

func (h *header) Kind() Kind          { return h.kind }
func (h *header) Marked() bool        { return h.marked }
func (h *header) SetMarked(m bool)    { h.marked = m }
func (h *header) Next() Traceable     { return h.next }
func (h *header) SetNext(n Traceable) { h.next = n }
func (h *header) Size() int           { return h.size }

// Addr gives each object a stable identity for Value equality, derived
// from an allocation-order counter (see Heap.track) rather than from a Go
// pointer address, so identity remains well-defined even though Go's own
// collector is free to move or reclaim the backing memory once this
// object is swept from the Heap's logical object list.
func (h *header) Addr() uintptr { return uintptr(h.id) }
