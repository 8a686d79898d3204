package object

import "github.com/falcon-lang/falcon/pkg/table"

// growthFactor is the multiplier applied to bytesAllocated to compute the
// next collection watermark (spec.md invariant 5: "factor >= 2").
const growthFactor = 2

// initialNextGC is the watermark before the first collection; chosen large
// enough that short-lived scripts and every unit test never collect unless
// stress mode is requested, matching the teacher's habit of sizing fixed
// buffers generously (pkg/vm.New: 1024-slot stack, 256 locals).
const initialNextGC = 1 << 20

// RootMarker is supplied by a VM (always) and, while a compile is active,
// by the Compiler (spec.md §4.C "mark roots" list, §4.E "the compiler
// participates in GC"). It calls mark on every Traceable the source
// directly roots.
type RootMarker func(mark func(Traceable))

// Heap owns the object list, the allocation watermark bookkeeping, the
// nestable GC pause counter, and the weak string-interning table.
type Heap struct {
	head           Traceable
	bytesAllocated int
	nextGC         int
	pause          int
	stress         bool
	nextID         uint64

	strings *table.Table // weak: swept strings are removed before sweep

	vmRoot       RootMarker
	compilerRoot RootMarker
}

// NewHeap creates an empty heap. When stress is true, a collection runs on
// every single allocation (spec.md §4.C "stress mode"), which is how the
// GC-safety property test (spec.md §8) exercises the collector without
// needing to manufacture megabytes of garbage.
func NewHeap(stress bool) *Heap {
	return &Heap{
		nextGC:  initialNextGC,
		stress:  stress,
		strings: table.New(),
	}
}

// Strings exposes the interning table so the VM/compiler's string
// constructor can consult and populate it.
func (h *Heap) Strings() *table.Table { return h.strings }

// SetVMRoot registers the running VM as a permanent root source. There is
// always exactly one VM per Heap for the lifetime of the program (spec.md
// §9: "explicit VM context passed to every runtime operation").
func (h *Heap) SetVMRoot(fn RootMarker) { h.vmRoot = fn }

// SetCompilerRoot registers the active compiler as a root source for the
// duration of a single Compile call; ClearCompilerRoot removes it once
// compilation finishes (spec.md §4.E: "the active compiler is a root, so
// function objects under construction survive collections triggered by
// their own constant-pool growth").
func (h *Heap) SetCompilerRoot(fn RootMarker) { h.compilerRoot = fn }

// ClearCompilerRoot un-registers the active compiler as a root source.
func (h *Heap) ClearCompilerRoot() { h.compilerRoot = nil }

// Pause increments the nestable GC-pause counter; while paused, track never
// triggers a collection. Pause/Resume calls nest (spec.md §9: "a single
// boolean is insufficient").
func (h *Heap) Pause() { h.pause++ }

// Resume decrements the pause counter.
func (h *Heap) Resume() {
	if h.pause > 0 {
		h.pause--
	}
}

// BytesAllocated reports the live byte count, for tests and diagnostics.
func (h *Heap) BytesAllocated() int { return h.bytesAllocated }

// NextGC reports the current collection watermark, for tests.
func (h *Heap) NextGC() int { return h.nextGC }

// track first runs a collection if this allocation crosses the watermark
// (or stress mode is on) and collection is not paused, then links the
// freshly allocated object onto the head of the object list, accounts its
// size, and assigns it an identity (spec.md §4.C "allocate(size, kind) ->
// Obj" contract). Collecting before linking means the new object, which no
// root can reference yet, is never swept by its own allocation.
func (h *Heap) track(obj Traceable, hdr *header, size int) {
	if h.pause == 0 && (h.stress || h.bytesAllocated+size > h.nextGC) {
		h.Collect()
	}

	h.nextID++
	hdr.id = h.nextID
	hdr.size = size
	hdr.next = h.head
	h.head = obj
	h.bytesAllocated += size
}

// Collect runs one full mark-sweep cycle (spec.md §4.C). It is synchronous
// and non-incremental: the whole heap is traced and swept before Collect
// returns, and no opcode boundary is ever interrupted mid-instruction
// (spec.md §5).
func (h *Heap) Collect() {
	var gray []Traceable
	mark := func(t Traceable) {
		if t == nil || t.Marked() {
			return
		}
		t.SetMarked(true)
		gray = append(gray, t)
	}

	if h.vmRoot != nil {
		h.vmRoot(mark)
	}
	if h.compilerRoot != nil {
		h.compilerRoot(mark)
	}

	for len(gray) > 0 {
		obj := gray[len(gray)-1]
		gray = gray[:len(gray)-1]
		obj.Trace(mark)
	}

	h.sweepInternTable()
	h.sweepObjects()

	h.nextGC = h.bytesAllocated * growthFactor
	if h.nextGC < initialNextGC {
		h.nextGC = initialNextGC
	}
}

// sweepInternTable removes unmarked strings from the weak interning table
// before the sweep proper, per spec.md §9 "remove unmarked strings from
// [the interning table] before freeing them, to keep the table from
// dangling".
func (h *Heap) sweepInternTable() {
	for _, k := range h.strings.Keys() {
		str, ok := k.(*String)
		if ok && !str.Marked() {
			h.strings.Delete(k)
		}
	}
}

// sweepObjects walks the object list, unlinking and abandoning anything
// left unmarked, and clears the mark bit on survivors.
func (h *Heap) sweepObjects() {
	var prev Traceable
	obj := h.head
	for obj != nil {
		if obj.Marked() {
			obj.SetMarked(false)
			prev = obj
			obj = obj.Next()
			continue
		}
		unreached := obj
		obj = obj.Next()
		if prev != nil {
			prev.SetNext(obj)
		} else {
			h.head = obj
		}
		h.bytesAllocated -= unreached.Size()
	}
}
