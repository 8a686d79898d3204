// Package table implements Falcon's hash table: an open-addressed,
// linear-probing map from an interned string key to a Value (spec.md
// §4.D). It backs the VM's globals table, every instance's field map, the
// interning set itself, and the language-level Map object — one
// implementation serving all four uses named in spec.md §3's object-heap
// table, exactly as clox uses a single Table type for all of them.
//
// Keys implement the Key interface rather than being a concrete
// *object.String, so that this package has no dependency on package
// object (which in turn depends on this package for the interning table),
// avoiding an import cycle while preserving identity-equality semantics:
// two keys are the same entry only if they are the same Key value.
package table

import "github.com/falcon-lang/falcon/pkg/value"

// Key is implemented by any interned-string-like key. Two keys with equal
// Hash and equal Bytes are considered the same entry by FindString (used
// for interning); ordinary Get/Set/Delete compare key identity directly
// (interned strings are unique per content, so identity comparison
// suffices there).
type Key interface {
	Hash() uint32
	Bytes() []byte
}

const maxLoadFactor = 0.75

type entry struct {
	key       Key
	val       value.Value
	present   bool // false both for never-used slots and for tombstones
	tombstone bool
}

// Table is an open-addressed hash table keyed by interned string handles.
type Table struct {
	entries []entry
	count   int // live entries + tombstones
	live    int // live entries only
}

// New creates an empty table.
func New() *Table { return &Table{} }

// Len returns the number of live (non-tombstone) entries.
func (t *Table) Len() int { return t.live }

func capOrZero(t *Table) int { return len(t.entries) }

// Get looks up key, returning its value and whether it was found.
func (t *Table) Get(key Key) (value.Value, bool) {
	if len(t.entries) == 0 {
		return value.Value{}, false
	}
	idx := t.findEntry(key)
	e := &t.entries[idx]
	if !e.present {
		return value.Value{}, false
	}
	return e.val, true
}

// Set inserts or updates key -> val, returning true if this created a new
// entry (the key was not previously present, including over a tombstone).
func (t *Table) Set(key Key, val value.Value) bool {
	if float64(t.count+1) > float64(capOrZero(t))*maxLoadFactor {
		t.grow(growCapacity(capOrZero(t)))
	}
	idx := t.findEntry(key)
	e := &t.entries[idx]
	isNew := !e.present
	if isNew && !e.tombstone {
		t.count++
	}
	if isNew {
		t.live++
	}
	e.key = key
	e.val = val
	e.present = true
	e.tombstone = false
	return isNew
}

// Delete removes key, turning its slot into a tombstone so that later
// probes for other keys still find their way past it. Returns whether the
// key was present.
func (t *Table) Delete(key Key) bool {
	if len(t.entries) == 0 {
		return false
	}
	idx := t.findEntry(key)
	e := &t.entries[idx]
	if !e.present {
		return false
	}
	e.present = false
	e.tombstone = true
	e.key = nil
	e.val = value.Value{}
	t.live--
	return true
}

// FindString looks for an already-interned key with the given hash and
// byte content, used by the string interner to decide whether a new
// literal shares an existing handle (spec.md invariant 2). It returns the
// existing Key, or nil if no matching entry exists.
func (t *Table) FindString(data []byte, hash uint32) Key {
	if len(t.entries) == 0 {
		return nil
	}
	mask := uint32(len(t.entries) - 1)
	idx := hash & mask
	for {
		e := &t.entries[idx]
		if !e.present && !e.tombstone {
			return nil
		}
		if e.present && e.key.Hash() == hash && bytesEqual(e.key.Bytes(), data) {
			return e.key
		}
		idx = (idx + 1) & mask
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// findEntry returns the slot index that key occupies or should occupy,
// walking past tombstones but stopping at the first true empty slot (or at
// an exact key match).
func (t *Table) findEntry(key Key) uint32 {
	mask := uint32(len(t.entries) - 1)
	idx := key.Hash() & mask
	var tombstone *uint32
	for {
		e := &t.entries[idx]
		if !e.present {
			if !e.tombstone {
				if tombstone != nil {
					return *tombstone
				}
				return idx
			}
			if tombstone == nil {
				i := idx
				tombstone = &i
			}
		} else if e.key == key {
			return idx
		}
		idx = (idx + 1) & mask
	}
}

func growCapacity(cap int) int {
	if cap < 8 {
		return 8
	}
	return cap * 2
}

func (t *Table) grow(newCap int) {
	newEntries := make([]entry, newCap)
	mask := uint32(newCap - 1)
	live := 0
	for _, e := range t.entries {
		if !e.present {
			continue
		}
		idx := e.key.Hash() & mask
		for newEntries[idx].present {
			idx = (idx + 1) & mask
		}
		newEntries[idx] = entry{key: e.key, val: e.val, present: true}
		live++
	}
	t.entries = newEntries
	t.count = live
	t.live = live
}

// Iter calls fn for every live entry, in unordered bucket order, per
// spec.md §4.D "iteration is unordered". fn must not mutate the table.
func (t *Table) Iter(fn func(key Key, val value.Value)) {
	for _, e := range t.entries {
		if e.present {
			fn(e.key, e.val)
		}
	}
}

// Keys returns the live keys, unordered.
func (t *Table) Keys() []Key {
	keys := make([]Key, 0, t.live)
	t.Iter(func(k Key, _ value.Value) { keys = append(keys, k) })
	return keys
}
