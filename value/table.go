// Package value defines the dynamic value model produced by decoding and
// consumed by encoding.
//
// Scalars are plain Go values carried in an `any`: nil, bool, int64,
// uint64, float64 and string (every other integer width is also accepted
// on encode).
// Containers are *Table, a single container type serving both array and
// object roles, the way a scripting-language table does:
//
//   - positive integer keys form the array part (1-based positions)
//   - string keys form the object part
//   - index -1 is a reserved marker slot holding a sentinel that pins the
//     container's intent (as-array / as-object) when shape alone is
//     ambiguous, e.g. when the container is empty
//
// Setting any entry to nil deletes it. That rule is what makes the
// explicit-null distinction observable: a decoded JSON null inserts
// nothing unless the caller asked for the Null sentinel instead.
package value

import "sort"

// Table is the container variant of the dynamic value model.
// It is not safe for concurrent mutation; a decoded tree is exclusively
// owned by the call that produced it.
type Table struct {
	ints map[int64]any
	strs map[string]any
}

// NewTable returns an empty container.
func NewTable() *Table {
	return &Table{
		ints: make(map[int64]any),
		strs: make(map[string]any),
	}
}

// SetIndex sets the entry at integer key i. A nil value deletes the entry.
func (t *Table) SetIndex(i int64, v any) {
	if v == nil {
		delete(t.ints, i)
		return
	}
	t.ints[i] = v
}

// Index returns the entry at integer key i, or nil if absent.
func (t *Table) Index(i int64) any { return t.ints[i] }

// Set sets the entry at string key k. A nil value deletes the entry.
func (t *Table) Set(k string, v any) {
	if v == nil {
		delete(t.strs, k)
		return
	}
	t.strs[k] = v
}

// Get returns the entry at string key k, or nil if absent.
func (t *Table) Get(k string) any { return t.strs[k] }

// Len returns the length of the contiguous array part: the largest n such
// that every index 1..n is present. A container with keys {1,2,5} has
// Len() == 2; the marker slot at -1 does not count.
func (t *Table) Len() int64 {
	var n int64
	for {
		if _, ok := t.ints[n+1]; !ok {
			return n
		}
		n++
	}
}

// IntKeys returns all positive integer keys in ascending order.
// The marker slot and any non-positive keys are excluded.
func (t *Table) IntKeys() []int64 {
	keys := make([]int64, 0, len(t.ints))
	for k := range t.ints {
		if k > 0 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// StringKeys returns all string keys in ascending order.
func (t *Table) StringKeys() []string {
	keys := make([]string, 0, len(t.strs))
	for k := range t.strs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Size returns the total number of entries across both parts, marker slot
// included. Useful for tests and diagnostics.
func (t *Table) Size() int { return len(t.ints) + len(t.strs) }
