package engine

import "dynjson/budget"

// docCost is the fixed charge for a mutable document's own bookkeeping,
// taken at construction so an exhausted budget fails immediately.
const docCost = 64

// Container backing stores are charged per slot and grown through
// Reallocate, mirroring a malloc/realloc growth pattern.
const (
	arrSlotCost = 8  // one element pointer
	objSlotCost = 24 // key header + element pointer
)

// MutVal is one node of a document under construction. Nodes are created
// through the MutDoc constructors below; a nil *MutVal from a constructor
// means the budget refused the allocation.
type MutVal struct {
	typ Type
	sub Subtype

	b bool
	u uint64
	i int64
	f float64
	s string

	elems   []*MutVal
	keys    []string // parallel to elems for TypeObj
	backing budget.Handle
	cap     int
}

// Type returns the node kind.
func (v *MutVal) Type() Type { return v.typ }

// Len returns the element count of a container node.
func (v *MutVal) Len() int { return len(v.elems) }

// MutDoc owns one tree under construction and the allocations backing it.
type MutDoc struct {
	alc     *budget.Allocator
	handles []budget.Handle
	root    *MutVal
}

// NewMutDoc creates an empty mutable document charged to alc.
// Construction failure is a memory error in its own right.
func NewMutDoc(alc *budget.Allocator) (*MutDoc, error) {
	h, err := alc.Allocate(docCost)
	if err != nil {
		return nil, err
	}
	return &MutDoc{alc: alc, handles: []budget.Handle{h}}, nil
}

// Exhausted reports whether the underlying allocator has refused any
// allocation. The flag is sticky; builders consult it to distinguish
// "value was unmappable" from "value failed to allocate".
func (d *MutDoc) Exhausted() bool { return d.alc.Exhausted() }

// SetRoot installs the document root.
func (d *MutDoc) SetRoot(v *MutVal) { d.root = v }

// Root returns the document root, nil if unset.
func (d *MutDoc) Root() *MutVal { return d.root }

// Free releases every allocation charged to the document.
func (d *MutDoc) Free() {
	for _, h := range d.handles {
		d.alc.Free(h)
	}
	d.handles = nil
	d.root = nil
}

// charge books n bytes and returns false if the budget refuses.
func (d *MutDoc) charge(n uint64) bool {
	h, err := d.alc.Allocate(n)
	if err != nil {
		return false
	}
	d.handles = append(d.handles, h)
	return true
}

func (d *MutDoc) newVal(extra uint64) *MutVal {
	if !d.charge(valCost + extra) {
		return nil
	}
	return &MutVal{backing: budget.NoHandle}
}

// Null creates a JSON null node.
func (d *MutDoc) Null() *MutVal {
	v := d.newVal(0)
	if v != nil {
		v.typ = TypeNull
	}
	return v
}

// Bool creates a boolean node.
func (d *MutDoc) Bool(b bool) *MutVal {
	v := d.newVal(0)
	if v != nil {
		v.typ, v.b = TypeBool, b
	}
	return v
}

// Uint creates an unsigned integer node.
func (d *MutDoc) Uint(u uint64) *MutVal {
	v := d.newVal(0)
	if v != nil {
		v.typ, v.sub, v.u = TypeNum, SubUint, u
	}
	return v
}

// Sint creates a signed integer node.
func (d *MutDoc) Sint(i int64) *MutVal {
	v := d.newVal(0)
	if v != nil {
		v.typ, v.sub, v.i = TypeNum, SubSint, i
	}
	return v
}

// Real creates a floating-point node.
func (d *MutDoc) Real(f float64) *MutVal {
	v := d.newVal(0)
	if v != nil {
		v.typ, v.sub, v.f = TypeNum, SubReal, f
	}
	return v
}

// Str creates a string node. The string bytes are charged along with the
// node itself.
func (d *MutDoc) Str(s string) *MutVal {
	v := d.newVal(uint64(len(s)))
	if v != nil {
		v.typ, v.s = TypeStr, s
	}
	return v
}

// Raw creates a raw node whose token text is written through verbatim.
func (d *MutDoc) Raw(s string) *MutVal {
	v := d.newVal(uint64(len(s)))
	if v != nil {
		v.typ, v.s = TypeRaw, s
	}
	return v
}

// Arr creates an empty array node.
func (d *MutDoc) Arr() *MutVal {
	v := d.newVal(0)
	if v != nil {
		v.typ = TypeArr
	}
	return v
}

// Obj creates an empty object node.
func (d *MutDoc) Obj() *MutVal {
	v := d.newVal(0)
	if v != nil {
		v.typ = TypeObj
	}
	return v
}

// grow makes room for one more slot in a container's backing store,
// doubling capacity through Reallocate so the budget sees the same
// grow-in-place pattern a realloc-based engine produces.
func (d *MutDoc) grow(v *MutVal, slotCost uint64) bool {
	if len(v.elems) < v.cap {
		return true
	}
	newCap := v.cap * 2
	if newCap == 0 {
		newCap = 4
	}
	if v.backing == budget.NoHandle {
		h, err := d.alc.Allocate(uint64(newCap) * slotCost)
		if err != nil {
			return false
		}
		d.handles = append(d.handles, h)
		v.backing = h
	} else {
		if _, err := d.alc.Reallocate(v.backing, uint64(newCap)*slotCost); err != nil {
			return false
		}
	}
	v.cap = newCap
	return true
}

// ArrAppend appends elem to array node arr.
// Returns false on a type mismatch or a refused allocation.
func (d *MutDoc) ArrAppend(arr, elem *MutVal) bool {
	if arr == nil || elem == nil || arr.typ != TypeArr {
		return false
	}
	if !d.grow(arr, arrSlotCost) {
		return false
	}
	arr.elems = append(arr.elems, elem)
	return true
}

// ObjAdd appends a key/value member to object node obj. The key bytes are
// charged with the slot. Duplicate keys are kept; later members win when
// the tree is mapped back into a container.
func (d *MutDoc) ObjAdd(obj *MutVal, key string, elem *MutVal) bool {
	if obj == nil || elem == nil || obj.typ != TypeObj {
		return false
	}
	if !d.charge(uint64(len(key))) {
		return false
	}
	if !d.grow(obj, objSlotCost) {
		return false
	}
	obj.keys = append(obj.keys, key)
	obj.elems = append(obj.elems, elem)
	return true
}
