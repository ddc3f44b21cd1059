package engine

import "dynjson/budget"

// Type identifies the kind of a parsed value. The numeric values are part
// of diagnostics ("unknown value type N") and must stay stable.
type Type uint8

const (
	TypeNone Type = 0 // absent / uninitialized
	TypeRaw  Type = 1 // raw number token kept as text
	TypeNull Type = 2
	TypeBool Type = 3
	TypeNum  Type = 4
	TypeStr  Type = 5
	TypeArr  Type = 6
	TypeObj  Type = 7
)

// Subtype refines TypeNum into its storage class.
type Subtype uint8

const (
	SubNone Subtype = 0
	SubUint Subtype = 1 // non-negative integer, stored as uint64
	SubSint Subtype = 2 // negative integer, stored as int64
	SubReal Subtype = 3 // floating point, stored as float64
)

// Val is one immutable node of a parsed document. It is only valid until
// the owning Doc is freed.
type Val struct {
	typ Type
	sub Subtype

	b bool
	u uint64
	i int64
	f float64
	s []byte // string content or raw number token

	arr []*Val
	obj []Member
}

// Member is one key/value pair of an object node. Duplicate keys are kept
// in input order; consumers decide how to resolve them.
type Member struct {
	Key string
	Val *Val
}

// Type returns the node kind.
func (v *Val) Type() Type { return v.typ }

// Subtype returns the numeric storage class; SubNone for non-numbers.
func (v *Val) Subtype() Subtype { return v.sub }

// Bool returns the boolean payload of a TypeBool node.
func (v *Val) Bool() bool { return v.b }

// Uint returns the payload of a SubUint number.
func (v *Val) Uint() uint64 { return v.u }

// Sint returns the payload of a SubSint number.
func (v *Val) Sint() int64 { return v.i }

// Real returns the payload of a SubReal number.
func (v *Val) Real() float64 { return v.f }

// Str returns the payload of a TypeStr node.
func (v *Val) Str() string { return string(v.s) }

// Raw returns the verbatim token text of a TypeRaw node.
func (v *Val) Raw() string { return string(v.s) }

// Arr returns the elements of a TypeArr node in document order.
func (v *Val) Arr() []*Val { return v.arr }

// Obj returns the members of a TypeObj node in document order.
func (v *Val) Obj() []Member { return v.obj }

// Doc owns one parsed tree and the allocations backing it.
type Doc struct {
	root     *Val
	readSize int
	alc      *budget.Allocator
	handles  []budget.Handle
}

// Root returns the document's root value.
func (d *Doc) Root() *Val { return d.root }

// ReadSize returns the number of input bytes consumed through the end of
// the root value. With ReadStopWhenDone this is where the next
// concatenated document starts.
func (d *Doc) ReadSize() int { return d.readSize }

// Free releases every allocation charged while parsing. The tree must not
// be used afterwards.
func (d *Doc) Free() {
	for _, h := range d.handles {
		d.alc.Free(h)
	}
	d.handles = nil
	d.root = nil
}
