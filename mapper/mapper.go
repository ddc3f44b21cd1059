// Package mapper converts between the engine's JSON trees and the dynamic
// value model.
//
// Decode direction: engine.Val → any (scalars and *value.Table), with two
// behavior switches. withNull substitutes the Null sentinel for explicit
// JSON nulls so callers can tell them apart from absent keys; withRef
// stamps each container's marker slot with the AsArray/AsObject sentinel
// so empty containers round-trip unambiguously.
//
// Encode direction: any → engine.MutVal tree. Accepted scalars are nil,
// the sentinels, bool, every signed and unsigned integer width, float32,
// float64 and string. Containers are disambiguated by a single decision
// in this priority order:
//
//  1. marker slot holds AsObject → object, regardless of integer keys
//  2. marker slot holds AsArray  → array
//  3. contiguous positive-integer run from 1 is non-empty → array
//  4. otherwise → object
//
// Array encode walks positive integer keys in ascending order and fills
// key gaps with explicit JSON nulls, so final positions always equal the
// 1-based source keys. Unmappable values yield a nil node ("no value");
// it is the caller's job to decide what that means. Allocation refusals
// short-circuit the walk immediately.
package mapper

import (
	"fmt"

	"dynjson/engine"
	"dynjson/sentinel"
	"dynjson/value"
)

// Error codes for failures detected in the mapper itself, distinct from
// the engine's read/write code spaces.
const (
	CodeUnknownValueType = 100
	CodeStackExhaustion  = 101
)

// Error reports a mapper failure with its numeric code.
type Error struct {
	Code int
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// maxDepth bounds decode recursion. It is intentionally lower than the
// engine's own nesting limit, so on a full decode the mapper's
// resource-exhaustion error is the one that fires.
const maxDepth = 1024

// markerIndex is the reserved table slot holding the container-intent
// sentinel: the position immediately before the first valid array index.
const markerIndex = -1

// Mapper converts values using the sentinels of one registry.
// It is stateless apart from the registry and safe for concurrent use.
type Mapper struct {
	reg *sentinel.Registry
}

// New creates a Mapper bound to reg. Sentinels decoded by this Mapper
// carry reg's identities, and only reg's identities are recognized when
// encoding.
func New(reg *sentinel.Registry) *Mapper {
	return &Mapper{reg: reg}
}

// ToValue converts a parsed engine node into a dynamic value.
//
// Explicit nulls become nil unless withNull is set, in which case they
// become the Null sentinel. Children that convert to nil are not inserted
// into containers, which is what makes the two cases distinguishable.
func (m *Mapper) ToValue(v *engine.Val, withNull, withRef bool) (any, *Error) {
	return m.toValue(v, withNull, withRef, 0)
}

func (m *Mapper) toValue(v *engine.Val, withNull, withRef bool, depth int) (any, *Error) {
	switch v.Type() {
	case engine.TypeNull:
		if withNull {
			return m.reg.Null(), nil
		}
		return nil, nil

	case engine.TypeNone:
		return nil, nil

	case engine.TypeBool:
		return v.Bool(), nil

	case engine.TypeNum:
		switch v.Subtype() {
		case engine.SubUint:
			return v.Uint(), nil
		case engine.SubSint:
			return v.Sint(), nil
		default:
			return v.Real(), nil
		}

	case engine.TypeStr:
		return v.Str(), nil

	case engine.TypeArr:
		if depth >= maxDepth {
			return nil, &Error{Code: CodeStackExhaustion, Msg: "out of stack space"}
		}
		t := value.NewTable()
		if withRef {
			t.SetIndex(markerIndex, m.reg.AsArray())
		}
		for i, elem := range v.Arr() {
			child, err := m.toValue(elem, withNull, withRef, depth+1)
			if err != nil {
				return nil, err
			}
			// Positions are 1-based; nil children leave a gap.
			t.SetIndex(int64(i)+1, child)
		}
		return t, nil

	case engine.TypeObj:
		if depth >= maxDepth {
			return nil, &Error{Code: CodeStackExhaustion, Msg: "out of stack space"}
		}
		t := value.NewTable()
		if withRef {
			t.SetIndex(markerIndex, m.reg.AsObject())
		}
		for _, member := range v.Obj() {
			child, err := m.toValue(member.Val, withNull, withRef, depth+1)
			if err != nil {
				return nil, err
			}
			t.Set(member.Key, child)
		}
		return t, nil

	default:
		return nil, &Error{
			Code: CodeUnknownValueType,
			Msg:  fmt.Sprintf("unknown value type %d", v.Type()),
		}
	}
}

// containerKind is the decision for ambiguous containers, computed once
// and dispatched by ordinary branching.
type containerKind int

const (
	asArray containerKind = iota
	asObject
)

func (m *Mapper) kindOf(t *value.Table) containerKind {
	if mk, ok := t.Index(markerIndex).(*sentinel.Sentinel); ok {
		switch mk {
		case m.reg.AsObject():
			return asObject
		case m.reg.AsArray():
			return asArray
		}
	}
	if t.Len() > 0 {
		return asArray
	}
	return asObject
}

// ToNode converts a dynamic value into a node of doc.
//
// A nil return means either "no representable value" (callables, foreign
// sentinels, unsupported types) or an allocation refusal; callers tell
// the two apart through doc.Exhausted(), and must treat the sticky flag
// as authoritative.
func (m *Mapper) ToNode(doc *engine.MutDoc, v any) *engine.MutVal {
	switch x := v.(type) {
	case nil:
		return doc.Null()

	case *sentinel.Sentinel:
		if x == m.reg.Null() {
			return doc.Null()
		}
		// AsArray/AsObject outside a marker slot carry no value.
		return nil

	case bool:
		return doc.Bool(x)

	case int:
		return m.intNode(doc, int64(x))
	case int8:
		return m.intNode(doc, int64(x))
	case int16:
		return m.intNode(doc, int64(x))
	case int32:
		return m.intNode(doc, int64(x))
	case int64:
		return m.intNode(doc, x)

	case uint:
		return doc.Uint(uint64(x))
	case uint8:
		return doc.Uint(uint64(x))
	case uint16:
		return doc.Uint(uint64(x))
	case uint32:
		return doc.Uint(uint64(x))
	case uint64:
		return doc.Uint(x)

	case float32:
		return doc.Real(float64(x))
	case float64:
		return doc.Real(x)

	case string:
		return doc.Str(x)

	case *value.Table:
		if m.kindOf(x) == asArray {
			return m.arrayNode(doc, x)
		}
		return m.objectNode(doc, x)

	default:
		return nil
	}
}

// intNode applies the sign policy: integers above zero are written
// unsigned, the rest signed.
func (m *Mapper) intNode(doc *engine.MutDoc, i int64) *engine.MutVal {
	if i > 0 {
		return doc.Uint(uint64(i))
	}
	return doc.Sint(i)
}

// arrayNode encodes the positive-integer part of t in ascending key
// order, inserting explicit nulls into key gaps so that element positions
// match the source keys exactly: keys {1,2,5} produce length 5 with nulls
// at 3 and 4.
func (m *Mapper) arrayNode(doc *engine.MutDoc, t *value.Table) *engine.MutVal {
	arr := doc.Arr()
	if arr == nil {
		return nil
	}

	var prev int64
	for _, key := range t.IntKeys() {
		elem := m.ToNode(doc, t.Index(key))
		if doc.Exhausted() {
			return nil
		}
		if elem == nil {
			// Unmappable element: the entry is dropped, not null-filled.
			continue
		}
		for gap := prev + 1; gap < key; gap++ {
			null := doc.Null()
			if null == nil || !doc.ArrAppend(arr, null) {
				return nil
			}
		}
		if !doc.ArrAppend(arr, elem) {
			return nil
		}
		prev = key
	}
	return arr
}

// objectNode encodes the string-keyed part of t. Non-string keys are
// ignored; keys are walked in sorted order for deterministic output.
func (m *Mapper) objectNode(doc *engine.MutDoc, t *value.Table) *engine.MutVal {
	obj := doc.Obj()
	if obj == nil {
		return nil
	}

	for _, key := range t.StringKeys() {
		elem := m.ToNode(doc, t.Get(key))
		if doc.Exhausted() {
			return nil
		}
		if elem == nil {
			// Unmappable member: dropped.
			continue
		}
		if !doc.ObjAdd(obj, key, elem) {
			return nil
		}
	}
	return obj
}
