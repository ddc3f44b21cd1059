package engine

import (
	"math"
	"strconv"
	"unicode/utf8"

	"dynjson/budget"
)

// Write serializes doc according to flg. The output buffer is charged to
// the document's allocator and returned together with its Handle: the
// caller copies the bytes out and releases the handle through the same
// allocator, exactly as it would free an engine-owned C buffer.
func Write(doc *MutDoc, flg WriteFlag) ([]byte, budget.Handle, *WriteError) {
	if doc == nil || doc.root == nil {
		return nil, budget.NoHandle, writeErr(WriteErrInvalidParameter, "document has no root value")
	}

	w := &writer{alc: doc.alc, h: budget.NoHandle, flg: flg}
	if flg&WritePrettyTwoSpaces != 0 {
		w.indent = "  "
	} else if flg&WritePretty != 0 {
		w.indent = "    "
	}

	if err := w.writeVal(doc.root, 0); err != nil {
		w.release()
		return nil, budget.NoHandle, err
	}
	return w.buf, w.h, nil
}

// writer appends into a buffer whose capacity is charged to the budget.
type writer struct {
	alc    *budget.Allocator
	h      budget.Handle
	buf    []byte
	cap    int
	flg    WriteFlag
	indent string
}

// ensure books capacity for n more bytes, growing through Reallocate.
func (w *writer) ensure(n int) *WriteError {
	need := len(w.buf) + n
	if need <= w.cap {
		return nil
	}
	newCap := w.cap * 2
	if newCap < 256 {
		newCap = 256
	}
	for newCap < need {
		newCap *= 2
	}
	if w.h == budget.NoHandle {
		h, err := w.alc.Allocate(uint64(newCap))
		if err != nil {
			return writeErr(WriteErrMemoryAllocation, "memory allocation failed")
		}
		w.h = h
	} else {
		if _, err := w.alc.Reallocate(w.h, uint64(newCap)); err != nil {
			return writeErr(WriteErrMemoryAllocation, "memory allocation failed")
		}
	}
	w.cap = newCap
	return nil
}

func (w *writer) release() {
	if w.h != budget.NoHandle {
		w.alc.Free(w.h)
		w.h = budget.NoHandle
	}
	w.buf = nil
}

func (w *writer) push(s string) *WriteError {
	if err := w.ensure(len(s)); err != nil {
		return err
	}
	w.buf = append(w.buf, s...)
	return nil
}

func (w *writer) pushByte(c byte) *WriteError {
	if err := w.ensure(1); err != nil {
		return err
	}
	w.buf = append(w.buf, c)
	return nil
}

func (w *writer) pretty() bool { return w.indent != "" }

func (w *writer) newline(depth int) *WriteError {
	if err := w.ensure(1 + depth*len(w.indent)); err != nil {
		return err
	}
	w.buf = append(w.buf, '\n')
	for i := 0; i < depth; i++ {
		w.buf = append(w.buf, w.indent...)
	}
	return nil
}

func (w *writer) writeVal(v *MutVal, depth int) *WriteError {
	switch v.typ {
	case TypeNull:
		return w.push("null")
	case TypeBool:
		if v.b {
			return w.push("true")
		}
		return w.push("false")
	case TypeNum:
		return w.writeNum(v)
	case TypeStr:
		return w.writeString(v.s)
	case TypeRaw:
		return w.push(v.s)
	case TypeArr:
		return w.writeArr(v, depth)
	case TypeObj:
		return w.writeObj(v, depth)
	default:
		return writeErr(WriteErrInvalidValueType, "invalid value type in document")
	}
}

func (w *writer) writeNum(v *MutVal) *WriteError {
	switch v.sub {
	case SubUint:
		if err := w.ensure(20); err != nil {
			return err
		}
		w.buf = strconv.AppendUint(w.buf, v.u, 10)
		return nil
	case SubSint:
		if err := w.ensure(20); err != nil {
			return err
		}
		w.buf = strconv.AppendInt(w.buf, v.i, 10)
		return nil
	default:
		return w.writeReal(v.f)
	}
}

func (w *writer) writeReal(f float64) *WriteError {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		switch {
		case w.flg&WriteInfAndNanAsNull != 0:
			return w.push("null")
		case w.flg&WriteAllowInfAndNan != 0:
			switch {
			case math.IsNaN(f):
				return w.push("NaN")
			case f > 0:
				return w.push("Infinity")
			default:
				return w.push("-Infinity")
			}
		default:
			return writeErr(WriteErrNanOrInf, "nan or inf number is not allowed")
		}
	}

	s := strconv.FormatFloat(f, 'g', -1, 64)
	// Keep the token recognizably real: "3" round-trips as an integer, so
	// write "3.0" the way the original engine does.
	if !hasRealMark(s) {
		s += ".0"
	}
	return w.push(s)
}

func hasRealMark(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' || s[i] == 'e' || s[i] == 'E' {
			return true
		}
	}
	return false
}

const hexDigits = "0123456789abcdef"

func (w *writer) writeString(s string) *WriteError {
	if err := w.pushByte('"'); err != nil {
		return err
	}
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == '"':
			if err := w.push(`\"`); err != nil {
				return err
			}
			i++
		case c == '\\':
			if err := w.push(`\\`); err != nil {
				return err
			}
			i++
		case c == '/' && w.flg&WriteEscapeSlashes != 0:
			if err := w.push(`\/`); err != nil {
				return err
			}
			i++
		case c < 0x20:
			if err := w.writeControl(c); err != nil {
				return err
			}
			i++
		case c < 0x80:
			if err := w.pushByte(c); err != nil {
				return err
			}
			i++
		default:
			n, err := w.writeMultibyte(s[i:])
			if err != nil {
				return err
			}
			i += n
		}
	}
	return w.pushByte('"')
}

func (w *writer) writeControl(c byte) *WriteError {
	switch c {
	case '\b':
		return w.push(`\b`)
	case '\f':
		return w.push(`\f`)
	case '\n':
		return w.push(`\n`)
	case '\r':
		return w.push(`\r`)
	case '\t':
		return w.push(`\t`)
	default:
		if err := w.ensure(6); err != nil {
			return err
		}
		w.buf = append(w.buf, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xF])
		return nil
	}
}

// writeMultibyte handles one non-ASCII sequence and returns how many input
// bytes it consumed. Invalid UTF-8 is an error unless
// WriteAllowInvalidUnicode permits it, in which case the bad byte passes
// through verbatim, or becomes U+FFFD when escaping is on.
func (w *writer) writeMultibyte(s string) (int, *WriteError) {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError && size <= 1 {
		if w.flg&WriteAllowInvalidUnicode == 0 {
			return 0, writeErr(WriteErrInvalidString, "invalid utf-8 encoding in string")
		}
		if w.flg&WriteEscapeUnicode != 0 {
			return 1, w.escapeRune(utf8.RuneError)
		}
		return 1, w.pushByte(s[0])
	}
	if w.flg&WriteEscapeUnicode != 0 {
		return size, w.escapeRune(r)
	}
	if err := w.push(s[:size]); err != nil {
		return 0, err
	}
	return size, nil
}

func (w *writer) escapeRune(r rune) *WriteError {
	if r > 0xFFFF {
		// Outside the BMP: write a surrogate pair.
		r -= 0x10000
		hi := 0xD800 + (r >> 10)
		lo := 0xDC00 + (r & 0x3FF)
		if err := w.escapeRune(hi); err != nil {
			return err
		}
		return w.escapeRune(lo)
	}
	if err := w.ensure(6); err != nil {
		return err
	}
	w.buf = append(w.buf, '\\', 'u',
		hexDigits[r>>12&0xF], hexDigits[r>>8&0xF], hexDigits[r>>4&0xF], hexDigits[r&0xF])
	return nil
}

func (w *writer) writeArr(v *MutVal, depth int) *WriteError {
	if len(v.elems) == 0 {
		return w.push("[]")
	}
	if err := w.pushByte('['); err != nil {
		return err
	}
	for i, elem := range v.elems {
		if i > 0 {
			if err := w.pushByte(','); err != nil {
				return err
			}
		}
		if w.pretty() {
			if err := w.newline(depth + 1); err != nil {
				return err
			}
		}
		if err := w.writeVal(elem, depth+1); err != nil {
			return err
		}
	}
	if w.pretty() {
		if err := w.newline(depth); err != nil {
			return err
		}
	}
	return w.pushByte(']')
}

func (w *writer) writeObj(v *MutVal, depth int) *WriteError {
	if len(v.elems) == 0 {
		return w.push("{}")
	}
	if err := w.pushByte('{'); err != nil {
		return err
	}
	for i, elem := range v.elems {
		if i > 0 {
			if err := w.pushByte(','); err != nil {
				return err
			}
		}
		if w.pretty() {
			if err := w.newline(depth + 1); err != nil {
				return err
			}
		}
		if err := w.writeString(v.keys[i]); err != nil {
			return err
		}
		if err := w.pushByte(':'); err != nil {
			return err
		}
		if w.pretty() {
			if err := w.pushByte(' '); err != nil {
				return err
			}
		}
		if err := w.writeVal(elem, depth+1); err != nil {
			return err
		}
	}
	if w.pretty() {
		if err := w.newline(depth); err != nil {
			return err
		}
	}
	return w.pushByte('}')
}
