package engine

import (
	"errors"
	"math"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"

	"dynjson/budget"
)

// valCost is the logical size charged per tree node, mirroring the node
// footprint of the original engine.
const valCost = 16

// maxNesting bounds container depth so malformed input cannot exhaust the
// goroutine stack. Deliberately higher than the mapper's own guard, which
// is the one that fires first on a full decode.
const maxNesting = 4096

// Read parses one JSON document from buf. All tree memory is charged to
// alc; a refused charge aborts the parse, releases everything taken so
// far, and reports ReadErrMemoryAllocation.
//
// A nil buf reports ReadErrInvalidParameter; empty or whitespace-only
// input reports ReadErrEmptyContent. Without ReadStopWhenDone, anything
// but whitespace (and comments, when allowed) after the root value
// reports ReadErrUnexpectedContent.
func Read(buf []byte, flg ReadFlag, alc *budget.Allocator) (*Doc, *ReadError) {
	if buf == nil {
		return nil, readErr(ReadErrInvalidParameter, "input data is nil", 0)
	}
	if len(buf) == 0 {
		return nil, readErr(ReadErrEmptyContent, "input data is empty", 0)
	}

	p := &parser{buf: buf, flg: flg, doc: &Doc{alc: alc}}

	if err := p.fail(p.skipSpace()); err != nil {
		return nil, err
	}
	if p.pos >= len(p.buf) {
		return nil, p.fail(readErr(ReadErrEmptyContent, "input data is empty", 0))
	}
	if p.buf[p.pos] == 0xEF {
		// A UTF-8 BOM is not valid JSON content.
		return nil, p.fail(readErr(ReadErrUnexpectedCharacter, "unexpected character", p.pos))
	}

	root, err := p.parseValue(0)
	if err != nil {
		return nil, p.fail(err)
	}
	p.doc.readSize = p.pos

	if flg&ReadStopWhenDone == 0 {
		if err := p.skipSpace(); err != nil {
			return nil, p.fail(err)
		}
		if p.pos < len(p.buf) {
			return nil, p.fail(readErr(ReadErrUnexpectedContent, "unexpected content after document", p.pos))
		}
	}

	p.doc.root = root
	return p.doc, nil
}

type parser struct {
	buf []byte
	pos int
	flg ReadFlag
	doc *Doc
}

// fail releases everything charged so far and passes the error through,
// so a failed read leaves the allocator balanced.
func (p *parser) fail(err *ReadError) *ReadError {
	if err != nil {
		p.doc.Free()
	}
	return err
}

// charge books n bytes against the budget and remembers the handle for
// Doc.Free.
func (p *parser) charge(n uint64) *ReadError {
	h, err := p.doc.alc.Allocate(n)
	if err != nil {
		return readErr(ReadErrMemoryAllocation, "memory allocation failed", p.pos)
	}
	p.doc.handles = append(p.doc.handles, h)
	return nil
}

func (p *parser) newVal() (*Val, *ReadError) {
	if err := p.charge(valCost); err != nil {
		return nil, err
	}
	return &Val{}, nil
}

// skipSpace consumes whitespace and, when allowed, comments.
func (p *parser) skipSpace() *ReadError {
	for p.pos < len(p.buf) {
		switch p.buf[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		case '/':
			if p.flg&ReadAllowComments == 0 {
				return nil
			}
			if err := p.skipComment(); err != nil {
				return err
			}
		default:
			return nil
		}
	}
	return nil
}

func (p *parser) skipComment() *ReadError {
	start := p.pos
	if p.pos+1 >= len(p.buf) {
		return readErr(ReadErrInvalidComment, "invalid comment", start)
	}
	switch p.buf[p.pos+1] {
	case '/':
		p.pos += 2
		for p.pos < len(p.buf) && p.buf[p.pos] != '\n' {
			p.pos++
		}
		return nil
	case '*':
		p.pos += 2
		for p.pos+1 < len(p.buf) {
			if p.buf[p.pos] == '*' && p.buf[p.pos+1] == '/' {
				p.pos += 2
				return nil
			}
			p.pos++
		}
		return readErr(ReadErrInvalidComment, "unclosed multi-line comment", start)
	default:
		return readErr(ReadErrInvalidComment, "invalid comment", start)
	}
}

func (p *parser) parseValue(depth int) (*Val, *ReadError) {
	if depth > maxNesting {
		return nil, readErr(ReadErrJSONStructure, "nesting too deep", p.pos)
	}
	if p.pos >= len(p.buf) {
		return nil, readErr(ReadErrUnexpectedEnd, "unexpected end of data", p.pos)
	}

	switch c := p.buf[p.pos]; {
	case c == '{':
		return p.parseObject(depth)
	case c == '[':
		return p.parseArray(depth)
	case c == '"':
		return p.parseStringVal()
	case c == 't':
		return p.parseLiteral("true")
	case c == 'f':
		return p.parseLiteral("false")
	case c == 'n':
		// "null" first; "nan" only with the permitting flag.
		if p.matches("null") || p.flg&ReadAllowInfAndNan == 0 {
			return p.parseLiteral("null")
		}
		return p.parseInfNan(false)
	case c == '-' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	case c == 'i' || c == 'I' || c == 'N':
		if p.flg&ReadAllowInfAndNan != 0 {
			return p.parseInfNan(false)
		}
		return nil, readErr(ReadErrUnexpectedCharacter, "unexpected character", p.pos)
	default:
		return nil, readErr(ReadErrUnexpectedCharacter, "unexpected character", p.pos)
	}
}

// matches reports whether the input at the cursor starts with s.
func (p *parser) matches(s string) bool {
	if p.pos+len(s) > len(p.buf) {
		return false
	}
	return string(p.buf[p.pos:p.pos+len(s)]) == s
}

func (p *parser) parseLiteral(lit string) (*Val, *ReadError) {
	start := p.pos
	if !p.matches(lit) {
		if p.pos+len(lit) > len(p.buf) && p.prefixOf(lit) {
			return nil, readErr(ReadErrUnexpectedEnd, "unexpected end of data", len(p.buf))
		}
		return nil, readErr(ReadErrLiteral, "invalid literal", start)
	}
	p.pos += len(lit)

	v, err := p.newVal()
	if err != nil {
		return nil, err
	}
	switch lit {
	case "null":
		v.typ = TypeNull
	case "true":
		v.typ, v.b = TypeBool, true
	case "false":
		v.typ, v.b = TypeBool, false
	}
	return v, nil
}

// prefixOf reports whether the remaining input is a strict prefix of lit,
// which distinguishes truncation ("tru") from corruption ("truu").
func (p *parser) prefixOf(lit string) bool {
	rest := p.buf[p.pos:]
	return len(rest) < len(lit) && string(rest) == lit[:len(rest)]
}

// parseInfNan handles the non-standard inf/nan literals, case-insensitive,
// with an optional leading minus already consumed by the caller.
func (p *parser) parseInfNan(neg bool) (*Val, *ReadError) {
	start := p.pos
	lower := func(b byte) byte {
		if b >= 'A' && b <= 'Z' {
			return b + 'a' - 'A'
		}
		return b
	}
	match := func(word string) bool {
		if p.pos+len(word) > len(p.buf) {
			return false
		}
		for i := 0; i < len(word); i++ {
			if lower(p.buf[p.pos+i]) != word[i] {
				return false
			}
		}
		p.pos += len(word)
		return true
	}

	var f float64
	switch {
	case match("infinity"), match("inf"):
		f = math.Inf(1)
		if neg {
			f = math.Inf(-1)
		}
	case match("nan"):
		f = math.NaN()
	default:
		return nil, readErr(ReadErrLiteral, "invalid literal", start)
	}

	if p.flg&ReadNumberAsRaw != 0 {
		tok := start
		if neg {
			// The minus sign was consumed before the literal; the raw
			// token must carry it.
			tok--
		}
		return p.rawVal(p.buf[tok:p.pos])
	}
	v, err := p.newVal()
	if err != nil {
		return nil, err
	}
	v.typ, v.sub, v.f = TypeNum, SubReal, f
	return v, nil
}

func (p *parser) rawVal(token []byte) (*Val, *ReadError) {
	if err := p.charge(valCost + uint64(len(token))); err != nil {
		return nil, err
	}
	raw := make([]byte, len(token))
	copy(raw, token)
	return &Val{typ: TypeRaw, s: raw}, nil
}

func (p *parser) parseNumber() (*Val, *ReadError) {
	start := p.pos
	neg := false
	if p.buf[p.pos] == '-' {
		neg = true
		p.pos++
		if p.pos < len(p.buf) {
			if c := p.buf[p.pos]; p.flg&ReadAllowInfAndNan != 0 && (c == 'i' || c == 'I' || c == 'n' || c == 'N') {
				return p.parseInfNan(true)
			}
		}
	}

	// Integer part: a single 0, or a nonzero digit run. Leading zeros are
	// invalid ("000", "01").
	if p.pos >= len(p.buf) {
		return nil, readErr(ReadErrUnexpectedEnd, "unexpected end of data", p.pos)
	}
	switch c := p.buf[p.pos]; {
	case c == '0':
		p.pos++
		if p.pos < len(p.buf) && isDigit(p.buf[p.pos]) {
			return nil, readErr(ReadErrInvalidNumber, "invalid number: leading zero", start)
		}
	case isDigit(c):
		for p.pos < len(p.buf) && isDigit(p.buf[p.pos]) {
			p.pos++
		}
	default:
		return nil, readErr(ReadErrInvalidNumber, "invalid number: no digit after minus sign", start)
	}

	hasFrac, hasExp := false, false
	if p.pos < len(p.buf) && p.buf[p.pos] == '.' {
		hasFrac = true
		p.pos++
		if p.pos >= len(p.buf) || !isDigit(p.buf[p.pos]) {
			return nil, readErr(ReadErrInvalidNumber, "invalid number: no digit after decimal point", start)
		}
		for p.pos < len(p.buf) && isDigit(p.buf[p.pos]) {
			p.pos++
		}
	}
	if p.pos < len(p.buf) && (p.buf[p.pos] == 'e' || p.buf[p.pos] == 'E') {
		hasExp = true
		p.pos++
		if p.pos < len(p.buf) && (p.buf[p.pos] == '+' || p.buf[p.pos] == '-') {
			p.pos++
		}
		if p.pos >= len(p.buf) || !isDigit(p.buf[p.pos]) {
			return nil, readErr(ReadErrInvalidNumber, "invalid number: no digit after exponent", start)
		}
		for p.pos < len(p.buf) && isDigit(p.buf[p.pos]) {
			p.pos++
		}
	}

	token := p.buf[start:p.pos]
	if p.flg&ReadNumberAsRaw != 0 {
		return p.rawVal(token)
	}

	if !hasFrac && !hasExp {
		if neg {
			if i, err := strconv.ParseInt(string(token), 10, 64); err == nil {
				v, verr := p.newVal()
				if verr != nil {
					return nil, verr
				}
				v.typ, v.sub, v.i = TypeNum, SubSint, i
				return v, nil
			}
		} else {
			if u, err := strconv.ParseUint(string(token), 10, 64); err == nil {
				v, verr := p.newVal()
				if verr != nil {
					return nil, verr
				}
				v.typ, v.sub, v.u = TypeNum, SubUint, u
				return v, nil
			}
		}
		// Integer too large for 64 bits: keep it raw when asked, otherwise
		// fall back to float64.
		if p.flg&ReadBignumAsRaw != 0 {
			return p.rawVal(token)
		}
	}

	// Out-of-range values are usable: huge magnitudes come back as ±Inf
	// (handled below) and subnormal underflow rounds toward zero.
	f, err := strconv.ParseFloat(string(token), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return nil, readErr(ReadErrInvalidNumber, "invalid number", start)
	}
	if math.IsInf(f, 0) && p.flg&ReadAllowInfAndNan == 0 {
		return nil, readErr(ReadErrInvalidNumber, "real number is infinity", start)
	}
	v, verr := p.newVal()
	if verr != nil {
		return nil, verr
	}
	v.typ, v.sub, v.f = TypeNum, SubReal, f
	return v, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (p *parser) parseStringVal() (*Val, *ReadError) {
	s, insitu, err := p.parseString()
	if err != nil {
		return nil, err
	}
	var v *Val
	if insitu {
		// In-situ strings reference the caller's buffer and cost nothing.
		if err := p.charge(valCost); err != nil {
			return nil, err
		}
		v = &Val{}
	} else {
		if err := p.charge(valCost + uint64(len(s))); err != nil {
			return nil, err
		}
		v = &Val{}
	}
	v.typ, v.s = TypeStr, s
	return v, nil
}

// parseString consumes one quoted string and returns its content.
// insitu reports that the returned slice aliases the input buffer.
func (p *parser) parseString() ([]byte, bool, *ReadError) {
	start := p.pos
	p.pos++ // opening quote

	// Fast scan: find the closing quote, noting whether any escapes occur.
	i := p.pos
	escaped := false
	for {
		if i >= len(p.buf) {
			return nil, false, readErr(ReadErrUnexpectedEnd, "unexpected end of string", start)
		}
		c := p.buf[i]
		if c == '"' {
			break
		}
		if c == '\\' {
			escaped = true
			i += 2
			continue
		}
		if c < 0x20 {
			return nil, false, readErr(ReadErrInvalidString, "unescaped control character in string", i)
		}
		i++
	}

	if !escaped {
		content := p.buf[p.pos:i]
		if p.flg&ReadAllowInvalidUnicode == 0 && !utf8.Valid(content) {
			return nil, false, readErr(ReadErrInvalidString, "invalid UTF-8 encoding in string", start)
		}
		p.pos = i + 1
		if p.flg&ReadInsitu != 0 {
			return content, true, nil
		}
		out := make([]byte, len(content))
		copy(out, content)
		return out, false, nil
	}

	// Slow path: rebuild the content, resolving escapes.
	out := make([]byte, 0, i-p.pos)
	for {
		if p.pos >= len(p.buf) {
			return nil, false, readErr(ReadErrUnexpectedEnd, "unexpected end of string", start)
		}
		c := p.buf[p.pos]
		switch {
		case c == '"':
			p.pos++
			if p.flg&ReadAllowInvalidUnicode == 0 && !utf8.Valid(out) {
				return nil, false, readErr(ReadErrInvalidString, "invalid UTF-8 encoding in string", start)
			}
			return out, false, nil
		case c == '\\':
			var err *ReadError
			out, err = p.parseEscape(out)
			if err != nil {
				return nil, false, err
			}
		case c < 0x20:
			return nil, false, readErr(ReadErrInvalidString, "unescaped control character in string", p.pos)
		default:
			out = append(out, c)
			p.pos++
		}
	}
}

func (p *parser) parseEscape(out []byte) ([]byte, *ReadError) {
	esc := p.pos
	p.pos++ // backslash
	if p.pos >= len(p.buf) {
		return nil, readErr(ReadErrUnexpectedEnd, "unexpected end of string", esc)
	}
	c := p.buf[p.pos]
	p.pos++
	switch c {
	case '"', '\\', '/':
		return append(out, c), nil
	case 'b':
		return append(out, '\b'), nil
	case 'f':
		return append(out, '\f'), nil
	case 'n':
		return append(out, '\n'), nil
	case 'r':
		return append(out, '\r'), nil
	case 't':
		return append(out, '\t'), nil
	case 'u':
		hi, err := p.parseHex4(esc)
		if err != nil {
			return nil, err
		}
		if utf16.IsSurrogate(rune(hi)) {
			// A high surrogate must be followed by \uDCxx..\uDFxx; anything
			// else is an invalid escape regardless of the unicode flag.
			if p.pos+1 < len(p.buf) && p.buf[p.pos] == '\\' && p.buf[p.pos+1] == 'u' {
				save := p.pos
				p.pos += 2
				lo, err := p.parseHex4(esc)
				if err != nil {
					return nil, err
				}
				r := utf16.DecodeRune(rune(hi), rune(lo))
				if r != utf8.RuneError {
					return utf8.AppendRune(out, r), nil
				}
				p.pos = save
			}
			if p.flg&ReadAllowInvalidUnicode == 0 {
				return nil, readErr(ReadErrInvalidString, "invalid escaped sequence in string", esc)
			}
			return utf8.AppendRune(out, utf8.RuneError), nil
		}
		return utf8.AppendRune(out, rune(hi)), nil
	default:
		return nil, readErr(ReadErrInvalidString, "invalid escaped character in string", esc)
	}
}

func (p *parser) parseHex4(esc int) (uint32, *ReadError) {
	if p.pos+4 > len(p.buf) {
		return 0, readErr(ReadErrUnexpectedEnd, "unexpected end of string", esc)
	}
	var n uint32
	for i := 0; i < 4; i++ {
		c := p.buf[p.pos+i]
		switch {
		case c >= '0' && c <= '9':
			n = n<<4 | uint32(c-'0')
		case c >= 'a' && c <= 'f':
			n = n<<4 | uint32(c-'a'+10)
		case c >= 'A' && c <= 'F':
			n = n<<4 | uint32(c-'A'+10)
		default:
			return 0, readErr(ReadErrInvalidString, "invalid escaped sequence in string", esc)
		}
	}
	p.pos += 4
	return n, nil
}

func (p *parser) parseArray(depth int) (*Val, *ReadError) {
	v, err := p.newVal()
	if err != nil {
		return nil, err
	}
	v.typ = TypeArr
	p.pos++ // '['

	if err := p.skipSpace(); err != nil {
		return nil, err
	}
	if p.pos >= len(p.buf) {
		return nil, readErr(ReadErrUnexpectedEnd, "unexpected end of data", p.pos)
	}
	if p.buf[p.pos] == ']' {
		p.pos++
		return v, nil
	}

	for {
		elem, err := p.parseValue(depth + 1)
		if err != nil {
			return nil, err
		}
		v.arr = append(v.arr, elem)

		if err := p.skipSpace(); err != nil {
			return nil, err
		}
		if p.pos >= len(p.buf) {
			return nil, readErr(ReadErrUnexpectedEnd, "unexpected end of data", p.pos)
		}
		switch p.buf[p.pos] {
		case ',':
			p.pos++
			if err := p.skipSpace(); err != nil {
				return nil, err
			}
			if p.pos < len(p.buf) && p.buf[p.pos] == ']' {
				if p.flg&ReadAllowTrailingCommas == 0 {
					return nil, readErr(ReadErrJSONStructure, "trailing comma is not allowed", p.pos-1)
				}
				p.pos++
				return v, nil
			}
		case ']':
			p.pos++
			return v, nil
		default:
			return nil, readErr(ReadErrUnexpectedCharacter, "unexpected character", p.pos)
		}
	}
}

func (p *parser) parseObject(depth int) (*Val, *ReadError) {
	v, err := p.newVal()
	if err != nil {
		return nil, err
	}
	v.typ = TypeObj
	p.pos++ // '{'

	if err := p.skipSpace(); err != nil {
		return nil, err
	}
	if p.pos >= len(p.buf) {
		return nil, readErr(ReadErrUnexpectedEnd, "unexpected end of data", p.pos)
	}
	if p.buf[p.pos] == '}' {
		p.pos++
		return v, nil
	}

	for {
		if p.pos >= len(p.buf) {
			return nil, readErr(ReadErrUnexpectedEnd, "unexpected end of data", p.pos)
		}
		if p.buf[p.pos] != '"' {
			return nil, readErr(ReadErrUnexpectedCharacter, "unexpected character, expected a string key", p.pos)
		}
		key, insitu, err := p.parseString()
		if err != nil {
			return nil, err
		}
		if !insitu {
			// Key bytes were copied; charge them like any other string.
			if cerr := p.charge(uint64(len(key))); cerr != nil {
				return nil, cerr
			}
		}

		if err := p.skipSpace(); err != nil {
			return nil, err
		}
		if p.pos >= len(p.buf) {
			return nil, readErr(ReadErrUnexpectedEnd, "unexpected end of data", p.pos)
		}
		if p.buf[p.pos] != ':' {
			return nil, readErr(ReadErrUnexpectedCharacter, "unexpected character, expected a colon", p.pos)
		}
		p.pos++
		if err := p.skipSpace(); err != nil {
			return nil, err
		}

		elem, perr := p.parseValue(depth + 1)
		if perr != nil {
			return nil, perr
		}
		v.obj = append(v.obj, Member{Key: string(key), Val: elem})

		if err := p.skipSpace(); err != nil {
			return nil, err
		}
		if p.pos >= len(p.buf) {
			return nil, readErr(ReadErrUnexpectedEnd, "unexpected end of data", p.pos)
		}
		switch p.buf[p.pos] {
		case ',':
			p.pos++
			if err := p.skipSpace(); err != nil {
				return nil, err
			}
			if p.pos < len(p.buf) && p.buf[p.pos] == '}' {
				if p.flg&ReadAllowTrailingCommas == 0 {
					return nil, readErr(ReadErrJSONStructure, "trailing comma is not allowed", p.pos-1)
				}
				p.pos++
				return v, nil
			}
		case '}':
			p.pos++
			return v, nil
		default:
			return nil, readErr(ReadErrUnexpectedCharacter, "unexpected character", p.pos)
		}
	}
}
