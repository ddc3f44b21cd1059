package engine

import (
	"math"
	"strings"
	"testing"

	"dynjson/budget"
)

// readOK parses input and fails the test on error. The caller owns the doc.
func readOK(t *testing.T, input string, flg ReadFlag, alc *budget.Allocator) *Doc {
	t.Helper()
	doc, rerr := Read([]byte(input), flg, alc)
	if rerr != nil {
		t.Fatalf("Read(%q) failed: %v (code %d)", input, rerr, rerr.Code)
	}
	return doc
}

func TestReadScalars(t *testing.T) {
	alc := budget.New(0)

	cases := []struct {
		input string
		check func(t *testing.T, v *Val)
	}{
		{"null", func(t *testing.T, v *Val) {
			if v.Type() != TypeNull {
				t.Errorf("type: got %d, want null", v.Type())
			}
		}},
		{"true", func(t *testing.T, v *Val) {
			if v.Type() != TypeBool || !v.Bool() {
				t.Errorf("got type %d bool %v, want true", v.Type(), v.Bool())
			}
		}},
		{"false", func(t *testing.T, v *Val) {
			if v.Type() != TypeBool || v.Bool() {
				t.Errorf("got type %d bool %v, want false", v.Type(), v.Bool())
			}
		}},
		{"123", func(t *testing.T, v *Val) {
			if v.Subtype() != SubUint || v.Uint() != 123 {
				t.Errorf("got sub %d val %d, want uint 123", v.Subtype(), v.Uint())
			}
		}},
		{"0", func(t *testing.T, v *Val) {
			if v.Subtype() != SubUint || v.Uint() != 0 {
				t.Errorf("got sub %d, want uint 0", v.Subtype())
			}
		}},
		{"-42", func(t *testing.T, v *Val) {
			if v.Subtype() != SubSint || v.Sint() != -42 {
				t.Errorf("got sub %d val %d, want sint -42", v.Subtype(), v.Sint())
			}
		}},
		{"3.25", func(t *testing.T, v *Val) {
			if v.Subtype() != SubReal || v.Real() != 3.25 {
				t.Errorf("got sub %d val %v, want real 3.25", v.Subtype(), v.Real())
			}
		}},
		{"1e3", func(t *testing.T, v *Val) {
			if v.Subtype() != SubReal || v.Real() != 1000 {
				t.Errorf("got sub %d val %v, want real 1000", v.Subtype(), v.Real())
			}
		}},
		{`"hello"`, func(t *testing.T, v *Val) {
			if v.Type() != TypeStr || v.Str() != "hello" {
				t.Errorf("got type %d str %q, want hello", v.Type(), v.Str())
			}
		}},
		{`"aé\n\"b\""`, func(t *testing.T, v *Val) {
			if v.Str() != "aé\n\"b\"" {
				t.Errorf("escape decoding: got %q", v.Str())
			}
		}},
		{`"😀"`, func(t *testing.T, v *Val) {
			if v.Str() != "\U0001F600" {
				t.Errorf("surrogate pair decoding: got %q", v.Str())
			}
		}},
	}

	for _, c := range cases {
		t.Run(c.input, func(t *testing.T) {
			doc := readOK(t, c.input, ReadNoFlag, alc)
			c.check(t, doc.Root())
			doc.Free()
		})
	}

	if alc.Usage() != 0 {
		t.Errorf("allocator usage after freeing all docs: got %d, want 0", alc.Usage())
	}
}

func TestReadContainers(t *testing.T) {
	alc := budget.New(0)
	doc := readOK(t, ` {"a": [1, -2, 3.5], "b": {"c": null}} `, ReadNoFlag, alc)
	defer doc.Free()

	root := doc.Root()
	if root.Type() != TypeObj {
		t.Fatalf("root type: got %d, want object", root.Type())
	}
	members := root.Obj()
	if len(members) != 2 {
		t.Fatalf("member count: got %d, want 2", len(members))
	}
	if members[0].Key != "a" || members[0].Val.Type() != TypeArr {
		t.Errorf("first member: got key %q type %d", members[0].Key, members[0].Val.Type())
	}
	arr := members[0].Val.Arr()
	if len(arr) != 3 {
		t.Fatalf("array length: got %d, want 3", len(arr))
	}
	if arr[0].Uint() != 1 || arr[1].Sint() != -2 || arr[2].Real() != 3.5 {
		t.Errorf("array elements mismatch: %d %d %v", arr[0].Uint(), arr[1].Sint(), arr[2].Real())
	}
	inner := members[1].Val.Obj()
	if len(inner) != 1 || inner[0].Key != "c" || inner[0].Val.Type() != TypeNull {
		t.Errorf("nested object mismatch: %+v", inner)
	}
}

func TestReadErrors(t *testing.T) {
	alc := budget.New(0)

	cases := []struct {
		name  string
		input string
		code  ReadCode
	}{
		{"empty", "", ReadErrEmptyContent},
		{"whitespace only", "  \n\t", ReadErrEmptyContent},
		{"trailing content", "[1]#", ReadErrUnexpectedContent},
		{"truncated array", "[123", ReadErrUnexpectedEnd},
		{"truncated string", `"abc`, ReadErrUnexpectedEnd},
		{"stray character", "[#]", ReadErrUnexpectedCharacter},
		{"bad literal", "truu", ReadErrLiteral},
		{"trailing comma array", "[1,]", ReadErrJSONStructure},
		{"trailing comma object", `{"a":1,}`, ReadErrJSONStructure},
		{"leading zero", "000", ReadErrInvalidNumber},
		{"dangling point", "123.e12", ReadErrInvalidNumber},
		{"bad escape", `"\x"`, ReadErrInvalidString},
		{"control char", "\"a\x01b\"", ReadErrInvalidString},
		{"lone surrogate", `"\ud800"`, ReadErrInvalidString},
		{"comment without flag", "[1] // x", ReadErrUnexpectedContent},
		{"inf without flag", "Infinity", ReadErrUnexpectedCharacter},
		{"key not string", "{1:2}", ReadErrUnexpectedCharacter},
		{"missing colon", `{"a" 1}`, ReadErrUnexpectedCharacter},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			doc, rerr := Read([]byte(c.input), ReadNoFlag, alc)
			if rerr == nil {
				doc.Free()
				t.Fatalf("Read(%q) should fail", c.input)
			}
			if rerr.Code != c.code {
				t.Errorf("code mismatch: got %d, want %d (%v)", rerr.Code, c.code, rerr)
			}
			if alc.Usage() != 0 {
				t.Errorf("failed read leaked %d bytes", alc.Usage())
			}
		})
	}

	if _, rerr := Read(nil, ReadNoFlag, alc); rerr == nil || rerr.Code != ReadErrInvalidParameter {
		t.Errorf("nil input: got %v, want invalid-parameter", rerr)
	}
}

func TestReadErrorPosition(t *testing.T) {
	alc := budget.New(0)
	_, rerr := Read([]byte(`[1, #]`), ReadNoFlag, alc)
	if rerr == nil {
		t.Fatal("Read should fail")
	}
	if rerr.Pos != 4 {
		t.Errorf("error position: got %d, want 4", rerr.Pos)
	}
	if got := rerr.Error(); !strings.Contains(got, "at 4") {
		t.Errorf("error text should carry the position, got %q", got)
	}
}

func TestReadStopWhenDone(t *testing.T) {
	alc := budget.New(0)
	input := "[1,2,3][4,5,6]"

	doc := readOK(t, input, ReadStopWhenDone, alc)
	if got := doc.ReadSize(); got != 7 {
		t.Errorf("ReadSize: got %d, want 7", got)
	}
	if len(doc.Root().Arr()) != 3 {
		t.Errorf("first document length: got %d, want 3", len(doc.Root().Arr()))
	}
	doc.Free()

	// The remainder parses as its own document.
	doc = readOK(t, input[7:], ReadStopWhenDone, alc)
	if len(doc.Root().Arr()) != 3 {
		t.Errorf("second document length: got %d, want 3", len(doc.Root().Arr()))
	}
	doc.Free()
}

func TestReadInsitu(t *testing.T) {
	alc := budget.New(0)
	payload := `{"a":[1,2]}`
	buf := append([]byte(payload), make([]byte, PaddingSize)...)

	// The facade trims the padding; the engine sees only the payload.
	doc, rerr := Read(buf[:len(payload)], ReadInsitu, alc)
	if rerr != nil {
		t.Fatalf("in-situ read failed: %v", rerr)
	}
	if got := doc.ReadSize(); got != len(payload) {
		t.Errorf("ReadSize: got %d, want %d", got, len(payload))
	}
	if doc.Root().Obj()[0].Key != "a" {
		t.Errorf("key mismatch: got %q", doc.Root().Obj()[0].Key)
	}
	doc.Free()
	if alc.Usage() != 0 {
		t.Errorf("usage after free: got %d, want 0", alc.Usage())
	}
}

func TestReadComments(t *testing.T) {
	alc := budget.New(0)
	input := "// leading\n[1, /* mid */ 2] // trailing"

	doc := readOK(t, input, ReadAllowComments, alc)
	if got := len(doc.Root().Arr()); got != 2 {
		t.Errorf("array length: got %d, want 2", got)
	}
	doc.Free()

	_, rerr := Read([]byte("[1 /* unclosed"), ReadAllowComments, alc)
	if rerr == nil || rerr.Code != ReadErrInvalidComment {
		t.Errorf("unclosed comment: got %v, want invalid-comment", rerr)
	}
}

func TestReadTrailingCommas(t *testing.T) {
	alc := budget.New(0)
	doc := readOK(t, `{"a":[1,2,],}`, ReadAllowTrailingCommas, alc)
	defer doc.Free()
	if got := len(doc.Root().Obj()[0].Val.Arr()); got != 2 {
		t.Errorf("array length: got %d, want 2", got)
	}
}

func TestReadInfAndNan(t *testing.T) {
	alc := budget.New(0)

	cases := []struct {
		input string
		check func(f float64) bool
	}{
		{"inf", func(f float64) bool { return math.IsInf(f, 1) }},
		{"-Infinity", func(f float64) bool { return math.IsInf(f, -1) }},
		{"NaN", func(f float64) bool { return math.IsNaN(f) }},
		{"nan", func(f float64) bool { return math.IsNaN(f) }},
		{"1e999", func(f float64) bool { return math.IsInf(f, 1) }},
	}
	for _, c := range cases {
		t.Run(c.input, func(t *testing.T) {
			doc := readOK(t, c.input, ReadAllowInfAndNan, alc)
			defer doc.Free()
			if v := doc.Root(); v.Subtype() != SubReal || !c.check(v.Real()) {
				t.Errorf("got sub %d val %v", v.Subtype(), v.Real())
			}
		})
	}

	// Without the flag an overflowing real is an error.
	if _, rerr := Read([]byte("1e999"), ReadNoFlag, alc); rerr == nil || rerr.Code != ReadErrInvalidNumber {
		t.Errorf("1e999 without flag: got %v, want invalid-number", rerr)
	}
}

func TestReadNumberAsRaw(t *testing.T) {
	alc := budget.New(0)

	cases := []struct {
		input string
		flg   ReadFlag
	}{
		{"123.456", ReadNumberAsRaw},
		{"-123.456", ReadNumberAsRaw},
		// Signed inf/nan literals must keep the sign in the raw token.
		{"-Infinity", ReadNumberAsRaw | ReadAllowInfAndNan},
		{"-inf", ReadNumberAsRaw | ReadAllowInfAndNan},
		{"NaN", ReadNumberAsRaw | ReadAllowInfAndNan},
	}
	for _, c := range cases {
		t.Run(c.input, func(t *testing.T) {
			doc := readOK(t, c.input, c.flg, alc)
			defer doc.Free()
			if v := doc.Root(); v.Type() != TypeRaw || v.Raw() != c.input {
				t.Errorf("got type %d raw %q, want raw %q", v.Type(), v.Raw(), c.input)
			}
		})
	}
}

func TestReadBignumAsRaw(t *testing.T) {
	alc := budget.New(0)
	big := "123456789012345678901234567890"

	// Default: integers that overflow 64 bits fall back to float64.
	doc := readOK(t, big, ReadNoFlag, alc)
	if v := doc.Root(); v.Subtype() != SubReal {
		t.Errorf("overflowing integer: got sub %d, want real", v.Subtype())
	}
	doc.Free()

	doc = readOK(t, big, ReadBignumAsRaw, alc)
	if v := doc.Root(); v.Type() != TypeRaw || v.Raw() != big {
		t.Errorf("got type %d raw %q", v.Type(), v.Raw())
	}
	doc.Free()
}

func TestReadInvalidUnicode(t *testing.T) {
	alc := budget.New(0)
	input := []byte{'"', 0xFF, 0xFE, '"'}

	if _, rerr := Read(input, ReadNoFlag, alc); rerr == nil || rerr.Code != ReadErrInvalidString {
		t.Errorf("invalid UTF-8 without flag: got %v, want invalid-string", rerr)
	}

	doc, rerr := Read(input, ReadAllowInvalidUnicode, alc)
	if rerr != nil {
		t.Fatalf("invalid UTF-8 with flag failed: %v", rerr)
	}
	if got := doc.Root().Str(); got != "\xFF\xFE" {
		t.Errorf("bytes should pass through, got %q", got)
	}
	doc.Free()
}

func TestReadMemoryCeiling(t *testing.T) {
	alc := budget.New(32)
	_, rerr := Read([]byte(`[1,2,3,4,5,6,7,8,9]`), ReadNoFlag, alc)
	if rerr == nil {
		t.Fatal("read under a tiny ceiling must fail")
	}
	if rerr.Code != ReadErrMemoryAllocation {
		t.Errorf("code: got %d, want memory-allocation", rerr.Code)
	}
	if !alc.Exhausted() {
		t.Error("allocator must carry the sticky out-of-memory flag")
	}
	if alc.Usage() != 0 {
		t.Errorf("failed read leaked %d bytes", alc.Usage())
	}
	alc.Dispose()
}

func TestReadDeepNesting(t *testing.T) {
	alc := budget.New(0)
	depth := maxNesting + 10
	input := strings.Repeat("[", depth) + strings.Repeat("]", depth)

	_, rerr := Read([]byte(input), ReadNoFlag, alc)
	if rerr == nil || rerr.Code != ReadErrJSONStructure {
		t.Errorf("over-deep input: got %v, want json-structure", rerr)
	}
	if alc.Usage() != 0 {
		t.Errorf("failed read leaked %d bytes", alc.Usage())
	}
}
