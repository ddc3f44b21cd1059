// Package engine implements the JSON reading and writing engine.
//
// The engine is deliberately self-contained behind a narrow interface, the
// way the original vendored parser was: callers hand it a byte buffer, a
// set of behavior flags, and a budget.Allocator, and receive back either a
// parsed tree or a structured error carrying a numeric code and a byte
// position. Every byte of tree memory the engine builds is charged to the
// caller's allocator, so a memory ceiling aborts parsing or serialization
// early instead of producing partial results.
//
// Reading:
//
//	doc, rerr := engine.Read(data, engine.ReadNoFlag, alc)
//	...walk doc.Root()...
//	doc.Free()
//
// Writing:
//
//	doc, err := engine.NewMutDoc(alc)
//	doc.SetRoot(doc.Str("hello"))
//	out, h, werr := engine.Write(doc, engine.WriteNoFlag)
//	...copy out...
//	alc.Free(h)
//	doc.Free()
package engine

// PaddingSize is the number of trailing scratch bytes an in-situ read
// requires after the JSON payload. Input "[1,2]" must arrive as
// "[1,2]\x00\x00\x00\x00" with the padding excluded from the usable length.
const PaddingSize = 4

// ReadFlag controls reader behavior. Flags are bitwise-combinable.
// The default (ReadNoFlag) is RFC 8259 strict: positive integers read as
// uint64, negative as int64, reals as float64 with correct rounding,
// out-of-range integers as float64, and errors on trailing commas,
// comments, inf/nan literals, invalid UTF-8 and BOM.
type ReadFlag uint32

const (
	ReadNoFlag ReadFlag = 0

	// ReadInsitu lets the reader reference the input buffer for string
	// values instead of copying them. The caller must keep the input alive
	// for the life of the Doc and supply PaddingSize trailing bytes.
	ReadInsitu ReadFlag = 1 << 0

	// ReadStopWhenDone stops after one complete value instead of erroring
	// on trailing content. Doc.ReadSize reports how far the reader got,
	// which is what makes concatenated/NDJSON input decodable in sequence.
	ReadStopWhenDone ReadFlag = 1 << 1

	// ReadAllowTrailingCommas allows a single trailing comma at the end of
	// an object or array, such as [1,2,3,] or {"a":1,}.
	ReadAllowTrailingCommas ReadFlag = 1 << 2

	// ReadAllowComments allows C-style single-line and block comments.
	ReadAllowComments ReadFlag = 1 << 3

	// ReadAllowInfAndNan allows inf/nan numbers and literals,
	// case-insensitive, such as 1e999, NaN, inf, -Infinity.
	ReadAllowInfAndNan ReadFlag = 1 << 4

	// ReadNumberAsRaw reads numbers as raw strings (TypeRaw values);
	// inf/nan literals also read as raw when ReadAllowInfAndNan is set.
	ReadNumberAsRaw ReadFlag = 1 << 5

	// ReadAllowInvalidUnicode skips UTF-8 validation of string values.
	// Invalid escape sequences are still reported as errors.
	ReadAllowInvalidUnicode ReadFlag = 1 << 6

	// ReadBignumAsRaw reads integers that overflow uint64/int64 as raw
	// strings instead of converting them to float64.
	ReadBignumAsRaw ReadFlag = 1 << 7
)

// WriteFlag controls writer behavior. The default (WriteNoFlag) writes
// minified JSON, reports an error on inf/nan and on invalid UTF-8, and
// escapes neither unicode nor slashes.
type WriteFlag uint32

const (
	WriteNoFlag WriteFlag = 0

	// WritePretty indents with 4 spaces.
	WritePretty WriteFlag = 1 << 0

	// WriteEscapeUnicode escapes non-ASCII as \uXXXX, making the output
	// ASCII-only.
	WriteEscapeUnicode WriteFlag = 1 << 1

	// WriteEscapeSlashes escapes '/' as '\/'.
	WriteEscapeSlashes WriteFlag = 1 << 2

	// WriteAllowInfAndNan writes inf/nan numbers as 'Infinity' and 'NaN'
	// literals (non-standard).
	WriteAllowInfAndNan WriteFlag = 1 << 3

	// WriteInfAndNanAsNull writes inf/nan numbers as null.
	// Overrides WriteAllowInfAndNan.
	WriteInfAndNanAsNull WriteFlag = 1 << 4

	// WriteAllowInvalidUnicode copies invalid byte sequences through
	// verbatim; combined with WriteEscapeUnicode, invalid sequences are
	// escaped as U+FFFD instead.
	WriteAllowInvalidUnicode WriteFlag = 1 << 5

	// WritePrettyTwoSpaces indents with 2 spaces instead of 4.
	// Implies pretty output.
	WritePrettyTwoSpaces WriteFlag = 1 << 6
)
