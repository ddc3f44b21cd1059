package document

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"dynjson/engine"
	"dynjson/mapper"
	"dynjson/value"
)

func TestDecodeBasic(t *testing.T) {
	c := New()

	v, n, err := c.Decode([]byte(`{"a":[1,2],"b":"x"}`), DecodeOptions{})
	require.NoError(t, err)
	require.Equal(t, 19, n)

	tbl := v.(*value.Table)
	require.Equal(t, "x", tbl.Get("b"))
	arr := tbl.Get("a").(*value.Table)
	require.Equal(t, int64(2), arr.Len())
	require.Equal(t, uint64(1), arr.Index(1))
	require.Equal(t, uint64(2), arr.Index(2))
}

func TestDecodeErrorFormat(t *testing.T) {
	c := New()

	_, _, err := c.Decode([]byte("[1, #]"), DecodeOptions{})
	require.Error(t, err)
	derr := err.(*Error)
	require.Equal(t, int(engine.ReadErrUnexpectedCharacter), derr.Code)
	require.Equal(t, "unexpected character at 4", derr.Message)
}

func TestRoundTrip(t *testing.T) {
	c := New()

	inner := value.NewTable()
	inner.Set("neg", int64(-3))
	inner.Set("pos", uint64(3))
	inner.Set("real", 1.5)
	inner.Set("flag", true)

	src := value.NewTable()
	src.SetIndex(1, "first")
	src.SetIndex(2, inner)
	src.SetIndex(3, uint64(42))

	data, err := c.Encode(src, EncodeOptions{})
	require.NoError(t, err)

	got, _, err := c.Decode(data, DecodeOptions{})
	require.NoError(t, err)
	require.Equal(t, src, got, "decode(encode(v)) must reproduce v")
}

func TestSentinelFidelity(t *testing.T) {
	c := New()

	// An empty container tagged AsArray must survive a round trip with
	// its intent intact.
	src := value.NewTable()
	src.SetIndex(-1, c.AsArray())

	data, err := c.Encode(src, EncodeOptions{})
	require.NoError(t, err)
	require.Equal(t, "[]", string(data))

	got, _, err := c.Decode(data, DecodeOptions{WithRef: true})
	require.NoError(t, err)
	require.Same(t, c.AsArray(), got.(*value.Table).Index(-1))
}

func TestSparseArrayGapFilling(t *testing.T) {
	c := New()

	src := value.NewTable()
	src.SetIndex(1, uint64(10))
	src.SetIndex(2, uint64(20))
	src.SetIndex(5, uint64(50))

	data, err := c.Encode(src, EncodeOptions{})
	require.NoError(t, err)
	require.Equal(t, "[10,20,null,null,50]", string(data))
}

func TestMemoryCeilingEncode(t *testing.T) {
	c := New()

	src := value.NewTable()
	for i := int64(1); i <= 32; i++ {
		src.SetIndex(i, "payload payload payload")
	}

	data, err := c.Encode(src, EncodeOptions{MaxMemory: 64})
	require.Nil(t, data, "no partial bytes on a memory error")
	require.Error(t, err)
	require.Equal(t, int(engine.WriteErrMemoryAllocation), err.(*Error).Code)
}

func TestMemoryCeilingDecode(t *testing.T) {
	c := New()

	_, _, err := c.Decode([]byte(`[1,2,3,4,5,6,7,8,9,10]`), DecodeOptions{MaxMemory: 48})
	require.Error(t, err)
	require.Equal(t, int(engine.ReadErrMemoryAllocation), err.(*Error).Code)
}

// Allocator balance is asserted structurally: Decode and Encode dispose
// their allocator on every path, and Dispose panics on leaked usage. The
// error cases above would panic here if any path leaked.
func TestAllocatorBalanceAcrossOutcomes(t *testing.T) {
	c := New()

	inputs := []string{`{"a":[1,2,3]}`, `[1,`, `"unterminated`, ``}
	for _, in := range inputs {
		// Both success and failure must come back, never panic.
		c.Decode([]byte(in), DecodeOptions{})
	}

	tbl := value.NewTable()
	tbl.SetIndex(1, uint64(1))
	_, err := c.Encode(tbl, EncodeOptions{})
	require.NoError(t, err)
	_, err = c.Encode(tbl, EncodeOptions{MaxMemory: 16})
	require.Error(t, err)
}

func TestConcatenatedDocuments(t *testing.T) {
	c := New()
	input := []byte("[1,2,3][4,5,6]")

	v, n, err := c.Decode(input, DecodeOptions{Flags: engine.ReadStopWhenDone})
	require.NoError(t, err)
	require.Equal(t, 7, n)
	tbl := v.(*value.Table)
	require.Equal(t, int64(3), tbl.Len())
	require.Equal(t, uint64(1), tbl.Index(1))

	v, _, err = c.Decode(input[n:], DecodeOptions{Flags: engine.ReadStopWhenDone})
	require.NoError(t, err)
	tbl = v.(*value.Table)
	require.Equal(t, uint64(4), tbl.Index(1))
	require.Equal(t, uint64(6), tbl.Index(3))
}

func TestInsituDecode(t *testing.T) {
	c := New()
	payload := `{"a":[1,2]}`
	buf := append([]byte(payload), make([]byte, engine.PaddingSize)...)

	v, n, err := c.Decode(buf, DecodeOptions{Flags: engine.ReadInsitu})
	require.NoError(t, err)
	require.Equal(t, len(payload), n, "consumed length excludes the padding")

	arr := v.(*value.Table).Get("a").(*value.Table)
	require.Equal(t, int64(2), arr.Len())

	// Too-short input cannot even hold the padding.
	_, _, err = c.Decode([]byte("ab"), DecodeOptions{Flags: engine.ReadInsitu})
	require.Error(t, err)
	require.Equal(t, int(engine.ReadErrInvalidParameter), err.(*Error).Code)
}

func TestNullDistinction(t *testing.T) {
	c := New()
	input := []byte(`{"a":null}`)

	// Default: the key is absent.
	v, _, err := c.Decode(input, DecodeOptions{})
	require.NoError(t, err)
	tbl := v.(*value.Table)
	require.Nil(t, tbl.Get("a"))
	require.Equal(t, 0, tbl.Size())

	// WithNull: the key holds the Null sentinel.
	v, _, err = c.Decode(input, DecodeOptions{WithNull: true})
	require.NoError(t, err)
	require.Same(t, c.Null(), v.(*value.Table).Get("a"))
}

func TestEncodeUnmappableRootBecomesNull(t *testing.T) {
	c := New()

	data, err := c.Encode(func() {}, EncodeOptions{})
	require.NoError(t, err, "unrepresentable root is a permissive null, not an error")
	require.Equal(t, "null", string(data))

	// Unmappable members are dropped, siblings survive.
	tbl := value.NewTable()
	tbl.Set("f", func() {})
	tbl.Set("a", uint64(1))
	data, err = c.Encode(tbl, EncodeOptions{})
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, string(data))
}

func TestEncodeFlags(t *testing.T) {
	c := New()

	tbl := value.NewTable()
	tbl.Set("a", uint64(1))

	data, err := c.Encode(tbl, EncodeOptions{Flags: engine.WritePretty})
	require.NoError(t, err)
	require.Equal(t, "{\n    \"a\": 1\n}", string(data))

	data, err = c.Encode(tbl, EncodeOptions{Flags: engine.WritePrettyTwoSpaces})
	require.NoError(t, err)
	require.Equal(t, "{\n  \"a\": 1\n}", string(data))
}

func TestDecodeMapperErrorCodes(t *testing.T) {
	c := New()

	// Raw nodes reach the mapper only via number-as-raw.
	_, _, err := c.Decode([]byte("12345"), DecodeOptions{Flags: engine.ReadNumberAsRaw})
	require.Error(t, err)
	require.Equal(t, mapper.CodeUnknownValueType, err.(*Error).Code)
}

func TestFileRoundTrip(t *testing.T) {
	c := New()
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	src := value.NewTable()
	src.Set("k", "v")
	require.NoError(t, c.EncodeFile(path, src, EncodeOptions{}))

	got, n, err := c.DecodeFile(path, DecodeOptions{})
	require.NoError(t, err)
	require.Equal(t, 9, n)
	require.Equal(t, src, got)
}

func TestDecodeFileMissing(t *testing.T) {
	c := New()
	_, _, err := c.DecodeFile(filepath.Join(t.TempDir(), "absent.json"), DecodeOptions{})
	require.Error(t, err)
	require.Equal(t, int(engine.ReadErrFileOpen), err.(*Error).Code)
}

func TestEncodeFileBadPath(t *testing.T) {
	c := New()
	tbl := value.NewTable()
	tbl.Set("k", "v")

	err := c.EncodeFile(filepath.Join(t.TempDir(), "no", "such", "dir", "x.json"), tbl, EncodeOptions{})
	require.Error(t, err)
	require.Equal(t, int(engine.WriteErrFileOpen), err.(*Error).Code)
}

func TestCodecIsConcurrencySafe(t *testing.T) {
	c := New()
	input := []byte(`{"a":[1,2,3],"b":"x"}`)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				v, _, err := c.Decode(input, DecodeOptions{})
				if err != nil {
					t.Errorf("concurrent decode failed: %v", err)
					return
				}
				if _, err := c.Encode(v, EncodeOptions{}); err != nil {
					t.Errorf("concurrent encode failed: %v", err)
					return
				}
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
