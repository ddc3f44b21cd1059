// Package document is the facade the module is used through: it wires one
// decode or encode call end to end.
//
// Call pipeline:
//
//	Decode: new budget.Allocator → engine.Read → mapper.ToValue
//	          → tear down allocator (asserting zero outstanding usage)
//	Encode: new budget.Allocator → engine.NewMutDoc → mapper.ToNode
//	          → engine.Write → copy bytes, free engine buffer → tear down
//
// Every call gets its own allocator instance and record table; nothing is
// shared between calls, which is what makes a Codec safe for concurrent
// use without locking.
//
// Failures come back as *Error carrying a numeric code. Memory errors are
// authoritative: once the allocator's sticky out-of-memory flag is set,
// the call reports a memory error even if a structurally valid result
// could have been produced — partial results are never returned.
package document

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"dynjson/budget"
	"dynjson/engine"
	"dynjson/mapper"
	"dynjson/sentinel"
	"dynjson/value"
)

// Error is the failure result of a decode or encode call.
//
// Decode failures use the engine's read code space (engine.ReadCode)
// extended by the mapper codes; encode failures use the write code space
// (engine.WriteCode). Code 0 never appears in an Error.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string { return e.Message }

// DecodeOptions configures one Decode call.
type DecodeOptions struct {
	// WithNull decodes explicit JSON nulls as the Null sentinel instead of
	// dropping the entry, so null and absent can be told apart.
	WithNull bool

	// WithRef stamps each decoded container's marker slot with the
	// AsArray/AsObject sentinel, pinning its intent for a later encode.
	WithRef bool

	// MaxMemory caps the bytes the call may allocate. 0 means unlimited.
	MaxMemory uint64

	// Flags select reader behavior; see the engine.Read* constants.
	Flags engine.ReadFlag
}

// EncodeOptions configures one Encode call.
type EncodeOptions struct {
	// MaxMemory caps the bytes the call may allocate. 0 means unlimited.
	MaxMemory uint64

	// Flags select writer behavior; see the engine.Write* constants.
	Flags engine.WriteFlag
}

// Codec decodes JSON documents into dynamic values and back.
//
// The zero value is not usable; construct with New. A Codec owns its
// sentinel registry: sentinels decoded by one Codec are only meaningful
// to that same Codec.
type Codec struct {
	reg *sentinel.Registry
	m   *mapper.Mapper
}

// New creates a Codec with a fresh sentinel registry.
func New() *Codec {
	reg := sentinel.NewRegistry()
	return &Codec{reg: reg, m: mapper.New(reg)}
}

// Null returns this Codec's explicit-null sentinel.
func (c *Codec) Null() *sentinel.Sentinel { return c.reg.Null() }

// AsArray returns this Codec's treat-as-array sentinel.
func (c *Codec) AsArray() *sentinel.Sentinel { return c.reg.AsArray() }

// AsObject returns this Codec's treat-as-object sentinel.
func (c *Codec) AsObject() *sentinel.Sentinel { return c.reg.AsObject() }

// Decode parses one JSON document from data and maps it into a dynamic
// value. On success it returns the value and the number of input bytes
// consumed through the end of the document (with engine.ReadStopWhenDone
// that is where the next concatenated document starts).
//
// With engine.ReadInsitu, data must carry engine.PaddingSize trailing
// scratch bytes; the padding is excluded from the usable length and from
// the consumed count, and the returned value may reference data.
func (c *Codec) Decode(data []byte, opt DecodeOptions) (any, int, error) {
	alc := budget.New(opt.MaxMemory)
	defer alc.Dispose()

	buf := data
	if opt.Flags&engine.ReadInsitu != 0 {
		if len(buf) < engine.PaddingSize {
			return nil, 0, &Error{
				Code:    int(engine.ReadErrInvalidParameter),
				Message: fmt.Sprintf("in-situ input shorter than %d padding bytes", engine.PaddingSize),
			}
		}
		buf = buf[:len(buf)-engine.PaddingSize]
	}

	doc, rerr := engine.Read(buf, opt.Flags, alc)
	if rerr != nil {
		return nil, 0, &Error{
			Code:    int(rerr.Code),
			Message: fmt.Sprintf("%s at %d", rerr.Msg, rerr.Pos),
		}
	}
	defer doc.Free()

	v, merr := c.m.ToValue(doc.Root(), opt.WithNull, opt.WithRef)
	if merr != nil {
		return nil, 0, &Error{Code: merr.Code, Message: merr.Msg}
	}
	return v, doc.ReadSize(), nil
}

// Encode serializes a dynamic value to JSON bytes.
//
// An unrepresentable root (a callable, an opaque type) is substituted
// with JSON null rather than failing — a deliberate, permissive policy —
// unless the substitution would mask an allocation failure, in which case
// the memory error wins.
func (c *Codec) Encode(v any, opt EncodeOptions) ([]byte, error) {
	alc := budget.New(opt.MaxMemory)
	defer alc.Dispose()

	doc, err := engine.NewMutDoc(alc)
	if err != nil {
		return nil, memoryWriteError()
	}
	defer doc.Free()

	root := c.m.ToNode(doc, v)
	if root == nil {
		if doc.Exhausted() {
			return nil, memoryWriteError()
		}
		if root = doc.Null(); root == nil {
			return nil, memoryWriteError()
		}
	}
	// The sticky flag overrides structural success: a null substituted
	// deep in the tree must not mask the allocation that failed there.
	if doc.Exhausted() {
		return nil, memoryWriteError()
	}
	doc.SetRoot(root)

	out, h, werr := engine.Write(doc, opt.Flags)
	if werr != nil {
		return nil, &Error{Code: int(werr.Code), Message: werr.Msg}
	}

	// Copy the result out and release the engine-owned buffer through the
	// same allocator that charged it.
	result := make([]byte, len(out))
	copy(result, out)
	alc.Free(h)
	return result, nil
}

func memoryWriteError() *Error {
	return &Error{
		Code:    int(engine.WriteErrMemoryAllocation),
		Message: "memory allocation failed",
	}
}

// DecodeFile reads path and decodes its contents.
// Open failures report engine.ReadErrFileOpen, read failures
// engine.ReadErrFileRead; both carry the wrapped cause in the message.
func (c *Codec) DecodeFile(path string, opt DecodeOptions) (any, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, &Error{
			Code:    int(engine.ReadErrFileOpen),
			Message: errors.Wrap(err, "failed to open file").Error(),
		}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, 0, &Error{
			Code:    int(engine.ReadErrFileRead),
			Message: errors.Wrap(err, "failed to read file").Error(),
		}
	}
	return c.Decode(data, opt)
}

// EncodeFile serializes v and writes the result to path.
// Create failures report engine.WriteErrFileOpen, write failures
// engine.WriteErrFileWrite.
func (c *Codec) EncodeFile(path string, v any, opt EncodeOptions) error {
	data, err := c.Encode(v, opt)
	if err != nil {
		return err
	}

	f, cerr := os.Create(path)
	if cerr != nil {
		return &Error{
			Code:    int(engine.WriteErrFileOpen),
			Message: errors.Wrap(cerr, "failed to open file").Error(),
		}
	}
	_, werr := f.Write(data)
	if werr == nil {
		werr = f.Close()
	} else {
		f.Close()
	}
	if werr != nil {
		return &Error{
			Code:    int(engine.WriteErrFileWrite),
			Message: errors.Wrap(werr, "failed to write file").Error(),
		}
	}
	return nil
}

// NewTable returns an empty container, a convenience so facade users do
// not need to import the value package for the common case.
func NewTable() *value.Table { return value.NewTable() }
