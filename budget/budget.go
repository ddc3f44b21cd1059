// Package budget implements the bounded allocator that puts a byte ceiling
// on a single decode or encode call.
//
// The allocator does not hand out memory itself — Go's runtime does that —
// it keeps the ledger: every logical allocation made by the engine during
// one call is recorded here, so the call can be aborted early once it
// would exceed the configured ceiling.
//
// Bookkeeping model:
//
//	Allocate(size)        → Handle (index into a record arena), usage += size
//	Reallocate(h, size)   → same Handle, usage adjusted by the delta
//	Free(h)               → record released to the free list, usage -= size
//	Dispose()             → asserts usage == 0 (leak = programming error)
//
// The recorded size is always the source of truth: Reallocate and Free look
// it up from the arena and never trust a caller-supplied size. One Allocator
// belongs to exactly one call; it must never be shared between calls, so no
// locking is needed.
package budget

import (
	"fmt"
	"math"
)

// Handle identifies one live allocation record inside an Allocator.
// It is only meaningful to the Allocator that issued it.
type Handle int

// NoHandle is the zero-value-adjacent invalid handle, returned on failure.
const NoHandle Handle = -1

// record tracks one live allocation. Dead records are chained into a free
// list through next so the arena is reused instead of growing forever.
type record struct {
	size uint64
	live bool
	next int // next free slot when !live, -1 for end of list
}

// Allocator enforces a memory ceiling and tracks per-allocation sizes.
//
// maxBytes == 0 means unlimited. Once any allocation is refused, the
// Exhausted flag stays set for the rest of the Allocator's life: a later
// step that appears to succeed structurally (e.g. a null substituted for a
// value that failed to allocate) must not mask the earlier failure.
type Allocator struct {
	records  []record
	freeHead int // head of the dead-record free list, -1 if empty
	usage    uint64
	maxBytes uint64
	nomem    bool
}

// New creates an Allocator with the given ceiling in bytes.
// A ceiling of 0 disables the limit; bookkeeping still happens so that
// Dispose can verify the call released everything it took.
func New(maxBytes uint64) *Allocator {
	return &Allocator{freeHead: -1, maxBytes: maxBytes}
}

// fits reports whether adding size on top of base stays under the ceiling.
// The overflow guard runs first so a huge size cannot wrap around the check.
func (a *Allocator) fits(base, size uint64) bool {
	if a.maxBytes == 0 {
		return true
	}
	if math.MaxUint64-size < base {
		return false
	}
	return base+size <= a.maxBytes
}

// Allocate records a new allocation of size bytes.
// On ceiling breach it fails without mutating state and sets the sticky
// out-of-memory flag.
func (a *Allocator) Allocate(size uint64) (Handle, error) {
	if !a.fits(a.usage, size) {
		a.nomem = true
		return NoHandle, ErrOutOfMemory
	}

	// Reuse a dead record if one is available, otherwise grow the arena.
	var h Handle
	if a.freeHead >= 0 {
		h = Handle(a.freeHead)
		a.freeHead = a.records[h].next
	} else {
		h = Handle(len(a.records))
		a.records = append(a.records, record{})
	}
	a.records[h] = record{size: size, live: true, next: -1}
	a.usage += size
	return h, nil
}

// Reallocate resizes the allocation behind h to newSize.
// The old size comes from the record, never from the caller. The ceiling is
// checked against usage - oldSize + newSize before anything changes.
func (a *Allocator) Reallocate(h Handle, newSize uint64) (Handle, error) {
	old := a.mustLive(h, "Reallocate")
	if !a.fits(a.usage-old, newSize) {
		a.nomem = true
		return NoHandle, ErrOutOfMemory
	}
	a.usage = a.usage - old + newSize
	a.records[h].size = newSize
	return h, nil
}

// Free releases the allocation behind h and returns its record to the
// free list.
func (a *Allocator) Free(h Handle) {
	size := a.mustLive(h, "Free")
	a.usage -= size
	a.records[h] = record{next: a.freeHead}
	a.freeHead = int(h)
}

// mustLive returns the recorded size of a live handle, panicking on misuse.
// A bad handle is a bug in the engine, not a recoverable condition.
func (a *Allocator) mustLive(h Handle, op string) uint64 {
	if h < 0 || int(h) >= len(a.records) || !a.records[h].live {
		panic(fmt.Sprintf("budget: %s on invalid handle %d", op, h))
	}
	return a.records[h].size
}

// Usage returns the total bytes currently tracked as live.
func (a *Allocator) Usage() uint64 { return a.usage }

// MaxBytes returns the configured ceiling (0 = unlimited).
func (a *Allocator) MaxBytes() uint64 { return a.maxBytes }

// Exhausted reports whether any allocation has ever been refused on this
// Allocator. The flag is sticky: it never resets.
func (a *Allocator) Exhausted() bool { return a.nomem }

// Dispose verifies the call returned everything it allocated.
// Non-zero usage at teardown is an invariant violation inside the engine,
// so it panics rather than returning a user-facing error.
func (a *Allocator) Dispose() {
	if a.usage != 0 {
		panic(fmt.Sprintf("budget: %d bytes still tracked at dispose", a.usage))
	}
}
