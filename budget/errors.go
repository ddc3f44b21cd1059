package budget

import "errors"

// ErrOutOfMemory is returned when an allocation would exceed the ceiling
// or overflow the usage counter. Callers that see it should also find the
// Allocator's Exhausted flag set.
var ErrOutOfMemory = errors.New("memory allocation failed")
