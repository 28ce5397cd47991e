package kebab

import "errors"

// Sentinel errors surfaced by the core, matching the three kinds named in
// the error handling design: invalid construction/call parameters, a
// malformed or truncated on-disk index, and wrapped I/O stream failures.
// Use errors.Is to test for a kind; the wrapped message carries the detail.
var (
	// ErrInvalidParameter is returned when a caller-supplied parameter is
	// out of its valid domain (fp rate outside (0,1), zero element count,
	// a derived hash count that would overrun the seed table, a minimum
	// MEM length shorter than k, ...). Invalid parameters are fatal at
	// construction/call time; no attempt is made to repair them.
	ErrInvalidParameter = errors.New("kebab: invalid parameter")

	// ErrInvalidIndexFile is returned when a serialized index cannot be
	// trusted: a truncated stream, an unknown enum ordinal, or a
	// hash-strategy/bit-count shape mismatch.
	ErrInvalidIndexFile = errors.New("kebab: invalid index file")

	// ErrIO wraps a failure from the underlying stream during save.
	// Partial writes are not reverted; callers that need atomicity should
	// write to a temporary file and rename it into place. Loading does not
	// use ErrIO: every read failure, whether a truncated stream or an error
	// from the underlying reader, is reported as ErrInvalidIndexFile.
	ErrIO = errors.New("kebab: i/o error")
)
