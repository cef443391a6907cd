package types

import "errors"

// Broker error taxonomy. Every public operation that can fail settles
// with one of these; nothing is left silently pending.
var (
	// ErrTargetNotFound means no live context matches the destination.
	// Fails fast, never via timeout.
	ErrTargetNotFound = errors.New("target context not found")

	// ErrTimeout means a registered call exceeded its deadline without a reply.
	ErrTimeout = errors.New("call timed out")

	// ErrPortDisconnected means an operation was attempted on a torn-down port.
	ErrPortDisconnected = errors.New("port disconnected")

	// ErrQuotaExceeded means a storage mutation would exceed the size cap;
	// the stored mapping is preserved unchanged.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrUnknownMethod means a malformed or unrecognized call from a context.
	ErrUnknownMethod = errors.New("unknown method")
)
