package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidConfig    = errors.New("invalid configuration")

	// Per-rule failures. Typed errors in rule and store unwrap to these.
	ErrUnknownToken      = errors.New("unknown token")
	ErrMalformedBody     = errors.New("malformed rule body")
	ErrMalformedHead     = errors.New("malformed rule head")
	ErrVariableCollision = errors.New("variable collision")
	ErrStoreExecution    = errors.New("store execution failed")
)
