package oracle

import "errors"

// Sentinel kinds for oracle errors. All of them are fatal at load time.
var (
	ErrBundleMissing     = errors.New("oracle bundle missing")
	ErrInvalidBundle     = errors.New("oracle bundle invalid")
	ErrDimensionMismatch = errors.New("oracle dimension mismatch")
)
