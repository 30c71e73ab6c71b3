package catalog

import "errors"

// Sentinel kinds for catalog errors.
var (
	ErrUnknownCollection = errors.New("unknown catalog collection")
	ErrUnsupportedDriver = errors.New("unsupported catalog driver")
	ErrDecode            = errors.New("catalog document decode failed")
	ErrClosed            = errors.New("catalog store closed")
)
