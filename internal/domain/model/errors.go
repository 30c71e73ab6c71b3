package model

import "errors"

// Sentinel kinds for model construction errors.
var (
	ErrInvalidProfile = errors.New("invalid student profile")
	ErrInvalidRecord  = errors.New("invalid catalog record")
)
