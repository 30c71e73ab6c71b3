package service

import (
	"errors"
	"fmt"

	"github.com/okian/admit/internal/domain/resolve"
)

var (
	// ErrValidation marks malformed or missing mandatory input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a reference that resolved to no catalog entry.
	ErrNotFound = errors.New("not found")
	// ErrModelUnavailable marks a missing or inconsistent oracle bundle.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrNoStore is returned by Start when no catalog store was configured.
	ErrNoStore = errors.New("catalog store is not configured")
	// ErrNotStarted is returned by requests made before Start.
	ErrNotStarted = errors.New("service not started")
)

// Entity kinds used in NotFoundError.
const (
	EntityInstitution = "institution"
	EntityField       = "field"
)

// NotFoundError carries the nearby catalog entries for a failed resolution.
type NotFoundError struct {
	Entity      string
	Query       string
	Suggestions []resolve.Suggestion
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.Query)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Error kinds as reported in batch entries and HTTP bodies.
const (
	KindValidation       = "validation"
	KindNotFound         = "not_found"
	KindModelUnavailable = "model_unavailable"
	KindInternal         = "internal"
)

// Kind classifies err into one of the reported kinds.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrModelUnavailable):
		return KindModelUnavailable
	default:
		return KindInternal
	}
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
