package api

import (
	"errors"
	"fmt"
	"net/http"

	service "github.com/okian/admit/internal/app"
	"github.com/okian/admit/internal/domain/resolve"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest  = errors.New("bad request")
	ErrUnavailable = errors.New("service unavailable")
)

// Error codes written in response bodies.
const (
	codeBadRequest       = "bad_request"
	codeNotFound         = "not_found"
	codeModelUnavailable = "model_unavailable"
	codeUnavailable      = "unavailable"
	codeInternal         = "internal_error"
)

// Error is a transport error tagged with the operation that produced it and
// the kind used to pick the status code.
type Error struct {
	Op   string
	Kind string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewKind builds an error of the given kind from a message.
func NewKind(op, kind, msg string) *Error {
	return &Error{Op: op, Kind: kind, Err: errors.New(msg)}
}

// WrapKind tags err with op and an explicit kind.
func WrapKind(op, kind string, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Wrap tags err with op and derives the kind from the service taxonomy.
func Wrap(op string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return &Error{Op: op, Kind: e.Kind, Err: e.Err}
	}
	if errors.Is(err, service.ErrNotStarted) {
		return WrapKind(op, codeUnavailable, err)
	}
	return WrapKind(op, service.Kind(err), err)
}

type errorResponse struct {
	Code        string               `json:"code"`
	Message     string               `json:"message"`
	RequestID   string               `json:"request_id,omitempty"`
	Suggestions []resolve.Suggestion `json:"suggestions,omitempty"`
}

// status maps an error kind to its HTTP status and body code.
func status(kind string) (int, string) {
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest, codeBadRequest
	case service.KindNotFound:
		return http.StatusNotFound, codeNotFound
	case service.KindModelUnavailable:
		return http.StatusServiceUnavailable, codeModelUnavailable
	case codeUnavailable:
		return http.StatusServiceUnavailable, codeUnavailable
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func suggestions(err error) []resolve.Suggestion {
	var nf *service.NotFoundError
	if errors.As(err, &nf) {
		return nf.Suggestions
	}
	return nil
}
