// Package apperrors implements the control plane's error taxonomy: every
// operation that can fail returns one of these kinds instead of an ad hoc
// error, so callers (workers, the runner, a future REST layer) can make
// uniform retry/propagation decisions.
package apperrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Code identifies which branch of the taxonomy an error belongs to.
type Code string

const (
	// Validation covers malformed input: bad metric schema, unknown
	// condition type, unknown action, bad severity, bad target glob.
	Validation Code = "VALIDATION"
	// NotFound covers a missing policy or action id.
	NotFound Code = "NOT_FOUND"
	// Conflict covers a duplicate policy name or a repository CAS race.
	Conflict Code = "CONFLICT"
	// TransientIO covers network timeouts, 5xx from the remediator, or a
	// queue temporarily unavailable — callers may retry with backoff.
	TransientIO Code = "TRANSIENT_IO"
	// PermanentIO covers non-retryable 4xx from the remediator or
	// structural response errors. Terminal failure of the action.
	PermanentIO Code = "PERMANENT_IO"
	// Internal covers invariant violations (e.g. claim returned a
	// non-pending record). Logged at ERROR; the process keeps running.
	Internal Code = "INTERNAL"
)

// httpStatus maps each Code to the status the (out-of-scope) REST layer
// would surface.
var httpStatus = map[Code]int{
	Validation:  http.StatusBadRequest,
	NotFound:    http.StatusNotFound,
	Conflict:    http.StatusConflict,
	TransientIO: http.StatusServiceUnavailable,
	PermanentIO: http.StatusBadGateway,
	Internal:    http.StatusInternalServerError,
}

// Error is a structured, taxonomy-tagged failure. Its Error() and
// MarshalJSON both produce the stable {detail} shape users see; no
// internal exception types or stack traces are ever surfaced.
type Error struct {
	Code   Code
	Detail string
	Fields []string // offending field names, for Validation errors
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// MarshalJSON renders the {detail} (plus optional fields) wire shape used
// by every API error response.
func (e *Error) MarshalJSON() ([]byte, error) {
	type wire struct {
		Detail string   `json:"detail"`
		Fields []string `json:"fields,omitempty"`
	}
	return json.Marshal(wire{Detail: e.Detail, Fields: e.Fields})
}

// HTTPStatus returns the status code a REST surface should use.
func (e *Error) HTTPStatus() int {
	if s, ok := httpStatus[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func New(code Code, detail string) *Error {
	return &Error{Code: code, Detail: detail}
}

func Wrap(code Code, detail string, err error) *Error {
	return &Error{Code: code, Detail: detail, Err: err}
}

func Invalid(detail string, fields ...string) *Error {
	return &Error{Code: Validation, Detail: detail, Fields: fields}
}

func NotFoundf(format string, args ...interface{}) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

func Conflictf(format string, args ...interface{}) *Error {
	return New(Conflict, fmt.Sprintf(format, args...))
}

func Transient(detail string, err error) *Error {
	return Wrap(TransientIO, detail, err)
}

func Permanent(detail string, err error) *Error {
	return Wrap(PermanentIO, detail, err)
}

func InternalErr(detail string, err error) *Error {
	return Wrap(Internal, detail, err)
}

// As extracts an *Error from an error chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err carries the given Code.
func Is(err error, code Code) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

// HTTPStatusOf returns the status an unrecognized/plain error should map
// to: Internal, matching the conventional HTTP-status fallback behavior.
func HTTPStatusOf(err error) int {
	if e, ok := As(err); ok {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}
