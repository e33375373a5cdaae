// Package errors carries the billing engine's typed failures: a transport
// Code that decides the HTTP status, plus an optional domain Reason that
// callers branch on.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// Metadata is how a Code surfaces over HTTP.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:    {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true},
	CodeUnauthorized:  {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required"},
	CodeForbidden:     {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied"},
	CodeNotFound:      {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found"},
	CodeConflict:      {HTTPStatus: http.StatusConflict, PublicMessage: "conflict detected", DetailsAllowed: true},
	CodeStateConflict: {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "state transition disallowed", DetailsAllowed: true},
	CodeInternal:      {HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal server error", Retryable: true},
	CodeDependency:    {HTTPStatus: http.StatusServiceUnavailable, PublicMessage: "dependency unavailable", Retryable: true, DetailsAllowed: true},
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	reason  Reason
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Errorf is New with a formatted message. A %w verb also records the cause.
func Errorf(code Code, format string, args ...any) *Error {
	formatted := fmt.Errorf(format, args...)
	return &Error{code: code, message: formatted.Error(), cause: stdErrors.Unwrap(formatted)}
}

// Wrap attaches code and message to err, which stays reachable through
// errors.Is and errors.As.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// The accessors below are nil-safe so As(err).Reason() works on any error.

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Reason() Reason {
	if e == nil {
		return ""
	}
	return e.reason
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithReason(reason Reason) *Error {
	e.reason = reason
	return e
}

// WithDetails attaches client-visible context, shown only for codes whose
// metadata allows it.
func (e *Error) WithDetails(details any) *Error {
	e.details = details
	return e
}

func (e *Error) Error() string {
	prefix := string(e.code)
	if e.reason != "" {
		prefix += "(" + string(e.reason) + ")"
	}
	return prefix + ": " + e.message
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches another *Error with the same code and, when the target names
// one, the same reason. Messages are ignored.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t == nil {
		return false
	}
	return e.code == t.code && (t.reason == "" || e.reason == t.reason)
}

// ReasonOf extracts the domain reason from anywhere in err's chain.
func ReasonOf(err error) Reason {
	return As(err).Reason()
}

func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}
