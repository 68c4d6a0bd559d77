// Package domainerrors defines the closed error taxonomy shared by services
// and the transport layer. Services construct these; the HTTP layer maps the
// code to a status and serializes only the code and safe message, never the
// wrapped cause.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of failure. The set is closed: adding a code means
// updating ToHTTPStatus so the transport mapping stays exhaustive.
type Code string

const (
	CodeValidation          Code = "VALIDATION"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeTokenExpired        Code = "TOKEN_EXPIRED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeNotFound            Code = "NOT_FOUND"
	CodeConflict            Code = "CONFLICT"
	CodeAccountLocked       Code = "ACCOUNT_LOCKED"
	CodeMisconfiguredSecret Code = "MISCONFIGURED_SECRET"
	CodeUnavailable         Code = "UNAVAILABLE"
	CodeInternal            Code = "INTERNAL"
)

// Error carries a code, a client-safe message, and an optional wrapped cause.
// The cause is for logs only and must never reach a response body.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(cause error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is match on code and message, so tests can compare against
// a freshly constructed error without sharing pointers.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && (t.Message == "" || e.Message == t.Message)
}

// CodeOf extracts the domain code from any error, defaulting to internal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf returns the client-safe message, or a generic one for unknown errors.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// ToHTTPStatus maps a domain code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeTokenExpired:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeAccountLocked:
		return http.StatusLocked
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeMisconfiguredSecret, CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
