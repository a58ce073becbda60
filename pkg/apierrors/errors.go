// Package apierrors defines the error taxonomy exposed at the HTTP boundary.
// Domain code creates typed errors here; the transport layer maps codes to
// HTTP statuses without inspecting error strings.
package apierrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a caller-visible error class.
type Code string

const (
	CodeMissingAFM   Code = "MISSING_AFM"
	CodeInvalidAFM   Code = "INVALID_AFM_FORMAT"
	CodeRateLimit    Code = "RATE_LIMIT"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeInternal     Code = "INTERNAL_ERROR"
)

// Error is a typed error carrying a caller-visible code. Internal errors keep
// their message server-side; everything else is safe to return verbatim.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches an underlying cause for server-side logging while keeping the
// caller-visible message generic.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus maps an error code to its HTTP status.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeMissingAFM, CodeInvalidAFM:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// AsError extracts an *Error from err, or wraps err as an internal error so
// transport code always has a code and status to work with.
func AsError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Wrap(CodeInternal, "internal error", err)
}
