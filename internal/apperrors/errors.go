// Package apperrors provides the structured error taxonomy surfaced by the HTTP layer.
package apperrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind is the category of an application error.
type Kind string

const (
	KindBadRequest          Kind = "bad_request"
	KindUnauthorized        Kind = "unauthorized"
	KindForbidden           Kind = "forbidden"
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindTooManyRequests     Kind = "too_many_requests"
	KindClientClosedRequest Kind = "client_closed_request"
	KindInternal            Kind = "internal"
)

// StatusClientClosedRequest is the non-standard status reported when the caller
// disconnects mid-operation.
const StatusClientClosedRequest = 499

// Error is an application error with a kind, a client-facing message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the response status for this error's kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	case KindClientClosedRequest:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// BadRequest reports a missing or malformed input (400).
func BadRequest(message string) *Error { return newError(KindBadRequest, message, nil) }

// Unauthorized reports a missing, invalid or expired credential (401).
func Unauthorized(message string) *Error { return newError(KindUnauthorized, message, nil) }

// Forbidden reports an authenticated actor who does not own the target (403).
func Forbidden(message string) *Error { return newError(KindForbidden, message, nil) }

// NotFound reports an entity that does not exist (404).
func NotFound(message string) *Error { return newError(KindNotFound, message, nil) }

// Conflict reports a duplicate unique field (409).
func Conflict(message string) *Error { return newError(KindConflict, message, nil) }

// TooManyRequests reports a rate limited caller (429).
func TooManyRequests(message string) *Error { return newError(KindTooManyRequests, message, nil) }

// ClientClosedRequest reports that the caller went away and the operation was rolled back (499).
func ClientClosedRequest(message string, cause error) *Error {
	return newError(KindClientClosedRequest, message, cause)
}

// Internal wraps a store or gateway failure (500). The message is what the client sees.
func Internal(message string, cause error) *Error {
	return newError(KindInternal, message, cause)
}

// As converts any error into an *Error. Structured errors are returned unchanged,
// context cancellation becomes ClientClosedRequest, everything else is Internal.
func As(err error) *Error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, context.Canceled) {
		return ClientClosedRequest("client closed request", err)
	}
	return Internal("internal server error", err)
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}
