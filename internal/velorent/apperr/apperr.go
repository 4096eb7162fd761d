package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies an error for callers and the HTTP layer
type Kind string

// Error kinds
const (
	KindValidation   Kind = "VALIDATION_ERROR"
	KindInvalidState Kind = "INVALID_STATE"
	KindNotFound     Kind = "NOT_FOUND"
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindForbidden    Kind = "FORBIDDEN"
	KindRateLimited  Kind = "RATE_LIMITED"
	KindGateway      Kind = "GATEWAY_ERROR"
	KindConflict     Kind = "CONFLICT"
	KindInternal     Kind = "INTERNAL_ERROR"
)

// Error is a domain error carrying a user-facing message
type Error struct {
	Kind    Kind
	Message string
	Cause   error

	// RetryAfter is set for KindRateLimited
	RetryAfter time.Duration
	// Retryable marks gateway transport failures
	Retryable bool
	// UpstreamBody holds the provider's response body for gateway errors
	UpstreamBody string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors of the same kind
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New creates an error of the given kind
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap wraps err with a kind and message. Returns nil for a nil err.
func Wrap(err error, kind Kind, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Cause: err}
}

// Validation creates a KindValidation error
func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

// InvalidState creates a KindInvalidState error
func InvalidState(format string, args ...interface{}) *Error {
	return New(KindInvalidState, fmt.Sprintf(format, args...))
}

// NotFound creates a KindNotFound error
func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

// Unauthorized creates a KindUnauthorized error
func Unauthorized(message string) *Error {
	return New(KindUnauthorized, message)
}

// Forbidden creates a KindForbidden error
func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

// Conflict creates a KindConflict error
func Conflict(message string) *Error {
	return New(KindConflict, message)
}

// RateLimited creates a KindRateLimited error with a retry hint
func RateLimited(message string, retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimited, Message: message, RetryAfter: retryAfter}
}

// Gateway creates a KindGateway error for a provider-reported failure
func Gateway(message, upstreamBody string) *Error {
	return &Error{Kind: KindGateway, Message: message, UpstreamBody: upstreamBody}
}

// GatewayTransport creates a retryable KindGateway error for network failures
func GatewayTransport(err error) *Error {
	return &Error{Kind: KindGateway, Message: "payment gateway connection error", Cause: err, Retryable: true}
}

// KindOf returns the kind of err, or KindInternal for foreign errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As extracts *Error from err
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// HTTPStatus maps an error to an HTTP status code
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindInvalidState, KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show to clients
func PublicMessage(err error) string {
	e, ok := As(err)
	if !ok || e.Kind == KindInternal {
		return "Server error"
	}
	if e.Kind == KindGateway && e.UpstreamBody != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.UpstreamBody)
	}
	return e.Message
}
