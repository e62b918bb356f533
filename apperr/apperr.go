// Package apperr defines the error taxonomy shared by the sync pipeline and the
// HTTP surface. Every error that reaches the top-level handler is mapped to an
// HTTP status through HTTPStatus; anything not built here is an internal error.
package apperr

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindNotFound      Kind = "not_found"
	KindUpstream      Kind = "upstream"
	KindInternal      Kind = "internal"
)

const internalMessage = "Internal server error"

type Error struct {
	Kind    Kind
	Status  int
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized is for a missing or invalid token, and for resources that exist
// but belong to someone else.
func Unauthorized(format string, args ...interface{}) *Error {
	return &Error{Kind: KindAuthorization, Status: http.StatusUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// Forbidden is for authenticated callers that are not allowed the operation,
// e.g. subscription tier limits.
func Forbidden(format string, args ...interface{}) *Error {
	return &Error{Kind: KindAuthorization, Status: http.StatusForbidden, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Status: http.StatusNotFound, Message: fmt.Sprintf(format, args...)}
}

// Upstream carries the status and message reported by the platform. A zero
// status means the call never got a response and maps to 500.
func Upstream(status int, message string, cause error) *Error {
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}
	return &Error{Kind: KindUpstream, Status: status, Message: message, cause: cause}
}

func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Message: internalMessage, cause: cause}
}

// As finds the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

func IsNotFound(err error) bool {
	return IsKind(err, KindNotFound)
}

func HTTPStatus(err error) int {
	if e, ok := As(err); ok {
		return e.Status
	}
	return http.StatusInternalServerError
}

// PublicMessage is the message safe to return to a client. Internal errors
// never leak their cause.
func PublicMessage(err error) string {
	e, ok := As(err)
	if !ok || e.Kind == KindInternal {
		return internalMessage
	}
	return e.Message
}
