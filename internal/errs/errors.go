package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so callers can map it to a response.
type Kind string

const (
	KindValidation             Kind = "VALIDATION_ERROR"
	KindNotFound               Kind = "NOT_FOUND"
	KindInvalidStateTransition Kind = "INVALID_STATE_TRANSITION"
	KindConcurrentModification Kind = "CONCURRENT_MODIFICATION"
	KindExternalService        Kind = "EXTERNAL_SERVICE_ERROR"
	KindConflict               Kind = "CONFLICT"
	KindForbidden              Kind = "FORBIDDEN"
	KindUnauthorized           Kind = "UNAUTHORIZED"
)

// Sentinels for errors.Is matching on kind.
var (
	ErrValidation             = &Error{Kind: KindValidation}
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrInvalidStateTransition = &Error{Kind: KindInvalidStateTransition}
	ErrConcurrentModification = &Error{Kind: KindConcurrentModification}
	ErrExternalService        = &Error{Kind: KindExternalService}
	ErrConflict               = &Error{Kind: KindConflict}
	ErrForbidden              = &Error{Kind: KindForbidden}
	ErrUnauthorized           = &Error{Kind: KindUnauthorized}
)

// Error is the typed error returned by every service.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// E builds an error of the given kind.
func E(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an error of the given kind around a cause.
func Wrap(kind Kind, op string, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in the chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable reports whether repeating the call may succeed without changes.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindConcurrentModification, KindExternalService:
		return true
	}
	return false
}

// HTTPStatus maps an error to the response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidStateTransition, KindConcurrentModification, KindConflict:
		return http.StatusConflict
	case KindExternalService:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
