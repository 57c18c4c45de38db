package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for propagation policy purposes. Validation,
// NotFound and InvalidState resolve locally and map to 4xx responses.
// TransientDependency is retried by the owning component; once retries
// exhaust it escalates to FatalDependency, which only the orchestrator may
// act on (mark the order failed, fan out notifications).
type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindInvalidState
	KindTransientDependency
	KindFatalDependency
)

type Error struct {
	Kind    Kind
	Message string // safe to surface to clients
	Err     error  // underlying cause, logs only
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindValidation, KindInvalidState:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func InvalidState(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func Transient(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindTransientDependency, Message: fmt.Sprintf(format, args...), Err: err}
}

func Fatal(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindFatalDependency, Message: fmt.Sprintf(format, args...), Err: err}
}

// IsKind reports whether err (or anything it wraps) is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

func IsValidation(err error) bool   { return IsKind(err, KindValidation) }
func IsNotFound(err error) bool     { return IsKind(err, KindNotFound) }
func IsInvalidState(err error) bool { return IsKind(err, KindInvalidState) }
func IsTransient(err error) bool    { return IsKind(err, KindTransientDependency) }
func IsFatal(err error) bool        { return IsKind(err, KindFatalDependency) }
