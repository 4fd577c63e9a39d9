// Package apperr defines the closed set of failures the HTTP layer knows how
// to normalize. Business logic returns *Error for anticipated, user-safe
// failures; the persistence layer returns *CastError, *DuplicateKeyError and
// *ValidationError. Everything else is treated as an unexpected fault.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindTooManyRequests
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindTooManyRequests:
		return "too_many_requests"
	default:
		return "internal"
	}
}

func (k Kind) StatusCode() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is an operational failure: its Message is always safe to show.
type Error struct {
	Kind    Kind
	Message string
	Err     error

	stack string
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) StatusCode() int { return e.Kind.StatusCode() }

// Stack returns the call stack captured when the error was created.
func (e *Error) Stack() string { return e.stack }

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err, stack: callers(4)}
}

func BadRequest(msg string) *Error      { return newError(KindBadRequest, msg, nil) }
func Unauthorized(msg string) *Error    { return newError(KindUnauthorized, msg, nil) }
func Forbidden(msg string) *Error       { return newError(KindForbidden, msg, nil) }
func NotFound(msg string) *Error        { return newError(KindNotFound, msg, nil) }
func TooManyRequests(msg string) *Error { return newError(KindTooManyRequests, msg, nil) }

// Internal is an anticipated server-side failure whose message is still
// user-safe, e.g. a notification that could not be dispatched.
func Internal(msg string, err error) *Error { return newError(KindInternal, msg, err) }

// Wrap attaches a cause to a new operational error of the given kind.
func Wrap(kind Kind, msg string, err error) *Error { return newError(kind, msg, err) }

// CastError reports a value that could not be converted to a field's type.
type CastError struct {
	Field string
	Value string
	Err   error
}

func (e *CastError) Error() string {
	return fmt.Sprintf("cast to %s failed for value %q", e.Field, e.Value)
}

func (e *CastError) Unwrap() error { return e.Err }

// DuplicateKeyError reports a uniqueness constraint violation.
type DuplicateKeyError struct {
	Field string
	Value string
	Err   error
}

func (e *DuplicateKeyError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("duplicate key on %s", e.Field)
	}
	return fmt.Sprintf("duplicate key on %s: %q", e.Field, e.Value)
}

func (e *DuplicateKeyError) Unwrap() error { return e.Err }

type Violation struct {
	Field   string
	Message string
}

// ValidationError collects per-field schema violations.
type ValidationError struct {
	Violations []Violation
	Err        error
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages(), "; ")
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Messages() []string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Message)
	}
	return msgs
}

// Invalid builds a ValidationError from field/message pairs.
func Invalid(violations ...Violation) *ValidationError {
	return &ValidationError{Violations: violations}
}

// IsKind reports whether err wraps an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

func callers(skip int) string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip, pcs)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])

	var b strings.Builder
	for {
		f, more := frames.Next()
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", f.Function, f.File, f.Line)
		if !more {
			break
		}
	}
	return b.String()
}
