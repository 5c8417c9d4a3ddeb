// Package pkgerrors implements the error-kind taxonomy shared by every
// stage of the discovery pipeline (session, harvester, fetch, enrich).
package pkgerrors

import (
	"errors"
	"fmt"
)

// Kind is one of the closed set of error categories the pipeline reasons
// about when deciding whether to retry, escalate, or terminate a session.
type Kind int

const (
	Unknown Kind = iota
	InvalidRequest
	Busy
	Transient
	RateLimited
	Blocked
	NotFound
	DataQuality
	Cancelled
	Fatal
)

func (k Kind) String() string {
	switch k {
	case InvalidRequest:
		return "InvalidRequest"
	case Busy:
		return "Busy"
	case Transient:
		return "Transient"
	case RateLimited:
		return "RateLimited"
	case Blocked:
		return "Blocked"
	case NotFound:
		return "NotFound"
	case DataQuality:
		return "DataQuality"
	case Cancelled:
		return "Cancelled"
	case Fatal:
		return "Fatal"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// Error wraps an underlying cause with a Kind so callers can branch on
// category without string matching.
type Error struct {
	kind    Kind
	msg     string
	cause   error
	retryAt *int64 // unix seconds, set when a Retry-After header was honored
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *Error) Unwrap() error { return e.cause }

// KindOf returns the category of err, or Unknown if err is not (or does
// not wrap) a *Error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.kind
	}
	return Unknown
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// New constructs an *Error of the given kind with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Wrap constructs an *Error of the given kind wrapping cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{kind: kind, msg: msg, cause: cause}
}

// Retryable reports whether a source worker should retry the call that
// produced err.
func Retryable(err error) bool {
	switch KindOf(err) {
	case Transient, RateLimited:
		return true
	default:
		return false
	}
}

// Terminal reports whether err should abort the owning session outright.
func Terminal(err error) bool {
	switch KindOf(err) {
	case Fatal, Cancelled:
		return true
	default:
		return false
	}
}
