package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// ErrorKind classifies domain errors so the transport layer can map them to a client outcome.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindLimitExceeded
	KindNotYetOpen
	KindWindowClosed
	KindInvalidInput
	KindConflict
	KindForbidden
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindLimitExceeded:
		return "LimitExceeded"
	case KindNotYetOpen:
		return "NotYetOpen"
	case KindWindowClosed:
		return "WindowClosed"
	case KindInvalidInput:
		return "InvalidInput"
	case KindConflict:
		return "Conflict"
	case KindForbidden:
		return "Forbidden"
	default:
		return "Unknown"
	}
}

// Error is a classified domain error. Packages declare them as sentinels, e.g.
//
//	var ErrNotFound = core.NewError(core.KindNotFound, "quiz not found")
type Error struct {
	Kind    ErrorKind
	Message string
}

func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func (e *Error) Error() string {
	return e.Message
}

// KindOf returns the ErrorKind of the root cause of err.
func KindOf(err error) ErrorKind {
	switch e := errors.Cause(err).(type) {
	case *Error:
		return e.Kind
	case *ValidationError:
		return KindInvalidInput
	}
	return KindUnknown
}

// IsKind reports whether the root cause of err is of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
