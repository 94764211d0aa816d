// Package apperr classifies failures so transports can map them to responses.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the class of a failure.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindGateRejection
	KindNotFound
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindGateRejection:
		return "gate_rejection"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

var (
	ErrValidation    = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrGateRejection = &Error{Kind: KindGateRejection, Message: "transition rejected"}
	ErrNotFound      = &Error{Kind: KindNotFound, Message: "not found"}
	ErrForbidden     = &Error{Kind: KindForbidden, Message: "forbidden"}

	// ErrAttachmentRequired is the reason given when a task needs evidence before it can be done.
	ErrAttachmentRequired = errors.New("task requires at least one attachment before it can be marked done")
)

// Error is a classified failure with a user-facing message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// for every not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Validation reports bad input.
func Validation(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing entity.
func NotFound(entity string, id int64) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %d not found", entity, id)}
}

// Forbidden reports an actor acting outside its scope.
func Forbidden(format string, args ...interface{}) error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// Gate reports a refused status transition with its reason.
func Gate(reason error) error {
	return &Error{Kind: KindGateRejection, Message: reason.Error(), Err: reason}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the user-facing message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
