package lending

import (
	"errors"
	"fmt"
)

// Kind classifies a lifecycle failure.
type Kind int

// Failure kinds.
const (
	KindInvalidArgument Kind = iota + 1
	KindUnauthenticated
	KindPermissionDenied
	KindNotFound
	KindConflict
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindPermissionDenied:
		return "permission_denied"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the typed failure returned by every Manager operation.
// Field names the offending input, or is empty for general errors.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or 0 if err is not an *Error.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return 0
}

func invalid(field, message string) *Error {
	return &Error{Kind: KindInvalidArgument, Field: field, Message: message}
}

func unauthenticated() *Error {
	return &Error{Kind: KindUnauthenticated, Message: "not authenticated"}
}

func denied(message string) *Error {
	return &Error{Kind: KindPermissionDenied, Message: message}
}

func notFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// unavailable wraps a store or transport fault. Already typed errors pass
// through unchanged.
func unavailable(err error) error {
	var le *Error
	if errors.As(err, &le) {
		return le
	}
	return &Error{Kind: KindUnavailable, Message: "store unavailable", Err: err}
}
