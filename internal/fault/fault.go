// Package fault carries the categorized errors the domain layers return.
// Every rejected operation maps to exactly one kind; transport
// boundaries translate kinds into HTTP status codes or socket events.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a rejection.
type Kind int

const (
	// KindValidation marks malformed or missing required input.
	KindValidation Kind = iota + 1
	// KindNotFound marks a reference that does not resolve.
	KindNotFound
	// KindConflict marks an operation blocked by a state-machine
	// precondition; the message names the current state.
	KindConflict
	// KindUnauthorized marks a missing or invalid credential.
	KindUnauthorized
	// KindForbidden marks an insufficient role.
	KindForbidden
	// KindTimeout marks a bounded wait that expired.
	KindTimeout
)

// Error is a categorized, caller-facing error.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validationf builds a validation fault.
func Validationf(format string, args ...any) *Error { return newf(KindValidation, format, args...) }

// NotFoundf builds a not-found fault.
func NotFoundf(format string, args ...any) *Error { return newf(KindNotFound, format, args...) }

// Conflictf builds a conflict fault.
func Conflictf(format string, args ...any) *Error { return newf(KindConflict, format, args...) }

// Unauthorizedf builds an unauthorized fault.
func Unauthorizedf(format string, args ...any) *Error { return newf(KindUnauthorized, format, args...) }

// Forbiddenf builds a forbidden fault.
func Forbiddenf(format string, args ...any) *Error { return newf(KindForbidden, format, args...) }

// Timeoutf builds a timeout fault.
func Timeoutf(format string, args ...any) *Error { return newf(KindTimeout, format, args...) }

// KindOf extracts the kind from err, or 0 for uncategorized errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool { return KindOf(err) == kind }
