// Package apperr defines the error kinds surfaced to Sprintyard callers.
// Each kind maps to one HTTP status in the API layer.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an Error.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindAccess             Kind = "access"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindQuotaExceeded      Kind = "quota_exceeded"
	KindServiceUnavailable Kind = "service_unavailable"
	KindPersistence        Kind = "persistence"
	KindInternal           Kind = "internal"
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Message string
	Err     error

	// ResetDate is set for KindQuotaExceeded.
	ResetDate time.Time
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation returns a KindValidation error.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Access returns a KindAccess error.
func Access(format string, args ...any) *Error {
	return &Error{Kind: KindAccess, Message: fmt.Sprintf(format, args...)}
}

// NotFound returns a KindNotFound error for the named entity.
func NotFound(entity string, id uint) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %d not found", entity, id)}
}

// Conflict returns a KindConflict error.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// QuotaExceeded returns a KindQuotaExceeded error carrying the next reset date.
func QuotaExceeded(resetDate time.Time) *Error {
	return &Error{
		Kind:      KindQuotaExceeded,
		Message:   "AI request quota exceeded",
		ResetDate: resetDate,
	}
}

// Unavailable wraps err as a KindServiceUnavailable error.
func Unavailable(msg string, err error) *Error {
	return &Error{Kind: KindServiceUnavailable, Message: msg, Err: err}
}

// Persistence wraps err as a KindPersistence error.
func Persistence(msg string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: msg, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
