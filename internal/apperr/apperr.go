// Package apperr defines the error kinds shared across the task lifecycle
// engine, independent of how they are eventually mapped onto the wire
// protocol (see internal/api/middleware for the HTTP mapping).
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error the way §7 of the design does.
type Kind string

const (
	KindValidation             Kind = "VALIDATION"
	KindAuth                   Kind = "AUTH"
	KindNotFound               Kind = "NOT_FOUND"
	KindConflict               Kind = "CONFLICT"
	KindInvalidStateTransition Kind = "INVALID_STATE_TRANSITION"
	KindQueueExists            Kind = "QUEUE_EXISTS"
	KindQueueNotEmpty          Kind = "QUEUE_NOT_EMPTY"
	KindWorkerNotAvailable     Kind = "WORKER_NOT_AVAILABLE"
	KindStoreTransient         Kind = "STORE_TRANSIENT"
	KindStoreFatal             Kind = "STORE_FATAL"
)

// Error is the typed error value the core returns; callers switch on Kind
// rather than comparing error strings.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func new(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Validation(msg string) *Error                { return new(KindValidation, msg) }
func Validationf(format string, a ...any) *Error  { return new(KindValidation, fmt.Sprintf(format, a...)) }
func Auth(msg string) *Error                      { return new(KindAuth, msg) }
func NotFound(msg string) *Error                  { return new(KindNotFound, msg) }
func NotFoundf(format string, a ...any) *Error     { return new(KindNotFound, fmt.Sprintf(format, a...)) }
func Conflict(msg string) *Error                  { return new(KindConflict, msg) }
func InvalidStateTransition(msg string) *Error    { return new(KindInvalidStateTransition, msg) }
func QueueExists(msg string) *Error               { return new(KindQueueExists, msg) }
func QueueNotEmpty(msg string) *Error             { return new(KindQueueNotEmpty, msg) }
func WorkerNotAvailable(msg string) *Error        { return new(KindWorkerNotAvailable, msg) }
func StoreTransient(msg string, err error) *Error { return wrap(KindStoreTransient, msg, err) }
func StoreFatal(msg string, err error) *Error     { return wrap(KindStoreFatal, msg, err) }

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to KindStoreFatal for
// errors the core did not originate (unexpected / programmer errors).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStoreFatal
}
