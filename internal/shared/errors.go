package shared

import (
	"errors"
	"fmt"
)

// Kind classifies workflow failures so callers can react without string matching.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindInvalidTransition Kind = "invalid_transition"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindPersistence       Kind = "persistence_failure"
	KindForbidden         Kind = "forbidden"
)

var (
	// ErrValidation indicates caller input violated a precondition.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidTransition indicates the requested state change is not permitted.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a concurrent modification was detected by the store.
	ErrConflict = errors.New("concurrent modification")
	// ErrPersistence indicates the store was unavailable or timed out.
	ErrPersistence = errors.New("persistence failure")
	// ErrForbidden indicates the actor lacks the permission for the action.
	ErrForbidden = errors.New("forbidden")
)

// kindOrder is the precedence KindOf applies when an error wraps several
// sentinels.
var kindOrder = []Kind{
	KindValidation,
	KindInvalidTransition,
	KindNotFound,
	KindConflict,
	KindForbidden,
	KindPersistence,
}

var sentinels = map[Kind]error{
	KindValidation:        ErrValidation,
	KindInvalidTransition: ErrInvalidTransition,
	KindNotFound:          ErrNotFound,
	KindConflict:          ErrConflict,
	KindPersistence:       ErrPersistence,
	KindForbidden:         ErrForbidden,
}

// Error is the structured failure returned by every workflow operation.
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

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error kind so errors.Is(err, ErrConflict) works.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// Retryable reports whether the caller may re-fetch and retry.
func (e *Error) Retryable() bool {
	return e.Kind == KindConflict || e.Kind == KindPersistence
}

// E builds a workflow error.
func E(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validation is shorthand for a validation error.
func Validation(op, format string, args ...any) *Error {
	return E(KindValidation, op, format, args...)
}

// NotFound is shorthand for a not-found error.
func NotFound(op, format string, args ...any) *Error {
	return E(KindNotFound, op, format, args...)
}

// KindOf extracts the kind from err. Errors without a kind are treated as
// persistence failures since they originate below the workflow layer.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var werr *Error
	if errors.As(err, &werr) {
		return werr.Kind
	}
	for _, kind := range kindOrder {
		if errors.Is(err, sentinels[kind]) {
			return kind
		}
	}
	return KindPersistence
}

// WithOp stamps op onto err, preserving an existing kind.
func WithOp(op string, err error) error {
	if err == nil {
		return nil
	}
	var werr *Error
	if errors.As(err, &werr) {
		if werr.Op == "" {
			clone := *werr
			clone.Op = op
			return &clone
		}
		return err
	}
	return Wrap(KindOf(err), op, err)
}
