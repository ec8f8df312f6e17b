// Package apperr defines the typed error kinds shared across the service
// layer. Handlers map kinds to HTTP status codes; the core never sees HTTP.
package apperr

import "fmt"

// Kind classifies an error for the caller.
type Kind int

const (
	// KindValidation covers guard rejections; Reason carries the deny code.
	KindValidation Kind = iota
	// KindInvalidTransition covers disallowed state machine moves.
	KindInvalidTransition
	// KindNotFound covers order/invoice/meal/staff lookup misses.
	KindNotFound
	// KindPermission covers ownership and cross-company access violations.
	KindPermission
	// KindSignature covers webhook signature mismatches.
	KindSignature
	// KindReconciliation covers amount mismatches and already-claimed orders.
	KindReconciliation
	// KindProvider covers payment provider/network failures; retryable.
	KindProvider
	// KindAlreadyProcessed marks an idempotent no-op; callers treat as success.
	KindAlreadyProcessed
)

// Error is an error with a kind and an optional machine-readable reason.
type Error struct {
	Kind   Kind
	Reason string
	msg    string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Validation creates a guard rejection with its deny reason code.
func Validation(reason, msg string) *Error {
	return &Error{Kind: KindValidation, Reason: reason, msg: msg}
}

// Wrap attaches a cause to an error of the given kind.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, msg: msg, cause: cause}
}

// KindOf reports the kind of err, or ok=false if err is not an *Error.
func KindOf(err error) (Kind, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return 0, false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// ReasonOf returns the deny reason of a validation error, if any.
func ReasonOf(err error) string {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Reason
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return ""
}
