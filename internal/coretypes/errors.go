package coretypes

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed, discriminated sum of error categories from
// spec.md §7. Errors propagate as a sum of kinds, never as exceptions.
type ErrorKind int

const (
	// ErrKindUnspecified is the zero value; it is also the kind of errors
	// outside the table, such as loadset's ErrSetTerminal.
	ErrKindUnspecified ErrorKind = iota
	// ErrKindDuplicateName: validation, recoverable by skipping the module.
	ErrKindDuplicateName
	// ErrKindDuplicateSymbol: validation, recoverable by skipping the module.
	ErrKindDuplicateSymbol
	// ErrKindUnknownSymbol: resolution, recoverable by skipping the dependent.
	ErrKindUnknownSymbol
	// ErrKindDependencyCycleStaged: resolution, fails the whole commit.
	ErrKindDependencyCycleStaged
	// ErrKindDependencyCycleLive: add_dependency, rejects the operation.
	ErrKindDependencyCycleLive
	// ErrKindAccessDenied: parameter ops, rejects the operation.
	ErrKindAccessDenied
	// ErrKindConstructorFailed: load, recoverable by skipping the module.
	ErrKindConstructorFailed
	// ErrKindSymbolVersionMismatch: lookup, recoverable.
	ErrKindSymbolVersionMismatch
	// ErrKindInstanceUnloaded: strong-ref acquisition, recoverable.
	ErrKindInstanceUnloaded
	// ErrKindInvalidModifier: validation, fails load of that module.
	ErrKindInvalidModifier
)

// String names the kind for logging.
func (k ErrorKind) String() string {
	switch k {
	case ErrKindDuplicateName:
		return "duplicate-name"
	case ErrKindDuplicateSymbol:
		return "duplicate-symbol"
	case ErrKindUnknownSymbol:
		return "unknown-symbol"
	case ErrKindDependencyCycleStaged:
		return "dependency-cycle-staged"
	case ErrKindDependencyCycleLive:
		return "dependency-cycle-live"
	case ErrKindAccessDenied:
		return "access-denied"
	case ErrKindConstructorFailed:
		return "constructor-failed"
	case ErrKindSymbolVersionMismatch:
		return "symbol-version-mismatch"
	case ErrKindInstanceUnloaded:
		return "instance-unloaded"
	case ErrKindInvalidModifier:
		return "invalid-modifier"
	default:
		return "unspecified"
	}
}

// Recoverable reports whether a failure of this kind is local to the
// offending module/operation (true) or fails the entire enclosing commit
// (false), per the table in spec.md §7.
func (k ErrorKind) Recoverable() bool {
	switch k {
	case ErrKindDependencyCycleStaged:
		return false
	default:
		return true
	}
}

// Error is the single concrete error type used across the module core. It
// carries a Kind, a human-readable Message, and an optional Cause,
// grounded on eventloop/errors.go's TypeError/RangeError/TimeoutError
// shape (each: Cause error; Message string; Error() string; Unwrap()
// error).
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// NewError constructs an *Error of the given kind.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError constructs an *Error of the given kind with an underlying cause.
func WrapError(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap supports errors.Is/errors.As through the cause chain.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches target against the Kind when target is itself an *Error, so
// errors.Is(err, &Error{Kind: ErrKindUnknownSymbol}) works without caring
// about Message/Cause.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// Sentinel values for errors.Is comparisons against a specific kind,
// matching the ten rows of spec.md §7's table.
var (
	ErrDuplicateName          = &Error{Kind: ErrKindDuplicateName}
	ErrDuplicateSymbol        = &Error{Kind: ErrKindDuplicateSymbol}
	ErrUnknownSymbol          = &Error{Kind: ErrKindUnknownSymbol}
	ErrDependencyCycleStaged  = &Error{Kind: ErrKindDependencyCycleStaged}
	ErrDependencyCycleLive    = &Error{Kind: ErrKindDependencyCycleLive}
	ErrAccessDenied           = &Error{Kind: ErrKindAccessDenied}
	ErrConstructorFailed      = &Error{Kind: ErrKindConstructorFailed}
	ErrSymbolVersionMismatch  = &Error{Kind: ErrKindSymbolVersionMismatch}
	ErrInstanceUnloaded       = &Error{Kind: ErrKindInstanceUnloaded}
	ErrInvalidModifier        = &Error{Kind: ErrKindInvalidModifier}
	ErrSymbolNotFound         = ErrUnknownSymbol
)
