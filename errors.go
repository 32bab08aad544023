package fimo

import (
	"errors"

	"github.com/fimoengine/fimo-go/internal/coretypes"
)

// Error and ErrorKind are the public discriminated error sum of spec.md
// §7: every failure path in this library returns a *fimo.Error (or wraps
// one), never a bespoke exception type.
type (
	Error     = coretypes.Error
	ErrorKind = coretypes.ErrorKind
)

const (
	ErrKindDuplicateName         = coretypes.ErrKindDuplicateName
	ErrKindDuplicateSymbol       = coretypes.ErrKindDuplicateSymbol
	ErrKindUnknownSymbol         = coretypes.ErrKindUnknownSymbol
	ErrKindDependencyCycleStaged = coretypes.ErrKindDependencyCycleStaged
	ErrKindDependencyCycleLive   = coretypes.ErrKindDependencyCycleLive
	ErrKindAccessDenied          = coretypes.ErrKindAccessDenied
	ErrKindConstructorFailed     = coretypes.ErrKindConstructorFailed
	ErrKindSymbolVersionMismatch = coretypes.ErrKindSymbolVersionMismatch
	ErrKindInstanceUnloaded      = coretypes.ErrKindInstanceUnloaded
	ErrKindInvalidModifier       = coretypes.ErrKindInvalidModifier
)

// Sentinel values for errors.Is, one per row of spec.md §7's table.
var (
	ErrDuplicateName         = coretypes.ErrDuplicateName
	ErrDuplicateSymbol       = coretypes.ErrDuplicateSymbol
	ErrUnknownSymbol         = coretypes.ErrUnknownSymbol
	ErrDependencyCycleStaged = coretypes.ErrDependencyCycleStaged
	ErrDependencyCycleLive   = coretypes.ErrDependencyCycleLive
	ErrAccessDenied          = coretypes.ErrAccessDenied
	ErrConstructorFailed     = coretypes.ErrConstructorFailed
	ErrSymbolVersionMismatch = coretypes.ErrSymbolVersionMismatch
	ErrInstanceUnloaded      = coretypes.ErrInstanceUnloaded
	ErrInvalidModifier       = coretypes.ErrInvalidModifier
)

// Kind extracts the ErrorKind from err if it (or something it wraps) is a
// *fimo.Error, and reports whether one was found.
func Kind(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsUnknownSymbol, IsAccessDenied, and IsDependencyCycle are convenience
// wrappers over errors.Is against the three sentinels callers are most
// likely to branch on (resolution failures, parameter access rejections,
// and cycle rejections, live or staged).
func IsUnknownSymbol(err error) bool { return errors.Is(err, ErrUnknownSymbol) }
func IsAccessDenied(err error) bool  { return errors.Is(err, ErrAccessDenied) }
func IsDependencyCycle(err error) bool {
	return errors.Is(err, ErrDependencyCycleStaged) || errors.Is(err, ErrDependencyCycleLive)
}
