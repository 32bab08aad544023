package fimo

import (
	"github.com/fimoengine/fimo-go/internal/coretypes"
)

// ParamValue, ParamType, ParamDecl, and AccessGroup are re-exported
// unchanged from the internal data model (spec.md §6): a tagged union
// over the eight integer widths, and the three access groups governing
// who may read or write a given parameter.
type (
	ParamValue  = coretypes.ParamValue
	ParamType   = coretypes.ParamType
	ParamDecl   = coretypes.ParamDecl
	AccessGroup = coretypes.AccessGroup
)

const (
	ParamU8  = coretypes.ParamU8
	ParamU16 = coretypes.ParamU16
	ParamU32 = coretypes.ParamU32
	ParamU64 = coretypes.ParamU64
	ParamI8  = coretypes.ParamI8
	ParamI16 = coretypes.ParamI16
	ParamI32 = coretypes.ParamI32
	ParamI64 = coretypes.ParamI64

	AccessPublic     = coretypes.AccessPublic
	AccessDependency = coretypes.AccessDependency
	AccessPrivate    = coretypes.AccessPrivate
)

// NewParamValue packs v under the given type tag.
func NewParamValue(t ParamType, v int64) ParamValue { return coretypes.NewParamValue(t, v) }

// ReadParam reads ownerName's parameter paramName on behalf of
// readerName, enforcing the parameter's declared read access group
// (spec.md §6): public from anywhere, dependency only from an instance
// holding a dependency edge to owner (or owner itself), private only from
// owner itself.
func (c *Context) ReadParam(readerName, ownerName, paramName string) (ParamValue, error) {
	owner, ok := c.deps.Registry.Get(ownerName)
	if !ok {
		return ParamValue{}, coretypes.WrapError(coretypes.ErrKindInstanceUnloaded, nil,
			"instance %q is not loaded", ownerName)
	}
	decl, ok := owner.ParamDecls[paramName]
	if !ok {
		return ParamValue{}, coretypes.WrapError(coretypes.ErrKindUnknownSymbol, nil,
			"instance %q declares no parameter %q", ownerName, paramName)
	}
	if !checkAccess(decl.Read, readerName, ownerName, c.deps.DepGraph) {
		return ParamValue{}, coretypes.WrapError(coretypes.ErrKindAccessDenied, nil,
			"%q may not read %q's parameter %q (%s)", readerName, ownerName, paramName, decl.Read)
	}
	v, _ := owner.GetParam(paramName)
	return v, nil
}

// WriteParam writes ownerName's parameter paramName on behalf of
// writerName, enforcing the parameter's declared write access group.
func (c *Context) WriteParam(writerName, ownerName, paramName string, v ParamValue) error {
	owner, ok := c.deps.Registry.Get(ownerName)
	if !ok {
		return coretypes.WrapError(coretypes.ErrKindInstanceUnloaded, nil,
			"instance %q is not loaded", ownerName)
	}
	decl, ok := owner.ParamDecls[paramName]
	if !ok {
		return coretypes.WrapError(coretypes.ErrKindUnknownSymbol, nil,
			"instance %q declares no parameter %q", ownerName, paramName)
	}
	if !checkAccess(decl.Write, writerName, ownerName, c.deps.DepGraph) {
		return coretypes.WrapError(coretypes.ErrKindAccessDenied, nil,
			"%q may not write %q's parameter %q (%s)", writerName, ownerName, paramName, decl.Write)
	}
	if v.Type != decl.Type {
		return coretypes.WrapError(coretypes.ErrKindInvalidModifier, nil,
			"parameter %q is type %v, got %v", paramName, decl.Type, v.Type)
	}
	owner.SetParam(paramName, v)
	return nil
}
