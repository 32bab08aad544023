package coretypes

// AccessGroup controls which instances may read or write a parameter
// (spec.md §6).
type AccessGroup int

const (
	// AccessPublic allows read/write from anywhere.
	AccessPublic AccessGroup = iota
	// AccessDependency allows read/write only from instances holding a
	// dependency edge to the owning instance.
	AccessDependency
	// AccessPrivate allows read/write only from the owning instance itself.
	AccessPrivate
)

func (a AccessGroup) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessDependency:
		return "dependency"
	case AccessPrivate:
		return "private"
	default:
		return "unknown"
	}
}

// ParamType is the tagged type of a parameter's value (spec.md §6).
type ParamType int

const (
	ParamU8 ParamType = iota
	ParamU16
	ParamU32
	ParamU64
	ParamI8
	ParamI16
	ParamI32
	ParamI64
)

// ParamValue is a tagged union over the eight integer widths a parameter
// may hold. The bit-level accessor machinery over this type is explicitly
// out of scope (spec.md §1); ParamValue is the minimal concrete
// representation the in-scope Parameter read/write operations need.
type ParamValue struct {
	Type ParamType
	bits uint64
}

// NewParamValue packs v (reinterpreted as unsigned bits) under the given type.
func NewParamValue(t ParamType, v int64) ParamValue {
	return ParamValue{Type: t, bits: uint64(v)}
}

// Uint64 returns the raw bit pattern.
func (p ParamValue) Uint64() uint64 { return p.bits }

// Int64 returns the value reinterpreted as signed.
func (p ParamValue) Int64() int64 { return int64(p.bits) }

// ParamDecl describes one declared parameter (spec.md §6): type tag, read
// and write access groups, name, default value.
type ParamDecl struct {
	Name    string
	Type    ParamType
	Read    AccessGroup
	Write   AccessGroup
	Default ParamValue
}
