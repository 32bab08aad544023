// Package coretypes holds the plain value types shared across every
// internal package and re-exported by the root fimo package: versions,
// access groups, parameter types/values, and the discriminated error sum
// of spec.md §7. None of it depends on executor, symbolindex, registry,
// depgraph, or loadset, so it carries no import-cycle risk.
package coretypes

import "fmt"

// Version is a three-component version number, compared per spec.md
// §4.3's rule: same major; minor >= requested; patch >= requested if minor
// equal. No example repo in the retrieval pack ships a comparator
// matching this exact (non-full-semver) compatibility rule, so this type
// is implemented directly against the prose rather than grounded on a
// library — see DESIGN.md.
type Version struct {
	Major uint32
	Minor uint32
	Patch uint32
}

// String renders "MAJOR.MINOR.PATCH".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compatible reports whether v satisfies a requirement of required,
// per spec.md §4.3: same major; v.Minor >= required.Minor; and if
// v.Minor == required.Minor, v.Patch >= required.Patch.
func (v Version) Compatible(required Version) bool {
	if v.Major != required.Major {
		return false
	}
	if v.Minor < required.Minor {
		return false
	}
	if v.Minor == required.Minor && v.Patch < required.Patch {
		return false
	}
	return true
}
