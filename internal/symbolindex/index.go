// Package symbolindex implements spec.md §4.3: the mapping from
// (namespace, name, version) to the exporting instance, plus the
// namespace population count. It is confined to the Executor's single
// thread (spec.md §5) and therefore carries no internal locking, grounded
// on eventloop/registry.go's map-plus-counters shape (that registry tracks
// promise-by-id; this one tracks exporter-by-symbol-key).
package symbolindex

import (
	"fmt"

	"github.com/fimoengine/fimo-go/internal/coretypes"
)

// Key identifies an exported symbol.
type Key struct {
	Namespace string
	Name      string
	Version   coretypes.Version
}

func (k Key) String() string {
	return fmt.Sprintf("%s::%s@%s", k.Namespace, k.Name, k.Version)
}

// lookupKey omits Version: the index is keyed by (namespace, name) for
// storage, since exactly one live exporter may hold a given
// (namespace, name) regardless of version (spec.md §3 "every live export
// appears exactly once in the Symbol Index under its key" combined with
// §4.3's Lookup matching "any exporter with matching (name, ns)").
type lookupKey struct {
	Namespace string
	Name      string
}

// Entry is the published record for one live export.
type Entry struct {
	Instance    any // opaque instance identity owned by the registry package
	Version     coretypes.Version
	Pointer     any // the static pointer, or a constructed dynamic value
	IsDynamic   bool
}

// Index is the Symbol & Namespace Index of spec.md §4.3.
type Index struct {
	symbols    map[lookupKey]Entry
	namespaces map[string]int
}

// New constructs an empty Index.
func New() *Index {
	return &Index{
		symbols:    make(map[lookupKey]Entry),
		namespaces: make(map[string]int),
	}
}

// Publish inserts export under (namespace, name), incrementing the
// namespace population. It fails with ErrDuplicateSymbol if an export
// already exists under that (namespace, name), regardless of version,
// matching spec.md §3's invariant that every live export appears exactly
// once in the index.
func (idx *Index) Publish(namespace, name string, entry Entry) error {
	k := lookupKey{Namespace: namespace, Name: name}
	if _, exists := idx.symbols[k]; exists {
		return coretypes.WrapError(coretypes.ErrKindDuplicateSymbol, nil,
			"symbol %s::%s already published", namespace, name)
	}
	idx.symbols[k] = entry
	idx.namespaces[namespace]++
	return nil
}

// Retract removes the export at (namespace, name). If the namespace's
// population reaches zero, the namespace entry itself is removed (spec.md
// §3 "namespace exists iff population >= 1").
func (idx *Index) Retract(namespace, name string) {
	k := lookupKey{Namespace: namespace, Name: name}
	if _, exists := idx.symbols[k]; !exists {
		return
	}
	delete(idx.symbols, k)
	idx.namespaces[namespace]--
	if idx.namespaces[namespace] <= 0 {
		delete(idx.namespaces, namespace)
	}
}

// Lookup finds an exporter for (name, namespace) whose exported version is
// compatible with minVersion per coretypes.Version.Compatible. Returns
// ErrUnknownSymbol (aliased as symbol-not-found in spec.md §4.3) if no
// export exists under that (namespace,name), or ErrSymbolVersionMismatch if
// one exists but its version is incompatible.
func (idx *Index) Lookup(namespace, name string, minVersion coretypes.Version) (Entry, error) {
	k := lookupKey{Namespace: namespace, Name: name}
	entry, exists := idx.symbols[k]
	if !exists {
		return Entry{}, coretypes.WrapError(coretypes.ErrKindUnknownSymbol, nil,
			"no exporter for %s::%s", namespace, name)
	}
	if !entry.Version.Compatible(minVersion) {
		return Entry{}, coretypes.WrapError(coretypes.ErrKindSymbolVersionMismatch, nil,
			"%s::%s exports %s, incompatible with required %s", namespace, name, entry.Version, minVersion)
	}
	return entry, nil
}

// Has reports whether a symbol is currently published, ignoring version
// compatibility. The loading set's validation pass does not consult it; it
// checks duplicate exports only among the staged modules.
func (idx *Index) Has(namespace, name string) bool {
	_, exists := idx.symbols[lookupKey{Namespace: namespace, Name: name}]
	return exists
}

// NamespacePopulation returns the live-export count for a namespace (0 if
// the namespace does not exist).
func (idx *Index) NamespacePopulation(namespace string) int {
	return idx.namespaces[namespace]
}

// NamespaceExists reports whether the namespace currently has at least one
// live export (spec.md §3 invariant I4).
func (idx *Index) NamespaceExists(namespace string) bool {
	return idx.namespaces[namespace] > 0
}
