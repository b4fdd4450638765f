// Package addons holds the server-side networked-addon catalog consulted by
// AdmissionController. This is distinct from command/plugin loading, which
// spec.md §1 places out of scope under AddonRegistry's namesake collaborator;
// this Registry only ever answers "what addon set does the server expect".
package addons

import "scenerelay/internal/wire"

// Registry is the server's full networked-addon set, each entry carrying
// the numeric id used to build addonOrder on a successful login.
type Registry struct {
	entries []wire.AddonDescriptor
	byKey   map[string]wire.AddonDescriptor
}

func key(identifier, version string) string {
	return identifier + "@" + version
}

// New builds a Registry from a fixed addon list, assigning ids in list order
// starting at 1 unless an entry already carries a non-zero ID.
func New(entries []wire.AddonDescriptor) *Registry {
	r := &Registry{
		entries: make([]wire.AddonDescriptor, len(entries)),
		byKey:   make(map[string]wire.AddonDescriptor, len(entries)),
	}
	nextID := int32(1)
	for i, e := range entries {
		if e.ID == 0 {
			e.ID = nextID
		}
		if e.ID >= nextID {
			nextID = e.ID + 1
		}
		r.entries[i] = e
		r.byKey[key(e.Identifier, e.Version)] = e
	}
	return r
}

// All returns the full server-side addon set, in registration order.
func (r *Registry) All() []wire.AddonDescriptor {
	return append([]wire.AddonDescriptor(nil), r.entries...)
}

// Lookup returns the server's descriptor (with its numeric id) for an exact
// (identifier, version) match.
func (r *Registry) Lookup(identifier, version string) (wire.AddonDescriptor, bool) {
	d, ok := r.byKey[key(identifier, version)]
	return d, ok
}

// Len reports the server's addon-set cardinality.
func (r *Registry) Len() int {
	return len(r.entries)
}
