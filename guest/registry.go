package guest

import (
	"sort"

	"github.com/wippyai/weval-runtime/errors"
)

// Registry maps stable function identities to their generic
// implementations. Identities are small caller-assigned integers that
// survive recompiles and relinks; one registry assembled at startup
// replaces per-function registration thunks.
type Registry struct {
	generics map[uint32]any
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{generics: make(map[uint32]any)}
}

// Define binds an identity to its generic implementation. Redefining an
// identity or binding nil is rejected.
func (r *Registry) Define(id uint32, generic any) error {
	if generic == nil {
		return errors.InvalidInput(errors.PhaseRun, "nil generic implementation")
	}
	if _, ok := r.generics[id]; ok {
		return errors.New(errors.PhaseRun, errors.KindInvalidInput).
			Detail("identity %d already defined", id).
			Value(id).
			Build()
	}
	r.generics[id] = generic
	return nil
}

// Generic returns the implementation bound to an identity.
func (r *Registry) Generic(id uint32) (any, bool) {
	fn, ok := r.generics[id]
	return fn, ok
}

// Each visits identities in ascending order until fn returns false.
func (r *Registry) Each(fn func(id uint32, generic any) bool) {
	ids := make([]uint32, 0, len(r.generics))
	for id := range r.generics {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if !fn(id, r.generics[id]) {
			return
		}
	}
}

// Len reports the number of defined identities.
func (r *Registry) Len() int { return len(r.generics) }
