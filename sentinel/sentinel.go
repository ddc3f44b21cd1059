// Package sentinel provides the three identity tokens used to tag dynamic
// values beyond what their structural shape conveys:
//
//   - Null: an explicit JSON null, distinguishable from "key absent"
//   - AsArray / AsObject: container intent hints, so an empty container
//     round-trips unambiguously
//
// Tokens are compared by pointer identity only, never by value. They are
// created once per Registry and never copied; a Sentinel obtained from one
// Registry is meaningless to another.
package sentinel

// Sentinel is an identity-only marker token. Its label exists purely for
// diagnostics.
type Sentinel struct {
	label string
}

// String returns the fixed human-readable label, e.g. "dynjson.null".
func (s *Sentinel) String() string { return s.label }

// Registry holds the three sentinels for one codec instance.
// It is immutable after construction and safe for concurrent use.
type Registry struct {
	null     *Sentinel
	asArray  *Sentinel
	asObject *Sentinel
}

// NewRegistry creates the three tokens. Each accessor returns the same
// identity on every call for the life of the Registry.
func NewRegistry() *Registry {
	return &Registry{
		null:     &Sentinel{label: "dynjson.null"},
		asArray:  &Sentinel{label: "dynjson.as_array"},
		asObject: &Sentinel{label: "dynjson.as_object"},
	}
}

// Null returns the explicit-null marker.
func (r *Registry) Null() *Sentinel { return r.null }

// AsArray returns the treat-as-array container hint.
func (r *Registry) AsArray() *Sentinel { return r.asArray }

// AsObject returns the treat-as-object container hint.
func (r *Registry) AsObject() *Sentinel { return r.asObject }
