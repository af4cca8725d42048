// Package host provides the name-to-value registry the embedding
// application populates with objects it wants reachable from script code.
// The bridge consults it to answer "what does this name refer to in the host".
package host

import "sync"

// Registry maps host names to values. All methods are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{values: make(map[string]any)}
}

// Set registers or replaces the value bound to name. A replacement only
// affects sessions started afterwards; a running session keeps the value
// it first resolved.
//
// Precondition: name must be non-empty.
func (r *Registry) Set(name string, value any) {
	if name == "" {
		panic("host: empty name")
	}
	r.mu.Lock()
	r.values[name] = value
	r.mu.Unlock()
}

// Lookup returns the value bound to name.
//
// Postcondition: Returns (value, true) if found, or (nil, false) otherwise.
func (r *Registry) Lookup(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[name]
	return v, ok
}

// Names returns the registered names in no particular order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.values))
	for name := range r.values {
		names = append(names, name)
	}
	return names
}
