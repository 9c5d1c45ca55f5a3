package formats

import (
	"sort"
	"sync"
)

// Registry holds the format definitions known to the process and which
// entity types they apply to. Definitions are looked up by name at job
// execution time, so re-registering a name changes what later jobs produce.
type Registry struct {
	mu       sync.RWMutex
	defs     map[string]Definition
	order    []string
	entities map[string][]string
}

func NewRegistry() *Registry {
	return &Registry{
		defs:     make(map[string]Definition),
		entities: make(map[string][]string),
	}
}

// Register adds or replaces d and binds it to the given entity types.
func (r *Registry) Register(d Definition, entityTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[d.Name]; !exists {
		r.order = append(r.order, d.Name)
	}
	r.defs[d.Name] = d

	for _, entityType := range entityTypes {
		if !contains(r.entities[entityType], d.Name) {
			r.entities[entityType] = append(r.entities[entityType], d.Name)
		}
	}
}

func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[name]
	return d, ok
}

// ForEntity returns the definitions registered for entityType in
// registration order. An empty entity type has no formats.
func (r *Registry) ForEntity(entityType string) []Definition {
	if entityType == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.entities[entityType]
	defs := make([]Definition, 0, len(names))
	for _, name := range names {
		defs = append(defs, r.defs[name])
	}
	return defs
}

// All returns every definition in registration order.
func (r *Registry) All() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.defs[name])
	}
	return defs
}

// EntityTypes lists the entity types that have formats, sorted.
func (r *Registry) EntityTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.entities))
	for t := range r.entities {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
