package materialize

import (
	"sort"
	"sync"
)

// Registry maps saver kind names to their factories. It is safe for
// concurrent use, so integrations can register kinds from init functions.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]SaverFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]SaverFactory)}
}

// Register adds or replaces the factory for a saver kind.
func (r *Registry) Register(kind string, factory SaverFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = factory
}

// Has reports whether a kind is registered.
func (r *Registry) Has(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[kind]
	return ok
}

// Kinds returns the registered kind names, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Build constructs a saver of the given kind from its parameters.
// An unregistered kind returns *UnknownSaverError naming the valid kinds.
func (r *Registry) Build(kind string, params map[string]any) (DataSaver, error) {
	r.mu.RLock()
	factory, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownSaverError{Kind: kind, Valid: r.Kinds()}
	}
	return factory(params)
}
