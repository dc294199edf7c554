// Package engine hosts the OCR engine registry and selection strategies.
package engine

import (
	"sync"

	"fiscora/internal/port"
)

// Registry holds the concrete engines built at startup. It is passed by
// reference into the orchestrator; there is no ambient global registry.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]port.Engine
	order   []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{engines: make(map[string]port.Engine)}
}

// Register adds an engine under its own name. Re-registering a name replaces
// the previous engine without changing registration order.
func (r *Registry) Register(e port.Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := e.Name()
	if _, exists := r.engines[name]; !exists {
		r.order = append(r.order, name)
	}
	r.engines[name] = e
}

// Get returns the engine registered under name.
func (r *Registry) Get(name string) (port.Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[name]
	return e, ok
}

// Names returns all registered engine names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Available returns the names of engines currently reporting availability.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, name := range r.order {
		if r.engines[name].IsAvailable() {
			out = append(out, name)
		}
	}
	return out
}
