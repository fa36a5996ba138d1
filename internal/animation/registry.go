package animation

import (
	"fmt"
	"sync"
)

// Registry is the set of animated bodies, in insertion order.
// Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	bodies map[string]*Body
	order  []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{bodies: make(map[string]*Body)}
}

// Add registers b. Names must be unique.
func (r *Registry) Add(b *Body) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bodies[b.Def.Name]; ok {
		return fmt.Errorf("body %q already registered", b.Def.Name)
	}
	r.bodies[b.Def.Name] = b
	r.order = append(r.order, b.Def.Name)
	return nil
}

// Get returns the named body.
func (r *Registry) Get(name string) (*Body, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bodies[name]
	return b, ok
}

// Remove unregisters the named body. Removing an unknown body is a no-op.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bodies[name]; !ok {
		return
	}
	delete(r.bodies, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
}

// Names returns the registered names in insertion order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered bodies.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// each calls fn for every body in insertion order.
func (r *Registry) each(fn func(*Body)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.order {
		fn(r.bodies[name])
	}
}
