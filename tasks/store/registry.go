package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Backend names understood by the default wiring.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
	BackendNeo4j  = "neo4j"
)

// Factory opens a Storage backend.
type Factory func(ctx context.Context) (Storage, error)

// Registry maps backend names to the factories that open them. Callers
// build their own instance; there is no package-level default.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register binds a factory to a backend name. Registering the same name
// twice is an error.
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("storage backend %s already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Open creates the named backend.
func (r *Registry) Open(ctx context.Context, name string) (Storage, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("storage backend %q not registered (available: %v)", name, r.Names())
	}

	s, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening %s storage: %w", name, err)
	}
	return s, nil
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
