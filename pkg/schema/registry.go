package schema

import (
	"sort"
	"sync"

	"github.com/ajitpratap0/layerconf/pkg/errors"
)

// Registry maps type names to node types so schema files can reference
// types declared in Go.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*NodeType
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*NodeType)}
}

// Register adds nt under its name
func (r *Registry) Register(nt *NodeType) error {
	if nt == nil || nt.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "node type name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[nt.Name]; exists {
		return errors.New(errors.ErrorTypeConfig, "node type already registered").WithDetail("type", nt.Name)
	}
	r.types[nt.Name] = nt
	return nil
}

// Lookup returns the type registered under name
func (r *Registry) Lookup(name string) (*NodeType, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	nt, ok := r.types[name]
	return nt, ok
}

// Names returns the registered names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
