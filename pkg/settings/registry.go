package settings

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/layerconf/pkg/errors"
	"github.com/ajitpratap0/layerconf/pkg/inherit"
	"github.com/ajitpratap0/layerconf/pkg/logger"
	"github.com/ajitpratap0/layerconf/pkg/source"
)

// SourceFunc reads one source for the node described by req and returns
// field-name-keyed data.
type SourceFunc func(ctx context.Context, req *Request) (map[string]interface{}, error)

// Handler collects a node's sources. The built-in "default" handler reads
// every source in ordered_settings and applies the MODE pass.
type Handler func(ctx context.Context, req *Request) (*Collected, error)

// Registry manages source and handler registration. It implements
// inherit.Registry so effective configurations are checked against it.
type Registry struct {
	sources  map[string]SourceFunc
	handlers map[string]Handler
	mu       sync.RWMutex
	logger   *zap.Logger
}

var _ inherit.Registry = (*Registry)(nil)

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates a registry holding the built-in sources and handler.
func NewRegistry() *Registry {
	r := &Registry{
		sources:  make(map[string]SourceFunc),
		handlers: make(map[string]Handler),
		logger:   logger.Get().With(zap.String("component", "settings_registry")),
	}
	r.sources[inherit.SourceCLI] = readCLI
	r.sources[inherit.SourceInitKwargs] = readInitKwargs
	r.sources[inherit.SourceEnv] = readEnv
	r.sources[inherit.SourceEnvFile] = readEnvFiles
	r.sources[inherit.SourceSecrets] = readSecrets
	r.sources[inherit.SourceConfFile] = readConfFiles
	r.handlers[inherit.DefaultHandler] = DefaultHandler
	return r
}

// RegisterSource registers a source under name
func (r *Registry) RegisterSource(name string, fn SourceFunc) error {
	if name == "" || fn == nil {
		return errors.New(errors.ErrorTypeConfig, "source name and function are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "source %s already registered", name)
	}
	r.sources[name] = fn
	r.logger.Debug("source registered", zap.String("name", name))
	return nil
}

// RegisterHandler registers a handler under name
func (r *Registry) RegisterHandler(name string, h Handler) error {
	if name == "" || h == nil {
		return errors.New(errors.ErrorTypeConfig, "handler name and function are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "handler %s already registered", name)
	}
	r.handlers[name] = h
	r.logger.Debug("handler registered", zap.String("name", name))
	return nil
}

// Source returns the source registered under name
func (r *Registry) Source(name string) (SourceFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.sources[name]
	return fn, ok
}

// Handler returns the handler registered under name
func (r *Registry) Handler(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// HasSource reports whether name is a registered source
func (r *Registry) HasSource(name string) bool {
	_, ok := r.Source(name)
	return ok
}

// HasHandler reports whether name is a registered handler
func (r *Registry) HasHandler(name string) bool {
	_, ok := r.Handler(name)
	return ok
}

// HasFormat reports whether name is a registered file format.
func (r *Registry) HasFormat(name string) bool {
	return source.HasFormat(name)
}

// Sources lists the registered source names, sorted
func (r *Registry) Sources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterSource registers a source with the global registry
func RegisterSource(name string, fn SourceFunc) error {
	return globalRegistry.RegisterSource(name, fn)
}

// RegisterHandler registers a handler with the global registry
func RegisterHandler(name string, h Handler) error {
	return globalRegistry.RegisterHandler(name, h)
}

// GlobalRegistry returns the registry resolvers use unless given another
func GlobalRegistry() *Registry {
	return globalRegistry
}
