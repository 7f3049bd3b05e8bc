package calculator

import (
	"sync"

	"ruleengine/internal/value"
)

// Plugin is a named, pure calculation invoked by the CallCalculator action.
// Unlike expression built-ins (evaluated inline inside a formula string),
// plugins are registered ahead of time and invoked by name with a resolved
// input map, mirroring the spec's native-plus-WASM calculator split.
type Plugin interface {
	Name() string
	Call(inputs map[string]value.Value) (value.Value, error)
}

// Registry holds the set of plugins available to CallCalculator actions.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// NewDefaultRegistry returns a Registry preloaded with the built-in
// calculators required by the spec.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, p := range defaultBuiltinPlugins() {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a plugin under its own Name().
func (r *Registry) Register(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[p.Name()] = p
}

// Unregister removes a plugin by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.plugins, name)
}

// Call resolves name and invokes it with inputs.
func (r *Registry) Call(name string, inputs map[string]value.Value) (value.Value, error) {
	r.mu.RLock()
	p, ok := r.plugins[name]
	r.mu.RUnlock()
	if !ok {
		return value.Null, undefinedErr("calculator: unknown calculator plugin %q", name)
	}
	return p.Call(inputs)
}

// Names returns the registered plugin names, for diagnostics.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		out = append(out, name)
	}
	return out
}

func requireField(inputs map[string]value.Value, field string) (value.Value, error) {
	v, ok := inputs[field]
	if !ok {
		return value.Null, undefinedErr("calculator: missing required input %q", field)
	}
	return v, nil
}

func requireNumber(inputs map[string]value.Value, field string) (float64, error) {
	v, err := requireField(inputs, field)
	if err != nil {
		return 0, err
	}
	n, ok := v.AsNumber()
	if !ok {
		return 0, typeErr("calculator: input %q must be numeric, got %s", field, v.TypeName())
	}
	return n, nil
}
