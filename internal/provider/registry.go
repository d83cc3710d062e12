package provider

import (
	"context"
	"sort"
	"sync"

	"github.com/loqalabs/loqa-coordinator/internal/errors"
)

// Registry manages registered providers and resolves them by name or by
// advertised capability.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	order     []string
}

// NewRegistry creates an empty provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, exists := r.providers[name]; exists {
		return errors.New(errors.ErrCodeProviderDuplicate, "provider already registered: "+name)
	}

	r.providers[name] = p
	r.order = append(r.order, name)
	return nil
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.providers[name]
	if !exists {
		return nil, errors.New(errors.ErrCodeProviderNotFound, "provider not found: "+name)
	}
	return p, nil
}

// List returns all registered provider names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Remove removes a provider from the registry
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; !exists {
		return errors.New(errors.ErrCodeProviderNotFound, "provider not found: "+name)
	}

	delete(r.providers, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Select returns the first registered provider advertising capability, in
// registration order. Lookup is by declared capability flags.
func (r *Registry) Select(capability Capability) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		p := r.providers[name]
		if p.Capabilities().Has(capability) {
			return p, nil
		}
	}
	return nil, errors.NewProviderCapabilityError("any", string(capability))
}

// ExecuteWith resolves a provider for capability and runs op through it,
// rejecting the call up front when the named provider lacks the capability.
func (r *Registry) ExecuteWith(ctx context.Context, name string, capability Capability, op string, params map[string]any) (any, error) {
	p, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	if !p.Capabilities().Has(capability) {
		return nil, errors.NewProviderCapabilityError(name, string(capability))
	}
	return p.Execute(ctx, op, params)
}

// Health collects the health of every registered provider, keyed by name.
func (r *Registry) Health(ctx context.Context) map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]error, len(r.providers))
	for name, p := range r.providers {
		out[name] = p.Health(ctx)
	}
	return out
}
