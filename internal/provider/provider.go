package provider

import (
	"context"
)

// Capability names one operation class a provider can perform.
type Capability string

const (
	CapabilityCreate Capability = "create"
	CapabilityUpdate Capability = "update"
	CapabilityDelete Capability = "delete"
	CapabilityList   Capability = "list"
)

// Capabilities is the advertised capability set of one provider.
// Selection goes through explicit capability lookup, never through
// runtime type inspection.
type Capabilities struct {
	Create bool `json:"create"`
	Update bool `json:"update"`
	Delete bool `json:"delete"`
	List   bool `json:"list"`
}

// Has reports whether the set includes capability.
func (c Capabilities) Has(capability Capability) bool {
	switch capability {
	case CapabilityCreate:
		return c.Create
	case CapabilityUpdate:
		return c.Update
	case CapabilityDelete:
		return c.Delete
	case CapabilityList:
		return c.List
	default:
		return false
	}
}

// Provider is one issue-tracker / VCS host integration. The coordinator
// owns no transport; every remote call goes through a provider's Execute.
type Provider interface {
	// Name identifies the provider
	Name() string

	// Capabilities returns the advertised capability set
	Capabilities() Capabilities

	// Execute performs one named remote operation
	Execute(ctx context.Context, op string, params map[string]any) (any, error)

	// Health reports nil when the provider is reachable and ready
	Health(ctx context.Context) error
}

// FuncProvider adapts a plain executor callback into a Provider. The
// integration supplies the callback; capabilities are declared up front.
type FuncProvider struct {
	name string
	caps Capabilities
	exec func(ctx context.Context, op string, params map[string]any) (any, error)
}

// NewFuncProvider creates a callback-backed provider.
func NewFuncProvider(name string, caps Capabilities, exec func(ctx context.Context, op string, params map[string]any) (any, error)) *FuncProvider {
	return &FuncProvider{name: name, caps: caps, exec: exec}
}

func (p *FuncProvider) Name() string               { return p.name }
func (p *FuncProvider) Capabilities() Capabilities { return p.caps }

func (p *FuncProvider) Execute(ctx context.Context, op string, params map[string]any) (any, error) {
	return p.exec(ctx, op, params)
}

func (p *FuncProvider) Health(ctx context.Context) error { return nil }
