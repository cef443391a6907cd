package bridge

import (
	"fmt"
	"strings"
	"sync"

	"github.com/webextkit/bridge/internal/types"
)

// Registry routes dotted method ids (runtime.sendMessage, storage.set,
// alarms.create) to the provider owning the service prefix.
type Registry struct {
	services sync.Map
}

// Provider interface for service implementations
type Provider interface {
	Definition() types.Service
	Execute(methodID string, params map[string]interface{}, ctx *types.CallContext) (*types.Result, error)
}

// NewRegistry creates a new method registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a service provider
func (r *Registry) Register(provider Provider) error {
	def := provider.Definition()
	if def.ID == "" {
		return fmt.Errorf("service ID cannot be empty")
	}

	r.services.Store(def.ID, provider)
	return nil
}

// Get retrieves a service by ID
func (r *Registry) Get(serviceID string) (Provider, bool) {
	val, ok := r.services.Load(serviceID)
	if !ok {
		return nil, false
	}
	return val.(Provider), true
}

// List returns all registered services
func (r *Registry) List() []types.Service {
	var services []types.Service
	r.services.Range(func(_, value interface{}) bool {
		services = append(services, value.(Provider).Definition())
		return true
	})
	return services
}

// Execute runs a method call from a script context. A malformed or
// unrecognized method id is the context's bug, not the broker's: it
// settles with ErrUnknownMethod.
func (r *Registry) Execute(methodID string, params map[string]interface{}, ctx *types.CallContext) (*types.Result, error) {
	parts := strings.SplitN(methodID, ".", 2)
	if len(parts) < 2 {
		return errorResult(fmt.Sprintf("malformed method id: %s", methodID)),
			fmt.Errorf("%w: %s", types.ErrUnknownMethod, methodID)
	}

	provider, ok := r.Get(parts[0])
	if !ok {
		return errorResult(fmt.Sprintf("unknown service: %s", parts[0])),
			fmt.Errorf("%w: %s", types.ErrUnknownMethod, methodID)
	}

	return provider.Execute(methodID, params, ctx)
}

// Stats returns registry statistics
func (r *Registry) Stats() map[string]interface{} {
	var total, totalMethods int
	r.services.Range(func(_, value interface{}) bool {
		def := value.(Provider).Definition()
		total++
		totalMethods += len(def.Methods)
		return true
	})

	return map[string]interface{}{
		"total_services": total,
		"total_methods":  totalMethods,
	}
}

func errorResult(message string) *types.Result {
	return &types.Result{Success: false, Error: &message}
}
