package llm

import (
	"fmt"

	"github.com/creatorplatform/gateway-core/pkg/mmodel"
)

// Registry dispatches to a Provider by the model catalog's provider family
// name, per spec.md §4.7.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds a Registry from a name-to-Provider map, keyed by the
// mmodel.Model.Provider value ("openai" | "anthropic" | "generic").
func NewRegistry(providers map[string]Provider) *Registry {
	return &Registry{providers: providers}
}

// For returns the Provider configured for model.Provider, or an error if no
// family of that name is registered.
func (r *Registry) For(model mmodel.Model) (Provider, error) {
	p, ok := r.providers[model.Provider]
	if !ok {
		return nil, fmt.Errorf("llm: no provider registered for family %q", model.Provider)
	}

	return p, nil
}
