package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/GregDritschler/tekton-tutorial/pkg/api"
	"github.com/pkg/errors"
)

// Registry stores named, typed external resource definitions.
// Definitions are content-immutable: once registered they can only be
// resolved by name, never updated.
type Registry interface {
	// Register adds a new resource definition.
	Register(ctx context.Context, def api.ResourceDefinition) error

	// Resolve returns the definition registered under the given name.
	Resolve(ctx context.Context, name string) (api.ResourceDefinition, error)

	// List returns all registered definitions.
	List(ctx context.Context) ([]api.ResourceDefinition, error)
}

// NewInMemory returns a new in-memory Registry.
func NewInMemory() Registry {
	return &inMemory{
		resources: make(map[string]api.ResourceDefinition),
	}
}

type inMemory struct {
	mu        sync.RWMutex
	resources map[string]api.ResourceDefinition
}

func (r *inMemory) Register(ctx context.Context, def api.ResourceDefinition) error {
	if def.Name == "" {
		return errors.New("resource name is required")
	}
	if def.Kind == "" {
		return errors.Errorf("resource %s has no kind", def.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.resources[def.Name]; exists {
		return api.DuplicateNameError(fmt.Sprintf("resource %s", def.Name))
	}
	// Copy params so the caller cannot mutate the stored definition.
	params := make(map[string]string, len(def.Params))
	for k, v := range def.Params {
		params[k] = v
	}
	def.Params = params
	r.resources[def.Name] = def
	return nil
}

func (r *inMemory) Resolve(ctx context.Context, name string) (api.ResourceDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, exists := r.resources[name]
	if !exists {
		return api.ResourceDefinition{}, api.NotFoundError(fmt.Sprintf("resource %s", name))
	}
	return def, nil
}

func (r *inMemory) List(ctx context.Context) ([]api.ResourceDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]api.ResourceDefinition, 0, len(r.resources))
	for _, def := range r.resources {
		defs = append(defs, def)
	}
	return defs, nil
}
