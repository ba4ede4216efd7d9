// Package catalog is the task definition store. Task specs are validated
// on registration so that an invalid step template can never surface at
// dispatch time.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/GregDritschler/tekton-tutorial/pkg/api"
	"github.com/GregDritschler/tekton-tutorial/pkg/util/template"
	"github.com/pkg/errors"
)

// Catalog stores reusable task specifications.
type Catalog interface {
	// Register adds a new task spec. It fails fast with
	// api.ErrUndeclaredReference if any step template reference does not
	// name a declared parameter, input slot or output slot.
	Register(ctx context.Context, spec api.TaskSpec) error

	// Get returns the task spec registered under the given name.
	Get(ctx context.Context, name string) (api.TaskSpec, error)

	// List returns all registered task specs.
	List(ctx context.Context) ([]api.TaskSpec, error)
}

// NewInMemory returns a new in-memory Catalog.
func NewInMemory() Catalog {
	return &inMemory{
		tasks: make(map[string]api.TaskSpec),
	}
}

type inMemory struct {
	mu    sync.RWMutex
	tasks map[string]api.TaskSpec
}

func (c *inMemory) Register(ctx context.Context, spec api.TaskSpec) error {
	if err := validate(spec); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.tasks[spec.Name]; exists {
		return api.DuplicateNameError(fmt.Sprintf("task %s", spec.Name))
	}
	c.tasks[spec.Name] = spec
	return nil
}

func (c *inMemory) Get(ctx context.Context, name string) (api.TaskSpec, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	spec, exists := c.tasks[name]
	if !exists {
		return api.TaskSpec{}, api.NotFoundError(fmt.Sprintf("task %s", name))
	}
	return spec, nil
}

func (c *inMemory) List(ctx context.Context) ([]api.TaskSpec, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	specs := make([]api.TaskSpec, 0, len(c.tasks))
	for _, spec := range c.tasks {
		specs = append(specs, spec)
	}
	return specs, nil
}

// validate checks the internal consistency of a task spec.
// Rules are:
// - Name is set and at least one step is declared
// - Slot, parameter and step names are unique within the task
// - Every step has an image
// - Every template reference in a step's command/args resolves to a
//   declared parameter, input resource slot or output resource slot
func validate(spec api.TaskSpec) error {
	if spec.Name == "" {
		return errors.New("task name is required")
	}
	if len(spec.Steps) == 0 {
		return errors.Errorf("task %s declares no steps", spec.Name)
	}

	slots := make(map[string]bool)
	for _, s := range append(append([]api.ResourceSlot{}, spec.Inputs...), spec.Outputs...) {
		if s.Name == "" || s.Kind == "" {
			return errors.Errorf("task %s declares a slot without name or kind", spec.Name)
		}
		if slots[s.Name] {
			return api.DuplicateNameError(fmt.Sprintf("slot %s in task %s", s.Name, spec.Name))
		}
		slots[s.Name] = true
	}

	params := make(map[string]bool)
	for _, p := range spec.Params {
		if params[p.Name] {
			return api.DuplicateNameError(fmt.Sprintf("parameter %s in task %s", p.Name, spec.Name))
		}
		params[p.Name] = true
	}

	stepNames := make(map[string]bool)
	for i, step := range spec.Steps {
		if step.Image == "" {
			return errors.Errorf("step %d of task %s has no image", i, spec.Name)
		}
		if step.Name != "" {
			if stepNames[step.Name] {
				return api.DuplicateNameError(fmt.Sprintf("step %s in task %s", step.Name, spec.Name))
			}
			stepNames[step.Name] = true
		}

		refs := template.Find(step.Command)
		for _, arg := range step.Args {
			refs = append(refs, template.Find(arg)...)
		}
		for _, ref := range refs {
			if err := checkReference(spec, ref); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkReference verifies that a template reference names a declared
// parameter or resource slot. Resource references address an attribute of
// the bound resource (e.g. inputs.resources.src.url); attribute values are
// proven resolvable at run creation, once concrete resources are known.
func checkReference(spec api.TaskSpec, ref string) error {
	scope, path, ok := template.SplitReference(ref)
	if !ok {
		return api.UndeclaredReferenceError(fmt.Sprintf("task %s", spec.Name), fmt.Sprintf("reference ${%s}", ref))
	}
	switch scope {
	case template.ScopeInputParams:
		if _, declared := spec.Param(path); declared {
			return nil
		}
	case template.ScopeInputResources:
		if _, declared := spec.Input(template.SlotOf(path)); declared {
			return nil
		}
	case template.ScopeOutputResources:
		if _, declared := spec.Output(template.SlotOf(path)); declared {
			return nil
		}
	}
	return api.UndeclaredReferenceError(fmt.Sprintf("task %s", spec.Name), fmt.Sprintf("reference ${%s}", ref))
}
