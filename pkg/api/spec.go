package api

// ResourceKind is the type of an external resource.
type ResourceKind string

const (
	// ResourceGit is a git source resource.
	ResourceGit ResourceKind = "git"

	// ResourceImage is a container image resource.
	ResourceImage ResourceKind = "image"

	// ResourceStorage is a blob/volume storage resource.
	ResourceStorage ResourceKind = "storage"

	// ResourceCluster is a target cluster resource.
	ResourceCluster ResourceKind = "cluster"
)

// ResourceDefinition is a named, typed external resource.
// Definitions are immutable once registered and are always referenced by
// name, never embedded by value.
type ResourceDefinition struct {
	Name   string            `json:"name" yaml:"name"`
	Kind   ResourceKind      `json:"kind" yaml:"kind"`
	Params map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
}

// ResourceSlot is a typed, named placeholder for a resource on a task or
// pipeline. It must be bound to a concrete resource before execution.
type ResourceSlot struct {
	Name string       `json:"name" yaml:"name"`
	Kind ResourceKind `json:"kind" yaml:"kind"`
}

// ParamSpec declares a parameter with an optional default value.
// A parameter without a default must be given a value before execution.
type ParamSpec struct {
	Name    string  `json:"name" yaml:"name"`
	Default *string `json:"default,omitempty" yaml:"default,omitempty"`
}

// Step is one execution unit within a task: a single image/command/args
// triple. Command and Args may contain template markers.
type Step struct {
	Name    string   `json:"name" yaml:"name"`
	Image   string   `json:"image" yaml:"image"`
	Command string   `json:"command" yaml:"command"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`
}

// TaskSpec is a reusable unit of work: typed input/output resource slots,
// parameters with optional defaults and an ordered list of steps.
// A TaskSpec owns none of the resources it references.
type TaskSpec struct {
	Name    string         `json:"name" yaml:"name"`
	Inputs  []ResourceSlot `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs []ResourceSlot `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Params  []ParamSpec    `json:"params,omitempty" yaml:"params,omitempty"`
	Steps   []Step         `json:"steps" yaml:"steps"`
}

// Input returns the input slot with the given name.
func (t TaskSpec) Input(name string) (ResourceSlot, bool) {
	return findSlot(t.Inputs, name)
}

// Output returns the output slot with the given name.
func (t TaskSpec) Output(name string) (ResourceSlot, bool) {
	return findSlot(t.Outputs, name)
}

// Param returns the parameter spec with the given name.
func (t TaskSpec) Param(name string) (ParamSpec, bool) {
	for _, p := range t.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// ResourceBinding maps a task resource slot to a pipeline resource slot.
// From lists the pipeline tasks whose output produces the bound resource;
// naming a producer makes the binding a provenance edge and therefore an
// ordering constraint. A shared slot without From implies no ordering.
type ResourceBinding struct {
	Slot     string   `json:"slot" yaml:"slot"`
	Resource string   `json:"resource" yaml:"resource"`
	From     []string `json:"from,omitempty" yaml:"from,omitempty"`
}

// ParamBinding gives a task parameter a literal value. The value may
// reference pipeline parameters with ${params.<name>} markers.
type ParamBinding struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// PipelineTask is one usage of a TaskSpec inside a pipeline.
type PipelineTask struct {
	Name      string            `json:"name" yaml:"name"`
	TaskRef   string            `json:"taskRef" yaml:"taskRef"`
	Resources []ResourceBinding `json:"resources,omitempty" yaml:"resources,omitempty"`
	Params    []ParamBinding    `json:"params,omitempty" yaml:"params,omitempty"`
	RunAfter  []string          `json:"runAfter,omitempty" yaml:"runAfter,omitempty"`
}

// Binding returns the resource binding for the given task slot.
func (t PipelineTask) Binding(slot string) (ResourceBinding, bool) {
	for _, b := range t.Resources {
		if b.Slot == slot {
			return b, true
		}
	}
	return ResourceBinding{}, false
}

// PipelineSpec is the specification of a pipeline: its own unbound
// resource slots and parameters, and the set of task usages wired to them.
// Task order in the document is irrelevant; ordering is derived from
// provenance and runAfter constraints.
type PipelineSpec struct {
	Name      string         `json:"name" yaml:"name"`
	Resources []ResourceSlot `json:"resources,omitempty" yaml:"resources,omitempty"`
	Params    []ParamSpec    `json:"params,omitempty" yaml:"params,omitempty"`
	Tasks     []PipelineTask `json:"tasks" yaml:"tasks"`
}

// Slot returns the pipeline resource slot with the given name.
func (p PipelineSpec) Slot(name string) (ResourceSlot, bool) {
	return findSlot(p.Resources, name)
}

// Param returns the pipeline parameter spec with the given name.
func (p PipelineSpec) Param(name string) (ParamSpec, bool) {
	for _, ps := range p.Params {
		if ps.Name == name {
			return ps, true
		}
	}
	return ParamSpec{}, false
}

// Task returns the pipeline task with the given instance name.
func (p PipelineSpec) Task(name string) (PipelineTask, bool) {
	for _, t := range p.Tasks {
		if t.Name == name {
			return t, true
		}
	}
	return PipelineTask{}, false
}

// RunRequest asks for one execution of a pipeline. Resources maps the
// pipeline's resource slots to registered resource names and must cover
// every slot. Params must cover every pipeline parameter without a
// default. ServiceAccount is the execution-identity token, opaque to the
// orchestrator and handed to the step runtime as-is.
type RunRequest struct {
	Pipeline       string            `json:"pipeline" yaml:"pipeline"`
	Resources      map[string]string `json:"resources,omitempty" yaml:"resources,omitempty"`
	Params         map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
	ServiceAccount string            `json:"serviceAccount,omitempty" yaml:"serviceAccount,omitempty"`
}

func findSlot(slots []ResourceSlot, name string) (ResourceSlot, bool) {
	for _, s := range slots {
		if s.Name == name {
			return s, true
		}
	}
	return ResourceSlot{}, false
}
