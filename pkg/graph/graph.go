// Package graph builds validated, immutable dependency graphs from
// pipeline specifications. A built ResolvedGraph is safe to share across
// concurrent runs and is instantiated repeatedly without re-validation.
package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/GregDritschler/tekton-tutorial/pkg/api"
	"github.com/GregDritschler/tekton-tutorial/pkg/catalog"
	"github.com/GregDritschler/tekton-tutorial/pkg/util/template"
	"github.com/pkg/errors"
)

// Node is one task instance of the resolved graph: the pipeline task
// usage plus the task spec it references.
type Node struct {
	Task api.PipelineTask
	Spec api.TaskSpec
}

// ResolvedGraph is an immutable, validated DAG of task instances with
// precomputed in-degrees. Accessors return copies so callers cannot
// corrupt shared state.
type ResolvedGraph struct {
	spec       api.PipelineSpec
	nodes      map[string]Node
	order      []string
	indegree   map[string]int
	successors map[string][]string
}

// Name returns the pipeline name.
func (g *ResolvedGraph) Name() string {
	return g.spec.Name
}

// Spec returns the pipeline specification the graph was built from.
func (g *ResolvedGraph) Spec() api.PipelineSpec {
	return g.spec
}

// Len returns the number of task instances.
func (g *ResolvedGraph) Len() int {
	return len(g.nodes)
}

// Node returns the task instance with the given name.
func (g *ResolvedGraph) Node(name string) (Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Order returns a topological order of the task instance names,
// consistent with every provenance and runAfter edge.
func (g *ResolvedGraph) Order() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Indegrees returns a fresh copy of the in-degree map, ready to be
// consumed by a scheduler walking the graph.
func (g *ResolvedGraph) Indegrees() map[string]int {
	out := make(map[string]int, len(g.indegree))
	for k, v := range g.indegree {
		out[k] = v
	}
	return out
}

// Successors returns the names of the task instances directly depending
// on the given one.
func (g *ResolvedGraph) Successors(name string) []string {
	succ := g.successors[name]
	out := make([]string, len(succ))
	copy(out, succ)
	return out
}

// Builder builds ResolvedGraphs, resolving task references against a
// catalog.
type Builder struct {
	catalog catalog.Catalog
}

// NewBuilder returns a new graph Builder.
func NewBuilder(c catalog.Catalog) *Builder {
	return &Builder{catalog: c}
}

// Build validates the given pipeline spec and returns its resolved graph.
// Validation performs, in order: task reference resolution, slot coverage
// (kind-checked), parameter coverage, dependency derivation from
// provenance and runAfter constraints, and the acyclicity check.
func (b *Builder) Build(ctx context.Context, spec api.PipelineSpec) (*ResolvedGraph, error) {
	if spec.Name == "" {
		return nil, errors.New("pipeline name is required")
	}
	if len(spec.Tasks) == 0 {
		return nil, errors.Errorf("pipeline %s declares no tasks", spec.Name)
	}

	g := &ResolvedGraph{
		spec:       spec,
		nodes:      make(map[string]Node, len(spec.Tasks)),
		indegree:   make(map[string]int, len(spec.Tasks)),
		successors: make(map[string][]string, len(spec.Tasks)),
	}

	// Resolve task references
	for _, t := range spec.Tasks {
		if t.Name == "" {
			return nil, errors.Errorf("pipeline %s contains a task without name", spec.Name)
		}
		if _, exists := g.nodes[t.Name]; exists {
			return nil, api.DuplicateNameError(fmt.Sprintf("task %s in pipeline %s", t.Name, spec.Name))
		}
		ts, err := b.catalog.Get(ctx, t.TaskRef)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot resolve taskRef of task %s", t.Name)
		}
		g.nodes[t.Name] = Node{Task: t, Spec: ts}
		g.indegree[t.Name] = 0
	}

	// Validate each node's wiring
	for _, n := range g.nodes {
		if err := checkSlotCoverage(spec, n); err != nil {
			return nil, err
		}
		if err := checkParamCoverage(spec, n); err != nil {
			return nil, err
		}
	}

	// Derive dependency edges
	for _, n := range g.nodes {
		preds, err := predecessors(g, n)
		if err != nil {
			return nil, err
		}
		for _, pred := range preds {
			g.successors[pred] = append(g.successors[pred], n.Task.Name)
			g.indegree[n.Task.Name]++
		}
	}
	for name := range g.successors {
		sort.Strings(g.successors[name])
	}

	// Cycle check: Kahn's algorithm. Ready nodes are processed in name
	// order so the resulting order is deterministic.
	order, err := g.sort()
	if err != nil {
		return nil, err
	}
	g.order = order

	return g, nil
}

// checkSlotCoverage verifies that every resource slot of the node's task
// spec is mapped to a pipeline resource slot of matching kind, and that no
// binding names an undeclared slot.
func checkSlotCoverage(spec api.PipelineSpec, n Node) error {
	slots := append(append([]api.ResourceSlot{}, n.Spec.Inputs...), n.Spec.Outputs...)
	for _, slot := range slots {
		binding, bound := n.Task.Binding(slot.Name)
		if !bound {
			return api.UnboundSlotError(fmt.Sprintf("task %s", n.Task.Name), slot.Name, "no binding in pipeline task")
		}
		ps, exists := spec.Slot(binding.Resource)
		if !exists {
			return api.UnboundSlotError(fmt.Sprintf("task %s", n.Task.Name), slot.Name,
				fmt.Sprintf("pipeline declares no resource slot %s", binding.Resource))
		}
		if ps.Kind != slot.Kind {
			return api.KindMismatchError(fmt.Sprintf("slot %s of task %s", slot.Name, n.Task.Name), slot.Kind, ps.Kind)
		}
	}
	for _, binding := range n.Task.Resources {
		if _, in := n.Spec.Input(binding.Slot); in {
			continue
		}
		if _, out := n.Spec.Output(binding.Slot); out {
			continue
		}
		return api.UndeclaredReferenceError(fmt.Sprintf("task %s", n.Task.Name), fmt.Sprintf("slot %s", binding.Slot))
	}
	return nil
}

// checkParamCoverage verifies that every required parameter of the node's
// task spec is given a value, that no binding names an undeclared
// parameter, and that markers inside binding values reference declared
// pipeline parameters.
func checkParamCoverage(spec api.PipelineSpec, n Node) error {
	given := make(map[string]bool, len(n.Task.Params))
	for _, pb := range n.Task.Params {
		if _, declared := n.Spec.Param(pb.Name); !declared {
			return api.UndeclaredReferenceError(fmt.Sprintf("task %s", n.Task.Name), fmt.Sprintf("parameter %s", pb.Name))
		}
		given[pb.Name] = true

		// Binding values may only reference pipeline parameters; the graph
		// builder proves them resolvable here, even though substitution
		// happens at dispatch.
		for _, ref := range template.Find(pb.Value) {
			scope, path, ok := template.SplitReference(ref)
			if !ok || scope != template.ScopePipelineParams {
				return api.UnresolvedReferenceError(ref)
			}
			if _, declared := spec.Param(path); !declared {
				return api.UnresolvedReferenceError(ref)
			}
		}
	}
	for _, p := range n.Spec.Params {
		if p.Default == nil && !given[p.Name] {
			return api.MissingParameterError(fmt.Sprintf("task %s", n.Task.Name), p.Name)
		}
	}
	return nil
}

// predecessors returns the names of the tasks the given node depends on.
// An edge exists if the node names a predecessor in runAfter, or if an
// input binding is marked with provenance (from) naming a task whose
// output feeds the same pipeline resource slot. A slot shared without
// provenance implies no ordering.
func predecessors(g *ResolvedGraph, n Node) ([]string, error) {
	seen := make(map[string]bool)
	var preds []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			preds = append(preds, name)
		}
	}

	for _, after := range n.Task.RunAfter {
		if _, exists := g.nodes[after]; !exists {
			return nil, api.NotFoundError(fmt.Sprintf("task %s named in runAfter of task %s", after, n.Task.Name))
		}
		add(after)
	}

	for _, binding := range n.Task.Resources {
		if len(binding.From) == 0 {
			continue
		}
		if _, isInput := n.Spec.Input(binding.Slot); !isInput {
			return nil, errors.Errorf("task %s declares provenance on non-input slot %s", n.Task.Name, binding.Slot)
		}
		for _, producer := range binding.From {
			pn, exists := g.nodes[producer]
			if !exists {
				return nil, api.NotFoundError(fmt.Sprintf("task %s named in from of task %s", producer, n.Task.Name))
			}
			if !produces(pn, binding.Resource) {
				return nil, api.UnboundSlotError(fmt.Sprintf("task %s", n.Task.Name), binding.Slot,
					fmt.Sprintf("task %s does not produce pipeline resource %s", producer, binding.Resource))
			}
			add(producer)
		}
	}
	sort.Strings(preds)
	return preds, nil
}

// produces returns true if the node maps one of its output slots to the
// given pipeline resource slot.
func produces(n Node, resource string) bool {
	for _, out := range n.Spec.Outputs {
		if b, bound := n.Task.Binding(out.Name); bound && b.Resource == resource {
			return true
		}
	}
	return false
}

// sort runs Kahn's algorithm over the graph. If not every node can be
// ordered, the remaining ones form at least one cycle and an
// api.ErrCyclicDependency naming them is returned.
func (g *ResolvedGraph) sort() ([]string, error) {
	indegree := make(map[string]int, len(g.indegree))
	for name, d := range g.indegree {
		indegree[name] = d
	}

	var queue []string
	for name, d := range indegree {
		if d == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	order := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		order = append(order, name)

		var ready []string
		for _, succ := range g.successors[name] {
			indegree[succ]--
			if indegree[succ] == 0 {
				ready = append(ready, succ)
			}
		}
		sort.Strings(ready)
		queue = append(queue, ready...)
	}

	if len(order) != len(g.nodes) {
		return nil, api.CyclicDependencyError(g.cycleMembers(indegree))
	}
	return order, nil
}

// cycleMembers names the tasks actually on a cycle. Nodes left with a
// positive in-degree after Kahn's algorithm include nodes merely
// downstream of a cycle; those are peeled off iteratively, since a node
// with no remaining successor cannot be part of one.
func (g *ResolvedGraph) cycleMembers(indegree map[string]int) []string {
	residual := make(map[string]bool)
	for name, d := range indegree {
		if d > 0 {
			residual[name] = true
		}
	}
	for changed := true; changed; {
		changed = false
		for name := range residual {
			blocked := false
			for _, succ := range g.successors[name] {
				if residual[succ] {
					blocked = true
					break
				}
			}
			if !blocked {
				delete(residual, name)
				changed = true
			}
		}
	}
	members := make([]string, 0, len(residual))
	for name := range residual {
		members = append(members, name)
	}
	sort.Strings(members)
	return members
}
