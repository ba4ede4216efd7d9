// Package scheduler accepts run requests against resolved pipeline graphs
// and drives their execution: binding validation, template resolution,
// dependency gating and failure propagation.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/GregDritschler/tekton-tutorial/pkg/api"
	"github.com/GregDritschler/tekton-tutorial/pkg/graph"
	"github.com/GregDritschler/tekton-tutorial/pkg/logs"
	"github.com/GregDritschler/tekton-tutorial/pkg/metrics"
	"github.com/GregDritschler/tekton-tutorial/pkg/registry"
	"github.com/GregDritschler/tekton-tutorial/pkg/runtime"
	"github.com/GregDritschler/tekton-tutorial/pkg/store"
	"github.com/GregDritschler/tekton-tutorial/pkg/util/context"
	"github.com/GregDritschler/tekton-tutorial/pkg/util/template"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Config configures the scheduler.
type Config struct {
	// MaxParallel bounds the number of task runs executing concurrently
	// within one run. Zero means unbounded.
	MaxParallel int `json:"max_parallel" env:"SCHEDULER_MAX_PARALLEL"`
}

// Scheduler creates and drives runs.
type Scheduler interface {
	// CreateRun validates the request against the graph, proves every step
	// template resolvable, persists the initial state and starts executing
	// asynchronously. The returned run identifier is assigned exactly once
	// and never reused.
	CreateRun(ctx context.Context, g *graph.ResolvedGraph, req api.RunRequest) (string, error)

	// Cancel stops a running run. Tasks not started yet are marked
	// SKIPPED and the run ends CANCELLED.
	Cancel(ctx context.Context, runID string) error
}

// New returns a new Scheduler.
func New(rt runtime.Runtime, reg registry.Registry, s store.Store, archiver logs.Archiver, conf Config) Scheduler {
	return &scheduler{
		rt:       rt,
		registry: reg,
		store:    s,
		archiver: archiver,
		conf:     conf,
		cancels:  make(map[string]func()),
	}
}

type scheduler struct {
	rt       runtime.Runtime
	registry registry.Registry
	store    store.Store
	archiver logs.Archiver
	conf     Config

	mu      sync.Mutex
	cancels map[string]func()
}

// taskPlan is one task instance ready to execute: its resolved steps and
// the environment handed to the runtime.
type taskPlan struct {
	name  string
	steps []api.Step
}

func (sc *scheduler) CreateRun(ctx context.Context, g *graph.ResolvedGraph, req api.RunRequest) (string, error) {
	spec := g.Spec()

	pipelineParams, err := sc.pipelineParams(spec, req)
	if err != nil {
		return "", err
	}
	if err := sc.checkResources(ctx, spec, req); err != nil {
		return "", err
	}

	// Resolve every step of every task before accepting anything: an
	// unresolvable reference must reject the request, never surface
	// mid-execution.
	plans := make(map[string]taskPlan, g.Len())
	for _, name := range g.Order() {
		node, _ := g.Node(name)
		bindingCtx, err := sc.bindingContext(ctx, spec, node, req, pipelineParams)
		if err != nil {
			return "", err
		}
		plan := taskPlan{name: name}
		for i, step := range node.Spec.Steps {
			resolved := step
			resolved.Command, err = template.Resolve(step.Command, bindingCtx)
			if err != nil {
				return "", errors.Wrapf(err, "cannot resolve step %d of task %s", i, name)
			}
			resolved.Args, err = template.ResolveAll(step.Args, bindingCtx)
			if err != nil {
				return "", errors.Wrapf(err, "cannot resolve step %d of task %s", i, name)
			}
			if resolved.Name == "" {
				resolved.Name = fmt.Sprintf("step-%d", i)
			}
			plan.steps = append(plan.steps, resolved)
		}
		plans[name] = plan
	}

	// Run identity is assigned exactly once, before execution starts.
	runID := uuid.New().String()
	ctx = context.WithRunID(ctx, runID)

	inits := make([]store.TaskInit, 0, g.Len())
	for _, name := range g.Order() {
		init := store.TaskInit{Name: name}
		for _, s := range plans[name].steps {
			init.Steps = append(init.Steps, s.Name)
		}
		inits = append(inits, init)
	}
	if err := sc.store.CreateRun(ctx, runID, spec.Name, inits, store.TimeOption{CreateTime: time.Now()}); err != nil {
		return "", errors.Wrapf(err, "cannot create run for pipeline %s", spec.Name)
	}
	metrics.RunsCreated.Inc()

	runCtx, cancel := context.WithCancel(context.WithRunID(context.Background(), runID))
	sc.mu.Lock()
	sc.cancels[runID] = cancel
	sc.mu.Unlock()

	go sc.execute(runCtx, g, plans, req.ServiceAccount)

	ctx.Logger().Infof("created run %s for pipeline %s", runID, spec.Name)
	return runID, nil
}

func (sc *scheduler) Cancel(ctx context.Context, runID string) error {
	sc.mu.Lock()
	cancel, exists := sc.cancels[runID]
	sc.mu.Unlock()
	if !exists {
		return api.NotFoundError(fmt.Sprintf("running run %s", runID))
	}
	ctx.Logger().Infof("cancelling run %s", runID)
	cancel()
	return nil
}

// pipelineParams computes the effective pipeline parameter values:
// defaults overridden by the request. Every parameter without a default
// must be covered; unknown names are rejected.
func (sc *scheduler) pipelineParams(spec api.PipelineSpec, req api.RunRequest) (template.Context, error) {
	values := make(template.Context, len(spec.Params))
	for _, p := range spec.Params {
		if p.Default != nil {
			values[template.ScopePipelineParams+"."+p.Name] = *p.Default
		}
	}
	for name, value := range req.Params {
		if _, declared := spec.Param(name); !declared {
			return nil, api.UndeclaredReferenceError(fmt.Sprintf("pipeline %s", spec.Name), fmt.Sprintf("parameter %s", name))
		}
		values[template.ScopePipelineParams+"."+name] = value
	}
	for _, p := range spec.Params {
		if _, ok := values[template.ScopePipelineParams+"."+p.Name]; !ok {
			return nil, api.MissingParameterError(fmt.Sprintf("pipeline %s", spec.Name), p.Name)
		}
	}
	return values, nil
}

// checkResources verifies that the request binds every pipeline resource
// slot to a registered resource of matching kind.
func (sc *scheduler) checkResources(ctx context.Context, spec api.PipelineSpec, req api.RunRequest) error {
	for _, slot := range spec.Resources {
		resName, bound := req.Resources[slot.Name]
		if !bound {
			return api.UnboundSlotError(fmt.Sprintf("pipeline %s", spec.Name), slot.Name, "no resource in run request")
		}
		def, err := sc.registry.Resolve(ctx, resName)
		if err != nil {
			return errors.Wrapf(err, "cannot resolve resource for slot %s", slot.Name)
		}
		if def.Kind != slot.Kind {
			return api.KindMismatchError(fmt.Sprintf("slot %s of pipeline %s", slot.Name, spec.Name), slot.Kind, def.Kind)
		}
	}
	for name := range req.Resources {
		if _, declared := spec.Slot(name); !declared {
			return api.UndeclaredReferenceError(fmt.Sprintf("pipeline %s", spec.Name), fmt.Sprintf("resource slot %s", name))
		}
	}
	return nil
}

// bindingContext builds the template context of one task instance:
// parameter values (bound, with pipeline parameters substituted, or
// defaulted) and the attributes of the resources bound to its slots.
func (sc *scheduler) bindingContext(ctx context.Context, spec api.PipelineSpec, node graph.Node, req api.RunRequest, pipelineParams template.Context) (template.Context, error) {
	bctx := make(template.Context)

	for _, p := range node.Spec.Params {
		value := ""
		bound := false
		for _, pb := range node.Task.Params {
			if pb.Name == p.Name {
				resolved, err := template.Resolve(pb.Value, pipelineParams)
				if err != nil {
					return nil, errors.Wrapf(err, "cannot resolve parameter %s of task %s", p.Name, node.Task.Name)
				}
				value, bound = resolved, true
				break
			}
		}
		if !bound {
			if p.Default == nil {
				return nil, api.MissingParameterError(fmt.Sprintf("task %s", node.Task.Name), p.Name)
			}
			value = *p.Default
		}
		bctx[template.ScopeInputParams+"."+p.Name] = value
	}

	addSlot := func(scope string, slot api.ResourceSlot) error {
		binding, _ := node.Task.Binding(slot.Name)
		def, err := sc.registry.Resolve(ctx, req.Resources[binding.Resource])
		if err != nil {
			return errors.Wrapf(err, "cannot resolve resource for slot %s of task %s", slot.Name, node.Task.Name)
		}
		bctx[scope+"."+slot.Name+".name"] = def.Name
		for k, v := range def.Params {
			bctx[scope+"."+slot.Name+"."+k] = v
		}
		return nil
	}
	for _, slot := range node.Spec.Inputs {
		if err := addSlot(template.ScopeInputResources, slot); err != nil {
			return nil, err
		}
	}
	for _, slot := range node.Spec.Outputs {
		if err := addSlot(template.ScopeOutputResources, slot); err != nil {
			return nil, err
		}
	}
	return bctx, nil
}
