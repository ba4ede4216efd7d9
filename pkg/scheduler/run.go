package scheduler

import (
	"fmt"
	"strconv"
	"time"

	"github.com/GregDritschler/tekton-tutorial/pkg/api"
	"github.com/GregDritschler/tekton-tutorial/pkg/graph"
	"github.com/GregDritschler/tekton-tutorial/pkg/metrics"
	"github.com/GregDritschler/tekton-tutorial/pkg/runtime"
	"github.com/GregDritschler/tekton-tutorial/pkg/store"
	"github.com/GregDritschler/tekton-tutorial/pkg/util/context"

	"github.com/pkg/errors"
)

// taskDone is the event reported by a task goroutine when its task
// reaches a terminal status.
type taskDone struct {
	name   string
	status api.Status
}

// execute drives one run to completion. Tasks are dispatched as soon as
// every predecessor succeeded; independent tasks run concurrently, bounded
// by MaxParallel.
func (sc *scheduler) execute(ctx context.Context, g *graph.ResolvedGraph, plans map[string]taskPlan, serviceAccount string) {
	runID := ctx.RunID()
	defer func() {
		sc.mu.Lock()
		delete(sc.cancels, runID)
		sc.mu.Unlock()
	}()

	if err := sc.store.SetRunStatus(ctx, runID, api.StatusRunning, store.TimeOption{StartTime: time.Now()}); err != nil {
		ctx.Logger().Error(errors.Wrapf(err, "cannot set run %s running", runID))
		return
	}

	indegree := g.Indegrees()
	finished := make(map[string]api.Status, g.Len())
	running := make(map[string]bool)
	done := make(chan taskDone)

	var sem chan struct{}
	if sc.conf.MaxParallel > 0 {
		sem = make(chan struct{}, sc.conf.MaxParallel)
	}

	dispatch := func(name string) {
		running[name] = true
		go sc.runTask(context.WithTaskName(ctx, name), plans[name], serviceAccount, sem, done)
	}

	for _, name := range g.Order() {
		if indegree[name] == 0 {
			dispatch(name)
		}
	}

	for len(finished) < g.Len() {
		td := <-done
		delete(running, td.name)
		finished[td.name] = td.status
		metrics.TasksFinished.WithLabelValues(string(td.status)).Inc()
		ctx.Logger().Infof("task %s finished with status %s", td.name, td.status)

		if ctx.Err() != nil {
			// Cancelled: tasks that never started are skipped; in-flight
			// tasks drain through the done channel.
			for _, name := range g.Order() {
				if _, over := finished[name]; over || running[name] {
					continue
				}
				sc.skip(ctx, name, "run cancelled")
				finished[name] = api.StatusSkipped
				metrics.TasksFinished.WithLabelValues(string(api.StatusSkipped)).Inc()
			}
			continue
		}

		switch td.status {
		case api.StatusSucceeded:
			for _, succ := range g.Successors(td.name) {
				indegree[succ]--
				if indegree[succ] == 0 {
					if _, over := finished[succ]; !over {
						dispatch(succ)
					}
				}
			}
		default:
			// A predecessor can never succeed anymore: everything
			// downstream is unreachable. Siblings keep running.
			sc.skipDownstream(ctx, g, td.name, fmt.Sprintf("upstream task %s %s", td.name, statusText(td.status)), finished)
		}
	}

	status := api.StatusSucceeded
	for _, s := range finished {
		if s != api.StatusSucceeded {
			status = api.StatusFailed
			break
		}
	}
	if ctx.Err() != nil {
		status = api.StatusCancelled
	}
	if err := sc.store.SetRunStatus(ctx, runID, status, store.TimeOption{EndTime: time.Now()}); err != nil {
		ctx.Logger().Error(errors.Wrapf(err, "cannot set final status of run %s", runID))
	}
	metrics.RunsFinished.WithLabelValues(string(status)).Inc()
	ctx.Logger().Infof("run %s finished with status %s", runID, status)
}

// skipDownstream marks every not-yet-started task reachable from the
// given one as SKIPPED, transitively. Already finished or running tasks
// are left alone.
func (sc *scheduler) skipDownstream(ctx context.Context, g *graph.ResolvedGraph, name, reason string, finished map[string]api.Status) {
	for _, succ := range g.Successors(name) {
		if _, over := finished[succ]; over {
			continue
		}
		sc.skip(ctx, succ, reason)
		finished[succ] = api.StatusSkipped
		metrics.TasksFinished.WithLabelValues(string(api.StatusSkipped)).Inc()
		sc.skipDownstream(ctx, g, succ, fmt.Sprintf("upstream task %s skipped", succ), finished)
	}
}

func (sc *scheduler) skip(ctx context.Context, name, reason string) {
	if err := sc.store.SetTaskStatus(ctx, ctx.RunID(), name, api.StatusSkipped, reason, store.TimeOption{EndTime: time.Now()}); err != nil {
		ctx.Logger().Error(errors.Wrapf(err, "cannot skip task %s", name))
	}
}

// runTask executes the steps of one task sequentially and reports the
// terminal status on the done channel.
func (sc *scheduler) runTask(ctx context.Context, plan taskPlan, serviceAccount string, sem chan struct{}, done chan<- taskDone) {
	runID := ctx.RunID()

	if sem != nil {
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
		case <-ctx.Done():
			sc.skip(ctx, plan.name, "run cancelled")
			done <- taskDone{name: plan.name, status: api.StatusSkipped}
			return
		}
	}

	setTask := func(status api.Status, message string, opt store.TimeOption) {
		if err := sc.store.SetTaskStatus(ctx, runID, plan.name, status, message, opt); err != nil {
			ctx.Logger().Error(errors.Wrapf(err, "cannot set status of task %s", plan.name))
		}
	}
	setStep := func(i int, status api.Status, message string, opt store.TimeOption) {
		if err := sc.store.SetStepStatus(ctx, runID, plan.name, i, status, message, opt); err != nil {
			ctx.Logger().Error(errors.Wrapf(err, "cannot set status of step %d of task %s", i, plan.name))
		}
	}

	setTask(api.StatusRunning, "", store.TimeOption{StartTime: time.Now()})

	for i, step := range plan.steps {
		if ctx.Err() != nil {
			skipSteps(setStep, plan, i, "run cancelled")
			setTask(api.StatusFailed, "run cancelled", store.TimeOption{EndTime: time.Now()})
			done <- taskDone{name: plan.name, status: api.StatusFailed}
			return
		}

		stepCtx := context.WithStepID(ctx, strconv.Itoa(i))
		setStep(i, api.StatusRunning, "", store.TimeOption{StartTime: time.Now()})
		metrics.StepsExecuted.Inc()

		log, err := sc.rt.RunStep(stepCtx, runtime.StepRequest{
			RunID:          runID,
			TaskName:       plan.name,
			Index:          i,
			Step:           step,
			ServiceAccount: serviceAccount,
		})
		if sc.archiver != nil && log != "" {
			if aerr := sc.archiver.Archive(stepCtx, runID, plan.name, i, log); aerr != nil {
				stepCtx.Logger().Error(errors.Wrapf(aerr, "cannot archive log of step %s", step.Name))
			}
		}
		if err != nil {
			metrics.StepsFailed.Inc()
			setStep(i, api.StatusFailed, err.Error(), store.TimeOption{EndTime: time.Now()})
			skipSteps(setStep, plan, i+1, fmt.Sprintf("step %s failed", step.Name))
			// The failure message reported by the runtime is passed
			// through without reinterpretation.
			setTask(api.StatusFailed, err.Error(), store.TimeOption{EndTime: time.Now()})
			done <- taskDone{name: plan.name, status: api.StatusFailed}
			return
		}
		setStep(i, api.StatusSucceeded, "", store.TimeOption{EndTime: time.Now()})
	}

	setTask(api.StatusSucceeded, "", store.TimeOption{EndTime: time.Now()})
	done <- taskDone{name: plan.name, status: api.StatusSucceeded}
}

func skipSteps(setStep func(int, api.Status, string, store.TimeOption), plan taskPlan, from int, reason string) {
	for i := from; i < len(plan.steps); i++ {
		setStep(i, api.StatusSkipped, reason, store.TimeOption{EndTime: time.Now()})
	}
}

func statusText(s api.Status) string {
	switch s {
	case api.StatusFailed:
		return "failed"
	case api.StatusSkipped:
		return "was skipped"
	default:
		return "did not succeed"
	}
}
