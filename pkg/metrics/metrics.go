// Package metrics exposes the orchestrator's prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsCreated counts accepted run requests.
	RunsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tutorial_runs_created_total",
		Help: "Number of runs created.",
	})

	// RunsFinished counts finished runs by final status.
	RunsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutorial_runs_finished_total",
		Help: "Number of runs finished, by final status.",
	}, []string{"status"})

	// TasksFinished counts finished task runs by final status.
	TasksFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutorial_tasks_finished_total",
		Help: "Number of task runs finished, by final status.",
	}, []string{"status"})

	// StepsExecuted counts step executions handed to the runtime.
	StepsExecuted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tutorial_steps_executed_total",
		Help: "Number of steps handed to the runtime.",
	})

	// StepsFailed counts failed step executions.
	StepsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tutorial_steps_failed_total",
		Help: "Number of steps that failed.",
	})
)
