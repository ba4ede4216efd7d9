// Package store persists run state: one record per run, per task run and
// per step, updated as the scheduler walks the graph.
package store

import (
	"context"
	"time"

	"github.com/GregDritschler/tekton-tutorial/pkg/api"
)

// TimeOption is used when setting time is necessary.
type TimeOption struct {
	CreateTime time.Time
	StartTime  time.Time
	EndTime    time.Time
}

// TaskInit describes one task run to create with a run: its instance name
// and its step names, in execution order.
type TaskInit struct {
	Name  string
	Steps []string
}

// Store defines access to the store backend.
type Store interface {
	SchedulerStore
	ReadOnlyStore
}

// SchedulerStore defines the write access used by the scheduler.
type SchedulerStore interface {
	// CreateRun creates a run in PENDING status with its task runs in
	// QUEUED status and their steps in PENDING status.
	CreateRun(ctx context.Context, runID, pipeline string, tasks []TaskInit, opt TimeOption) error

	// SetRunStatus sets the run status with time option.
	SetRunStatus(ctx context.Context, runID string, status api.Status, opt TimeOption) error

	// SetTaskStatus sets the given task run's status. The message carries
	// failure or skip details and may be empty.
	SetTaskStatus(ctx context.Context, runID, task string, status api.Status, message string, opt TimeOption) error

	// SetStepStatus sets the status of the step at the given index of the
	// task run.
	SetStepStatus(ctx context.Context, runID, task string, step int, status api.Status, message string, opt TimeOption) error
}

// ReadOnlyStore defines the read access used by the controller.
// Implementations must support reads concurrent with scheduler writes.
type ReadOnlyStore interface {
	// ListRuns lists every run, most recent first.
	ListRuns(ctx context.Context) ([]api.RunInfo, error)

	// GetRunState returns the full state of a run, task runs included.
	GetRunState(ctx context.Context, runID string) (api.RunState, error)

	// GetTaskState returns the state of one task run, steps included.
	GetTaskState(ctx context.Context, runID, task string) (api.TaskRunState, error)
}
