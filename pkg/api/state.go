package api

import (
	"time"
)

// RunInfo represents basic run information.
type RunInfo struct {
	ID       string `json:"id"`
	Pipeline string `json:"pipeline"`
	Status   Status `json:"status"`
}

// RunState is a point-in-time snapshot of a run.
type RunState struct {
	ID         string         `json:"id"`
	Pipeline   string         `json:"pipeline"`
	Status     Status         `json:"status"`
	Tasks      []TaskRunState `json:"tasks,omitempty"`
	CreateTime *time.Time     `json:"createTime,omitempty"`
	StartTime  *time.Time     `json:"startTime,omitempty"`
	EndTime    *time.Time     `json:"endTime,omitempty"`
}

// TaskRunState is a point-in-time snapshot of one task run.
// Message carries the failure text reported by the step runtime,
// passed through without reinterpretation.
type TaskRunState struct {
	Name      string      `json:"name"`
	Status    Status      `json:"status"`
	Message   string      `json:"message,omitempty"`
	Steps     []StepState `json:"steps,omitempty"`
	StartTime *time.Time  `json:"startTime,omitempty"`
	EndTime   *time.Time  `json:"endTime,omitempty"`
}

// StepState is a point-in-time snapshot of one step execution.
type StepState struct {
	Name      string     `json:"name"`
	Status    Status     `json:"status"`
	Message   string     `json:"message,omitempty"`
	StartTime *time.Time `json:"startTime,omitempty"`
	EndTime   *time.Time `json:"endTime,omitempty"`
}
