package events

import (
	"fmt"
	"time"
)

// EventType type of event
type EventType string

const (
	// TypeSubmit asks a worker to execute a step.
	TypeSubmit EventType = "SUBMIT"
	// TypeRun signals that a worker started executing a step.
	TypeRun EventType = "RUN"
	// TypeSuccess signals that a step finished successfully.
	TypeSuccess EventType = "SUCCESS"
	// TypeError signals that a step failed.
	TypeError EventType = "ERROR"
)

// Event represents a message to publish/receive.
type Event struct {
	Type          EventType
	RunID         string
	TaskName      string
	StepID        string
	CorrelationID string
	ExecutionID   string
	Data          interface{}
	Time          time.Time
}

func (e Event) String() string {
	return fmt.Sprintf("%s for step %s of task %s", e.Type, e.StepID, e.TaskName)
}

// ErrorEventData is the expected data type for event with type TypeError
type ErrorEventData struct {
	Message string `json:"message"`
}

// RunEventData is the expected data type for event with type TypeRun
type RunEventData struct {
	ExecutionID string `json:"execution_id"`
}

// SuccessEventData is the expected data type for event with type TypeSuccess
type SuccessEventData struct {
	Log string `json:"log,omitempty"`
}
