package api

const (
	// HeaderRunID is header for RunID
	HeaderRunID = "x-run-id"
	// HeaderTaskName is header for TaskName
	HeaderTaskName = "x-task-name"
	// HeaderStepID is header for StepID
	HeaderStepID = "x-step-id"
	// HeaderType is header for Type
	HeaderType = "x-type"
	// HeaderCorrelationID is header for CorrelationID
	HeaderCorrelationID = "x-correlation-id"
	// HeaderExecutionID is header for ExecutionID
	HeaderExecutionID = "x-execution-id"
)
