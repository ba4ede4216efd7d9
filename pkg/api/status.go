package api

// Status is the state of a run, task run or step.
//
// Runs move PENDING -> RUNNING -> {SUCCEEDED | FAILED | CANCELLED}.
// Task runs move QUEUED -> RUNNING -> {SUCCEEDED | FAILED | SKIPPED}.
type Status string

const (
	// StatusPending is the initial status of a run, before scheduling starts.
	StatusPending Status = "PENDING"

	// StatusQueued is the initial status of a task run, waiting for its
	// predecessors to succeed.
	StatusQueued Status = "QUEUED"

	// StatusRunning status for items currently executing.
	StatusRunning Status = "RUNNING"

	// StatusSucceeded status for items that completed successfully.
	StatusSucceeded Status = "SUCCEEDED"

	// StatusFailed status for items that failed.
	StatusFailed Status = "FAILED"

	// StatusSkipped status for task runs and steps never started because an
	// upstream failure (or a cancellation) made them unreachable.
	StatusSkipped Status = "SKIPPED"

	// StatusCancelled status for runs cancelled by the caller.
	StatusCancelled Status = "CANCELLED"
)

// Finished returns true if the status is terminal.
func (s Status) Finished() bool {
	for _, fs := range []Status{StatusSucceeded, StatusFailed, StatusSkipped, StatusCancelled} {
		if s == fs {
			return true
		}
	}
	return false
}
