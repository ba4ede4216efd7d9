// Package logs archives step output so it can be fetched after a run
// finished, whatever runtime executed the step.
package logs

import (
	"fmt"
	"sync"

	"github.com/GregDritschler/tekton-tutorial/pkg/api"
	"github.com/GregDritschler/tekton-tutorial/pkg/util/context"
)

// Archiver stores and serves step logs.
type Archiver interface {
	// Archive stores the log output of one step execution.
	Archive(ctx context.Context, runID, task string, step int, log string) error

	// Fetch returns the archived log of one step execution.
	Fetch(ctx context.Context, runID, task string, step int) (string, error)
}

// NewInMemory returns an Archiver keeping logs in memory.
func NewInMemory() Archiver {
	return &inMemory{
		logs: make(map[string]string),
	}
}

type inMemory struct {
	mu   sync.RWMutex
	logs map[string]string
}

func (a *inMemory) Archive(ctx context.Context, runID, task string, step int, log string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs[key(runID, task, step)] = log
	return nil
}

func (a *inMemory) Fetch(ctx context.Context, runID, task string, step int) (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	log, exists := a.logs[key(runID, task, step)]
	if !exists {
		return "", api.NotFoundError(fmt.Sprintf("log of step %d of task %s in run %s", step, task, runID))
	}
	return log, nil
}

func key(runID, task string, step int) string {
	return fmt.Sprintf("%s/%s/%d", runID, task, step)
}
