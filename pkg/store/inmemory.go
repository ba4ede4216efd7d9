package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GregDritschler/tekton-tutorial/pkg/api"
)

type run struct {
	id         string
	pipeline   string
	status     api.Status
	order      []string
	tasks      map[string]*taskrun
	createTime *time.Time
	startTime  *time.Time
	endTime    *time.Time
}

type taskrun struct {
	name      string
	status    api.Status
	message   string
	steps     []*steprun
	startTime *time.Time
	endTime   *time.Time
}

type steprun struct {
	name      string
	status    api.Status
	message   string
	startTime *time.Time
	endTime   *time.Time
}

// NewInMemoryStore returns a new InMemory store.
func NewInMemoryStore() (Store, error) {
	return &inMemory{
		runs: make(map[string]*run),
	}, nil
}

type inMemory struct {
	mu    sync.RWMutex
	runs  map[string]*run
	order []string
}

func (s *inMemory) CreateRun(ctx context.Context, runID, pipeline string, tasks []TaskInit, opt TimeOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[runID]; exists {
		return api.DuplicateNameError(fmt.Sprintf("run %s", runID))
	}

	r := &run{
		id:       runID,
		pipeline: pipeline,
		status:   api.StatusPending,
		tasks:    make(map[string]*taskrun, len(tasks)),
	}
	ct := orNow(opt.CreateTime)
	r.createTime = &ct
	for _, t := range tasks {
		tr := &taskrun{name: t.Name, status: api.StatusQueued}
		for _, sn := range t.Steps {
			tr.steps = append(tr.steps, &steprun{name: sn, status: api.StatusPending})
		}
		r.tasks[t.Name] = tr
		r.order = append(r.order, t.Name)
	}
	s.runs[runID] = r
	s.order = append(s.order, runID)
	return nil
}

func (s *inMemory) SetRunStatus(ctx context.Context, runID string, status api.Status, opt TimeOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, exists := s.runs[runID]
	if !exists {
		return api.NotFoundError(fmt.Sprintf("run %s", runID))
	}
	r.status = status
	if status == api.StatusRunning {
		t := orNow(opt.StartTime)
		r.startTime = &t
	} else if status.Finished() {
		t := orNow(opt.EndTime)
		r.endTime = &t
	}
	return nil
}

func (s *inMemory) SetTaskStatus(ctx context.Context, runID, task string, status api.Status, message string, opt TimeOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr, err := s.taskrun(runID, task)
	if err != nil {
		return err
	}
	tr.status = status
	tr.message = message
	if status == api.StatusRunning {
		t := orNow(opt.StartTime)
		tr.startTime = &t
	} else if status.Finished() {
		t := orNow(opt.EndTime)
		tr.endTime = &t
	}
	return nil
}

func (s *inMemory) SetStepStatus(ctx context.Context, runID, task string, step int, status api.Status, message string, opt TimeOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr, err := s.taskrun(runID, task)
	if err != nil {
		return err
	}
	if step < 0 || step >= len(tr.steps) {
		return api.NotFoundError(fmt.Sprintf("step %d of task %s in run %s", step, task, runID))
	}
	sr := tr.steps[step]
	sr.status = status
	sr.message = message
	if status == api.StatusRunning {
		t := orNow(opt.StartTime)
		sr.startTime = &t
	} else if status.Finished() {
		t := orNow(opt.EndTime)
		sr.endTime = &t
	}
	return nil
}

func (s *inMemory) ListRuns(ctx context.Context) ([]api.RunInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]api.RunInfo, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		r := s.runs[s.order[i]]
		res = append(res, api.RunInfo{
			ID:       r.id,
			Pipeline: r.pipeline,
			Status:   r.status,
		})
	}
	return res, nil
}

func (s *inMemory) GetRunState(ctx context.Context, runID string) (api.RunState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, exists := s.runs[runID]
	if !exists {
		return api.RunState{}, api.NotFoundError(fmt.Sprintf("run %s", runID))
	}
	tasks := make([]api.TaskRunState, 0, len(r.order))
	for _, name := range r.order {
		tasks = append(tasks, taskState(r.tasks[name]))
	}
	return api.RunState{
		ID:         r.id,
		Pipeline:   r.pipeline,
		Status:     r.status,
		Tasks:      tasks,
		CreateTime: r.createTime,
		StartTime:  r.startTime,
		EndTime:    r.endTime,
	}, nil
}

func (s *inMemory) GetTaskState(ctx context.Context, runID, task string) (api.TaskRunState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tr, err := s.taskrun(runID, task)
	if err != nil {
		return api.TaskRunState{}, err
	}
	return taskState(tr), nil
}

// taskrun is called with the lock held.
func (s *inMemory) taskrun(runID, task string) (*taskrun, error) {
	r, exists := s.runs[runID]
	if !exists {
		return nil, api.NotFoundError(fmt.Sprintf("run %s", runID))
	}
	tr, exists := r.tasks[task]
	if !exists {
		return nil, api.NotFoundError(fmt.Sprintf("task %s in run %s", task, runID))
	}
	return tr, nil
}

func taskState(tr *taskrun) api.TaskRunState {
	steps := make([]api.StepState, 0, len(tr.steps))
	for _, sr := range tr.steps {
		steps = append(steps, api.StepState{
			Name:      sr.name,
			Status:    sr.status,
			Message:   sr.message,
			StartTime: sr.startTime,
			EndTime:   sr.endTime,
		})
	}
	return api.TaskRunState{
		Name:      tr.name,
		Status:    tr.status,
		Message:   tr.message,
		Steps:     steps,
		StartTime: tr.startTime,
		EndTime:   tr.endTime,
	}
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
