package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/GregDritschler/tekton-tutorial/pkg/api"
)

const (
	// CreateRunMethod is http method used for endpoint CreateRun
	CreateRunMethod = http.MethodPost
	// CreateRunPath is the path definition of the endpoint CreateRun.
	CreateRunPath = "/api/runs"

	// ListRunsMethod is http method used for endpoint ListRuns
	ListRunsMethod = http.MethodGet
	// ListRunsPath is the path definition of the endpoint ListRuns.
	ListRunsPath = "/api/runs"

	// RunStateMethod is http method used for endpoint RunState
	RunStateMethod     = http.MethodGet
	runStatePathFormat = "/api/runs/%s"

	// TaskStateMethod is http method used for endpoint TaskState
	TaskStateMethod     = http.MethodGet
	taskStatePathFormat = "/api/runs/%s/tasks/%s"

	// StepLogMethod is http method used for endpoint StepLog
	StepLogMethod     = http.MethodGet
	stepLogPathFormat = "/api/runs/%s/tasks/%s/steps/%d/log"

	// CancelRunMethod is http method used for endpoint CancelRun
	CancelRunMethod     = http.MethodPost
	cancelRunPathFormat = "/api/runs/%s/cancel"
)

var (
	// RunStatePath is the path definition of the endpoint RunState.
	RunStatePath = fmt.Sprintf(runStatePathFormat, fmt.Sprintf(":%s", RunIDParam))

	// TaskStatePath is the path definition of the endpoint TaskState.
	TaskStatePath = fmt.Sprintf(taskStatePathFormat, fmt.Sprintf(":%s", RunIDParam), fmt.Sprintf(":%s", TaskNameParam))

	// StepLogPath is the path definition of the endpoint StepLog.
	StepLogPath = fmt.Sprintf("/api/runs/:%s/tasks/:%s/steps/:%s/log", RunIDParam, TaskNameParam, StepIDParam)

	// CancelRunPath is the path definition of the endpoint CancelRun.
	CancelRunPath = fmt.Sprintf(cancelRunPathFormat, fmt.Sprintf(":%s", RunIDParam))
)

// CreateRunResponse is the response structure for the CreateRun endpoint
type CreateRunResponse struct {
	RunID string `json:"runID"`
}

func (cli client) CreateRun(ctx context.Context, req api.RunRequest) (string, error) {
	var res CreateRunResponse
	if err := cli.do(ctx, CreateRunMethod, CreateRunPath, req, &res); err != nil {
		return "", err
	}
	return res.RunID, nil
}

func (cli client) ListRuns(ctx context.Context) ([]api.RunInfo, error) {
	var res []api.RunInfo
	if err := cli.do(ctx, ListRunsMethod, ListRunsPath, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (cli client) RunState(ctx context.Context, runID string) (api.RunState, error) {
	var res api.RunState
	if err := cli.do(ctx, RunStateMethod, fmt.Sprintf(runStatePathFormat, runID), nil, &res); err != nil {
		return api.RunState{}, err
	}
	return res, nil
}

func (cli client) TaskState(ctx context.Context, runID, task string) (api.TaskRunState, error) {
	var res api.TaskRunState
	if err := cli.do(ctx, TaskStateMethod, fmt.Sprintf(taskStatePathFormat, runID, task), nil, &res); err != nil {
		return api.TaskRunState{}, err
	}
	return res, nil
}

func (cli client) StepLog(ctx context.Context, runID, task string, step int) (string, error) {
	var res string
	if err := cli.do(ctx, StepLogMethod, fmt.Sprintf(stepLogPathFormat, runID, task, step), nil, &res); err != nil {
		return "", err
	}
	return res, nil
}

func (cli client) CancelRun(ctx context.Context, runID string) error {
	return cli.do(ctx, CancelRunMethod, fmt.Sprintf(cancelRunPathFormat, runID), nil, nil)
}
