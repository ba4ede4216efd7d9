// Package client is the API client of the controller. Method and path
// constants are shared with the server routes.
package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/GregDritschler/tekton-tutorial/pkg/api"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
)

const (
	// RunIDParam is the route param definition for the run identifier
	RunIDParam = "runID"

	// TaskNameParam is the route param definition for the task instance name
	TaskNameParam = "taskName"

	// StepIDParam is the route param definition for the step index
	StepIDParam = "stepID"
)

// Client is the API client that performs all operations to a controller.
type Client interface {
	// RegisterResource registers a new resource definition.
	RegisterResource(ctx context.Context, def api.ResourceDefinition) error

	// ListResources lists the registered resource definitions.
	ListResources(ctx context.Context) ([]api.ResourceDefinition, error)

	// RegisterTask registers a new task spec.
	RegisterTask(ctx context.Context, spec api.TaskSpec) error

	// ListTasks lists the registered task specs.
	ListTasks(ctx context.Context) ([]api.TaskSpec, error)

	// RegisterPipeline registers a new pipeline spec.
	RegisterPipeline(ctx context.Context, spec api.PipelineSpec) error

	// ListPipelines lists the registered pipeline specs.
	ListPipelines(ctx context.Context) ([]api.PipelineSpec, error)

	// CreateRun asks for one execution of a pipeline.
	// It returns the run identifier.
	CreateRun(ctx context.Context, req api.RunRequest) (string, error)

	// ListRuns lists the runs, most recent first.
	ListRuns(ctx context.Context) ([]api.RunInfo, error)

	// RunState returns the state of a run.
	RunState(ctx context.Context, runID string) (api.RunState, error)

	// TaskState returns the state of a task run.
	TaskState(ctx context.Context, runID, task string) (api.TaskRunState, error)

	// StepLog returns the archived log of a step execution.
	StepLog(ctx context.Context, runID, task string, step int) (string, error)

	// CancelRun cancels a running run.
	CancelRun(ctx context.Context, runID string) error
}

// NewClient creates a controller client.
func NewClient(uri string) (Client, error) {
	httpcli := retryablehttp.NewClient()
	httpcli.Logger = nil
	u := strings.TrimRight(uri, "/")
	return client{
		httpcli: httpcli,
		uri:     u,
	}, nil
}

type client struct {
	httpcli *retryablehttp.Client
	uri     string
}

// do performs the request and decodes the response body into out, mapping
// 404 and 400 responses to typed errors.
func (cli client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "cannot marshal request")
		}
	}
	req, err := retryablehttp.NewRequest(method, cli.uri+path, raw)
	if err != nil {
		return errors.Wrap(err, "cannot create request")
	}
	if raw != nil {
		req.Header.Set("content-type", "application/json")
	}

	resp, err := cli.httpcli.Do(req.WithContext(ctx))
	if err != nil {
		return errors.Wrap(err, "cannot do request")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound{path}
	case resp.StatusCode == http.StatusBadRequest:
		var httpErr HTTPError
		if err := json.NewDecoder(resp.Body).Decode(&httpErr); err != nil {
			return ErrBadRequest{errors.New("bad request")}
		}
		return ErrBadRequest{httpErr}
	case resp.StatusCode >= 300:
		return errors.Errorf("unexpected status %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	if asString, isString := out.(*string); isString {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(err, "cannot read response")
		}
		*asString = string(data)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "cannot decode response")
	}
	return nil
}
