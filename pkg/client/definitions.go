package client

import (
	"context"
	"net/http"

	"github.com/GregDritschler/tekton-tutorial/pkg/api"
)

const (
	// RegisterResourceMethod is http method used for endpoint RegisterResource
	RegisterResourceMethod = http.MethodPost
	// RegisterResourcePath is the path definition of the endpoint RegisterResource.
	RegisterResourcePath = "/api/resources"

	// ListResourcesMethod is http method used for endpoint ListResources
	ListResourcesMethod = http.MethodGet
	// ListResourcesPath is the path definition of the endpoint ListResources.
	ListResourcesPath = "/api/resources"

	// RegisterTaskMethod is http method used for endpoint RegisterTask
	RegisterTaskMethod = http.MethodPost
	// RegisterTaskPath is the path definition of the endpoint RegisterTask.
	RegisterTaskPath = "/api/tasks"

	// ListTasksMethod is http method used for endpoint ListTasks
	ListTasksMethod = http.MethodGet
	// ListTasksPath is the path definition of the endpoint ListTasks.
	ListTasksPath = "/api/tasks"

	// RegisterPipelineMethod is http method used for endpoint RegisterPipeline
	RegisterPipelineMethod = http.MethodPost
	// RegisterPipelinePath is the path definition of the endpoint RegisterPipeline.
	RegisterPipelinePath = "/api/pipelines"

	// ListPipelinesMethod is http method used for endpoint ListPipelines
	ListPipelinesMethod = http.MethodGet
	// ListPipelinesPath is the path definition of the endpoint ListPipelines.
	ListPipelinesPath = "/api/pipelines"
)

func (cli client) RegisterResource(ctx context.Context, def api.ResourceDefinition) error {
	return cli.do(ctx, RegisterResourceMethod, RegisterResourcePath, def, nil)
}

func (cli client) ListResources(ctx context.Context) ([]api.ResourceDefinition, error) {
	var res []api.ResourceDefinition
	if err := cli.do(ctx, ListResourcesMethod, ListResourcesPath, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (cli client) RegisterTask(ctx context.Context, spec api.TaskSpec) error {
	return cli.do(ctx, RegisterTaskMethod, RegisterTaskPath, spec, nil)
}

func (cli client) ListTasks(ctx context.Context) ([]api.TaskSpec, error) {
	var res []api.TaskSpec
	if err := cli.do(ctx, ListTasksMethod, ListTasksPath, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (cli client) RegisterPipeline(ctx context.Context, spec api.PipelineSpec) error {
	return cli.do(ctx, RegisterPipelineMethod, RegisterPipelinePath, spec, nil)
}

func (cli client) ListPipelines(ctx context.Context) ([]api.PipelineSpec, error) {
	var res []api.PipelineSpec
	if err := cli.do(ctx, ListPipelinesMethod, ListPipelinesPath, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}
