package graph

import (
	"context"
	"testing"

	"github.com/GregDritschler/tekton-tutorial/pkg/api"
	"github.com/GregDritschler/tekton-tutorial/pkg/catalog"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func newCatalog(t *testing.T) catalog.Catalog {
	t.Helper()
	ctx := context.Background()
	c := catalog.NewInMemory()

	require.NoError(t, c.Register(ctx, api.TaskSpec{
		Name: "source-to-image",
		Inputs: []api.ResourceSlot{
			{Name: "git-source", Kind: api.ResourceGit},
		},
		Outputs: []api.ResourceSlot{
			{Name: "built-image", Kind: api.ResourceImage},
		},
		Params: []api.ParamSpec{
			{Name: "imageTag", Default: strptr("latest")},
		},
		Steps: []api.Step{
			{
				Name:    "build-and-push",
				Image:   "builder:v1",
				Command: "build",
				Args: []string{
					"--context=${inputs.resources.git-source.url}",
					"--destination=${outputs.resources.built-image.url}:${inputs.params.imageTag}",
				},
			},
		},
	}))

	require.NoError(t, c.Register(ctx, api.TaskSpec{
		Name: "run-tests",
		Inputs: []api.ResourceSlot{
			{Name: "git-source", Kind: api.ResourceGit},
		},
		Steps: []api.Step{
			{Name: "test", Image: "golang:1.21", Command: "go", Args: []string{"test", "./..."}},
		},
	}))

	require.NoError(t, c.Register(ctx, api.TaskSpec{
		Name: "deploy-image",
		Inputs: []api.ResourceSlot{
			{Name: "image", Kind: api.ResourceImage},
		},
		Params: []api.ParamSpec{
			{Name: "namespace"},
		},
		Steps: []api.Step{
			{
				Name:    "deploy",
				Image:   "deployer:v1",
				Command: "deploy",
				Args: []string{
					"--image=${inputs.resources.image.url}",
					"--namespace=${inputs.params.namespace}",
				},
			},
		},
	}))
	return c
}

func buildTestDeploy() api.PipelineSpec {
	return api.PipelineSpec{
		Name: "build-test-deploy",
		Resources: []api.ResourceSlot{
			{Name: "source", Kind: api.ResourceGit},
			{Name: "image", Kind: api.ResourceImage},
		},
		Params: []api.ParamSpec{
			{Name: "target-namespace", Default: strptr("staging")},
		},
		Tasks: []api.PipelineTask{
			{
				Name:    "deploy",
				TaskRef: "deploy-image",
				Resources: []api.ResourceBinding{
					{Slot: "image", Resource: "image", From: []string{"build"}},
				},
				Params: []api.ParamBinding{
					{Name: "namespace", Value: "${params.target-namespace}"},
				},
				RunAfter: []string{"test"},
			},
			{
				Name:    "build",
				TaskRef: "source-to-image",
				Resources: []api.ResourceBinding{
					{Slot: "git-source", Resource: "source"},
					{Slot: "built-image", Resource: "image"},
				},
			},
			{
				Name:    "test",
				TaskRef: "run-tests",
				Resources: []api.ResourceBinding{
					{Slot: "git-source", Resource: "source"},
				},
			},
		},
	}
}

func TestBuild(t *testing.T) {
	ctx := context.Background()
	b := NewBuilder(newCatalog(t))

	g, err := b.Build(ctx, buildTestDeploy())
	require.NoError(t, err)
	assert.Equal(t, 3, g.Len())

	// build and test are independent roots, deploy waits for both.
	order := g.Order()
	require.Len(t, order, 3)
	assert.Equal(t, "deploy", order[2])

	indegree := g.Indegrees()
	assert.Equal(t, 0, indegree["build"])
	assert.Equal(t, 0, indegree["test"])
	assert.Equal(t, 2, indegree["deploy"])

	assert.Equal(t, []string{"deploy"}, g.Successors("build"))
	assert.Equal(t, []string{"deploy"}, g.Successors("test"))
	assert.Empty(t, g.Successors("deploy"))
}

func TestBuildSharedSlotWithoutProvenance(t *testing.T) {
	// build and test share the source slot with no from marker: sharing a
	// resource alone must not create an ordering edge.
	ctx := context.Background()
	b := NewBuilder(newCatalog(t))

	g, err := b.Build(ctx, buildTestDeploy())
	require.NoError(t, err)
	assert.NotContains(t, g.Successors("build"), "test")
	assert.NotContains(t, g.Successors("test"), "build")
}

func TestBuildErrors(t *testing.T) {
	ctx := context.Background()
	b := NewBuilder(newCatalog(t))

	t.Run("unknown_taskref", func(t *testing.T) {
		spec := buildTestDeploy()
		spec.Tasks[1].TaskRef = "nope"
		_, err := b.Build(ctx, spec)
		require.Error(t, err)
		assert.True(t, errors.As(errors.Cause(err), &api.ErrNotFound{}))
	})

	t.Run("duplicate_task_name", func(t *testing.T) {
		spec := buildTestDeploy()
		spec.Tasks[2].Name = "build"
		_, err := b.Build(ctx, spec)
		require.Error(t, err)
		assert.True(t, errors.As(err, &api.ErrDuplicateName{}))
	})

	t.Run("unbound_slot", func(t *testing.T) {
		spec := buildTestDeploy()
		spec.Tasks[1].Resources = spec.Tasks[1].Resources[:1] // drop built-image binding
		_, err := b.Build(ctx, spec)
		require.Error(t, err)
		assert.True(t, errors.As(err, &api.ErrUnboundSlot{}))
	})

	t.Run("kind_mismatch", func(t *testing.T) {
		spec := buildTestDeploy()
		// bind deploy's image slot (kind image) to the git pipeline slot
		spec.Tasks[0].Resources[0].Resource = "source"
		spec.Tasks[0].Resources[0].From = nil
		_, err := b.Build(ctx, spec)
		require.Error(t, err)
		assert.True(t, errors.As(err, &api.ErrKindMismatch{}))
	})

	t.Run("undeclared_binding_slot", func(t *testing.T) {
		spec := buildTestDeploy()
		spec.Tasks[2].Resources = append(spec.Tasks[2].Resources, api.ResourceBinding{Slot: "cache", Resource: "source"})
		_, err := b.Build(ctx, spec)
		require.Error(t, err)
		assert.True(t, errors.As(err, &api.ErrUndeclaredReference{}))
	})

	t.Run("missing_param", func(t *testing.T) {
		spec := buildTestDeploy()
		spec.Tasks[0].Params = nil // deploy-image's namespace has no default
		_, err := b.Build(ctx, spec)
		require.Error(t, err)
		assert.True(t, errors.As(err, &api.ErrMissingParameter{}))
	})

	t.Run("undeclared_param_binding", func(t *testing.T) {
		spec := buildTestDeploy()
		spec.Tasks[0].Params = append(spec.Tasks[0].Params, api.ParamBinding{Name: "replicas", Value: "3"})
		_, err := b.Build(ctx, spec)
		require.Error(t, err)
		assert.True(t, errors.As(err, &api.ErrUndeclaredReference{}))
	})

	t.Run("unresolved_pipeline_param", func(t *testing.T) {
		spec := buildTestDeploy()
		spec.Tasks[0].Params[0].Value = "${params.no-such-param}"
		_, err := b.Build(ctx, spec)
		require.Error(t, err)
		assert.True(t, errors.As(err, &api.ErrUnresolvedReference{}))
	})

	t.Run("unknown_runafter", func(t *testing.T) {
		spec := buildTestDeploy()
		spec.Tasks[0].RunAfter = []string{"ghost"}
		_, err := b.Build(ctx, spec)
		require.Error(t, err)
		assert.True(t, errors.As(err, &api.ErrNotFound{}))
	})

	t.Run("provenance_producer_mismatch", func(t *testing.T) {
		spec := buildTestDeploy()
		// test produces nothing, so it cannot be a provenance source.
		spec.Tasks[0].Resources[0].From = []string{"test"}
		_, err := b.Build(ctx, spec)
		require.Error(t, err)
		assert.True(t, errors.As(err, &api.ErrUnboundSlot{}))
	})
}

func TestBuildCycle(t *testing.T) {
	ctx := context.Background()
	b := NewBuilder(newCatalog(t))

	spec := buildTestDeploy()
	// close the loop: build waits for deploy, deploy already waits for build
	spec.Tasks[1].RunAfter = []string{"deploy"}
	// verify hangs off deploy: blocked by the cycle, but not on it
	spec.Tasks = append(spec.Tasks, api.PipelineTask{
		Name:    "verify",
		TaskRef: "run-tests",
		Resources: []api.ResourceBinding{
			{Slot: "git-source", Resource: "source"},
		},
		RunAfter: []string{"deploy"},
	})

	_, err := b.Build(ctx, spec)
	require.Error(t, err)

	var cyclic api.ErrCyclicDependency
	require.True(t, errors.As(err, &cyclic))
	assert.Equal(t, []string{"build", "deploy"}, cyclic.Members())
	assert.NotContains(t, cyclic.Members(), "test")
	assert.NotContains(t, cyclic.Members(), "verify")
}
