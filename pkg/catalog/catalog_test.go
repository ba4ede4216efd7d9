package catalog

import (
	"context"
	"testing"

	"github.com/GregDritschler/tekton-tutorial/pkg/api"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func sourceToImage() api.TaskSpec {
	return api.TaskSpec{
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
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		c := NewInMemory()
		require.NoError(t, c.Register(ctx, sourceToImage()))
	})

	t.Run("duplicate", func(t *testing.T) {
		c := NewInMemory()
		require.NoError(t, c.Register(ctx, sourceToImage()))
		err := c.Register(ctx, sourceToImage())
		require.Error(t, err)
		assert.True(t, errors.As(err, &api.ErrDuplicateName{}))
	})

	t.Run("nosteps", func(t *testing.T) {
		c := NewInMemory()
		spec := sourceToImage()
		spec.Steps = nil
		require.Error(t, c.Register(ctx, spec))
	})

	t.Run("undeclared_param", func(t *testing.T) {
		c := NewInMemory()
		spec := sourceToImage()
		spec.Steps[0].Args = append(spec.Steps[0].Args, "--cache=${inputs.params.cache}")
		err := c.Register(ctx, spec)
		require.Error(t, err)
		assert.True(t, errors.As(err, &api.ErrUndeclaredReference{}))
	})

	t.Run("undeclared_slot", func(t *testing.T) {
		c := NewInMemory()
		spec := sourceToImage()
		spec.Steps[0].Args = []string{"--context=${inputs.resources.workspace.path}"}
		err := c.Register(ctx, spec)
		require.Error(t, err)
		assert.True(t, errors.As(err, &api.ErrUndeclaredReference{}))
	})

	t.Run("unknown_scope", func(t *testing.T) {
		c := NewInMemory()
		spec := sourceToImage()
		spec.Steps[0].Args = []string{"${secrets.registry.token}"}
		err := c.Register(ctx, spec)
		require.Error(t, err)
		assert.True(t, errors.As(err, &api.ErrUndeclaredReference{}))
	})

	t.Run("output_scope_ok", func(t *testing.T) {
		c := NewInMemory()
		spec := sourceToImage()
		spec.Steps[0].Command = "push"
		spec.Steps[0].Args = []string{"${outputs.resources.built-image.url}"}
		require.NoError(t, c.Register(ctx, spec))
	})
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory()
	require.NoError(t, c.Register(ctx, sourceToImage()))

	spec, err := c.Get(ctx, "source-to-image")
	require.NoError(t, err)
	assert.Equal(t, "source-to-image", spec.Name)
	assert.Len(t, spec.Steps, 1)

	_, err = c.Get(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errors.As(err, &api.ErrNotFound{}))
}

func TestList(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory()
	require.NoError(t, c.Register(ctx, sourceToImage()))

	specs, err := c.List(ctx)
	require.NoError(t, err)
	assert.Len(t, specs, 1)
}
