package registry

import (
	"context"
	"testing"

	"github.com/GregDritschler/tekton-tutorial/pkg/api"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	ctx := context.Background()
	r := NewInMemory()

	def := api.ResourceDefinition{
		Name: "app-source",
		Kind: api.ResourceGit,
		Params: map[string]string{
			"url":      "https://github.com/acme/app",
			"revision": "main",
		},
	}
	require.NoError(t, r.Register(ctx, def))

	t.Run("duplicate", func(t *testing.T) {
		err := r.Register(ctx, def)
		require.Error(t, err)
		assert.True(t, errors.As(err, &api.ErrDuplicateName{}))
	})

	t.Run("nokind", func(t *testing.T) {
		err := r.Register(ctx, api.ResourceDefinition{Name: "unkinded"})
		require.Error(t, err)
	})
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	r := NewInMemory()
	require.NoError(t, r.Register(ctx, api.ResourceDefinition{
		Name:   "app-image",
		Kind:   api.ResourceImage,
		Params: map[string]string{"url": "registry.local/acme/app"},
	}))

	def, err := r.Resolve(ctx, "app-image")
	require.NoError(t, err)
	assert.Equal(t, api.ResourceImage, def.Kind)
	assert.Equal(t, "registry.local/acme/app", def.Params["url"])

	_, err = r.Resolve(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errors.As(err, &api.ErrNotFound{}))
}

func TestList(t *testing.T) {
	ctx := context.Background()
	r := NewInMemory()
	require.NoError(t, r.Register(ctx, api.ResourceDefinition{Name: "a", Kind: api.ResourceGit}))
	require.NoError(t, r.Register(ctx, api.ResourceDefinition{Name: "b", Kind: api.ResourceImage}))

	defs, err := r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, defs, 2)
}
