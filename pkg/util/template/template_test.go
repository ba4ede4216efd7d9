package template

import (
	"testing"

	"github.com/GregDritschler/tekton-tutorial/pkg/api"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFind(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		assert.Empty(t, Find("plain string"))
	})

	t.Run("several", func(t *testing.T) {
		refs := Find("push ${inputs.resources.src.url} to ${outputs.resources.img.url}:${inputs.params.tag}")
		assert.Equal(t, []string{"inputs.resources.src.url", "outputs.resources.img.url", "inputs.params.tag"}, refs)
	})
}

func TestResolve(t *testing.T) {
	ctx := Context{
		"inputs.params.tag":         "1.0",
		"inputs.resources.src.url":  "https://github.com/acme/app",
		"outputs.resources.img.url": "registry.local/acme/app",
	}

	t.Run("nomarker", func(t *testing.T) {
		out, err := Resolve("no markers here", ctx)
		require.NoError(t, err)
		assert.Equal(t, "no markers here", out)
	})

	t.Run("substitution", func(t *testing.T) {
		out, err := Resolve("${outputs.resources.img.url}:${inputs.params.tag}", ctx)
		require.NoError(t, err)
		assert.Equal(t, "registry.local/acme/app:1.0", out)
	})

	t.Run("idempotent", func(t *testing.T) {
		in := "clone ${inputs.resources.src.url}"
		out1, err := Resolve(in, ctx)
		require.NoError(t, err)
		out2, err := Resolve(in, ctx)
		require.NoError(t, err)
		assert.Equal(t, out1, out2)
	})

	t.Run("unresolved", func(t *testing.T) {
		// A missing reference always fails, never substitutes empty string.
		_, err := Resolve("tag ${inputs.params.missing}", ctx)
		require.Error(t, err)
		assert.True(t, errors.As(err, &api.ErrUnresolvedReference{}))
	})

	t.Run("nonrecursive", func(t *testing.T) {
		// A resolved value is not re-scanned for markers.
		c := Context{
			"inputs.params.a": "${inputs.params.b}",
			"inputs.params.b": "boom",
		}
		out, err := Resolve("${inputs.params.a}", c)
		require.NoError(t, err)
		assert.Equal(t, "${inputs.params.b}", out)
	})
}

func TestResolveAll(t *testing.T) {
	ctx := Context{"inputs.params.rev": "main"}

	out, err := ResolveAll([]string{"checkout", "${inputs.params.rev}"}, ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"checkout", "main"}, out)

	_, err = ResolveAll([]string{"${inputs.params.nope}"}, ctx)
	require.Error(t, err)
	assert.True(t, errors.As(errors.Cause(err), &api.ErrUnresolvedReference{}))

	none, err := ResolveAll(nil, ctx)
	require.NoError(t, err)
	assert.Nil(t, none)
}
