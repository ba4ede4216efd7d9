package main

import (
	"testing"

	"github.com/GregDritschler/tekton-tutorial/pkg/util/context"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewArchiver(t *testing.T) {
	ctx := context.Background()

	a, err := newArchiver(ctx, config{LogsType: "inmemory"})
	require.NoError(t, err)
	assert.NotNil(t, a)

	t.Run("unknown", func(t *testing.T) {
		_, err := newArchiver(ctx, config{LogsType: "tape"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown logs type")
	})
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	s, err := newStore(ctx, config{StoreType: "inmemory"})
	require.NoError(t, err)
	assert.NotNil(t, s)

	t.Run("unknown", func(t *testing.T) {
		_, err := newStore(ctx, config{StoreType: "tape"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown store type")
	})
}
