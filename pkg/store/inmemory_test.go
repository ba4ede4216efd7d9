package store

import (
	"context"
	"sync"
	"testing"

	"github.com/GregDritschler/tekton-tutorial/pkg/api"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T) (Store, string) {
	t.Helper()
	s, err := NewInMemoryStore()
	require.NoError(t, err)
	runID := "run-1"
	require.NoError(t, s.CreateRun(context.Background(), runID, "build-test-deploy", []TaskInit{
		{Name: "build", Steps: []string{"build-and-push"}},
		{Name: "test", Steps: []string{"test"}},
		{Name: "deploy", Steps: []string{"deploy"}},
	}, TimeOption{}))
	return s, runID
}

func TestCreateRun(t *testing.T) {
	ctx := context.Background()
	s, runID := seed(t)

	state, err := s.GetRunState(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, api.StatusPending, state.Status)
	assert.NotNil(t, state.CreateTime)
	require.Len(t, state.Tasks, 3)
	assert.Equal(t, "build", state.Tasks[0].Name)
	for _, tr := range state.Tasks {
		assert.Equal(t, api.StatusQueued, tr.Status)
		require.Len(t, tr.Steps, 1)
		assert.Equal(t, api.StatusPending, tr.Steps[0].Status)
	}

	t.Run("duplicate", func(t *testing.T) {
		err := s.CreateRun(ctx, runID, "build-test-deploy", nil, TimeOption{})
		require.Error(t, err)
		assert.True(t, errors.As(err, &api.ErrDuplicateName{}))
	})
}

func TestSetStatuses(t *testing.T) {
	ctx := context.Background()
	s, runID := seed(t)

	require.NoError(t, s.SetRunStatus(ctx, runID, api.StatusRunning, TimeOption{}))
	require.NoError(t, s.SetTaskStatus(ctx, runID, "build", api.StatusRunning, "", TimeOption{}))
	require.NoError(t, s.SetStepStatus(ctx, runID, "build", 0, api.StatusRunning, "", TimeOption{}))
	require.NoError(t, s.SetStepStatus(ctx, runID, "build", 0, api.StatusFailed, "exit status 1", TimeOption{}))
	require.NoError(t, s.SetTaskStatus(ctx, runID, "build", api.StatusFailed, "step build-and-push failed", TimeOption{}))
	require.NoError(t, s.SetTaskStatus(ctx, runID, "deploy", api.StatusSkipped, "upstream task build failed", TimeOption{}))

	ts, err := s.GetTaskState(ctx, runID, "build")
	require.NoError(t, err)
	assert.Equal(t, api.StatusFailed, ts.Status)
	assert.Equal(t, "step build-and-push failed", ts.Message)
	assert.NotNil(t, ts.StartTime)
	assert.NotNil(t, ts.EndTime)
	assert.Equal(t, api.StatusFailed, ts.Steps[0].Status)
	assert.Equal(t, "exit status 1", ts.Steps[0].Message)

	state, err := s.GetRunState(ctx, runID)
	require.NoError(t, err)
	byName := make(map[string]api.Status, len(state.Tasks))
	for _, tr := range state.Tasks {
		byName[tr.Name] = tr.Status
	}
	assert.Equal(t, api.StatusSkipped, byName["deploy"])
	assert.Equal(t, api.StatusQueued, byName["test"])

	t.Run("notfound", func(t *testing.T) {
		err := s.SetTaskStatus(ctx, runID, "ghost", api.StatusRunning, "", TimeOption{})
		require.Error(t, err)
		assert.True(t, errors.As(err, &api.ErrNotFound{}))

		err = s.SetStepStatus(ctx, runID, "build", 7, api.StatusRunning, "", TimeOption{})
		require.Error(t, err)
		assert.True(t, errors.As(err, &api.ErrNotFound{}))
	})
}

func TestListRuns(t *testing.T) {
	ctx := context.Background()
	s, _ := seed(t)
	require.NoError(t, s.CreateRun(ctx, "run-2", "build-test-deploy", nil, TimeOption{}))

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	// most recent first
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, "run-1", runs[1].ID)
}

func TestConcurrentReads(t *testing.T) {
	// Status reads must be safe while the scheduler is writing.
	ctx := context.Background()
	s, runID := seed(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.SetTaskStatus(ctx, runID, "build", api.StatusRunning, "", TimeOption{})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, err := s.GetRunState(ctx, runID)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
}
