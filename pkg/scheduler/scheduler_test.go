package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/GregDritschler/tekton-tutorial/pkg/api"
	"github.com/GregDritschler/tekton-tutorial/pkg/catalog"
	"github.com/GregDritschler/tekton-tutorial/pkg/graph"
	"github.com/GregDritschler/tekton-tutorial/pkg/logs"
	"github.com/GregDritschler/tekton-tutorial/pkg/registry"
	"github.com/GregDritschler/tekton-tutorial/pkg/runtime"
	"github.com/GregDritschler/tekton-tutorial/pkg/store"
	"github.com/GregDritschler/tekton-tutorial/pkg/util/context"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

// fakeRuntime records executed steps and can fail or block per task.
type fakeRuntime struct {
	mu       sync.Mutex
	calls    []runtime.StepRequest
	fail     map[string]error
	gate     chan struct{}
	inflight int
	maxSeen  int
}

func (f *fakeRuntime) RunStep(ctx context.Context, req runtime.StepRequest) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.inflight++
	if f.inflight > f.maxSeen {
		f.maxSeen = f.inflight
	}
	err := f.fail[req.TaskName]
	gate := f.gate
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return "ok\n", nil
}

func (f *fakeRuntime) Close() error { return nil }

func (f *fakeRuntime) tasks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, c := range f.calls {
		names = append(names, c.TaskName)
	}
	return names
}

type env struct {
	sched    Scheduler
	store    store.Store
	rt       *fakeRuntime
	graph    *graph.ResolvedGraph
	archiver logs.Archiver
}

func newEnv(t *testing.T, rt *fakeRuntime, conf Config) *env {
	t.Helper()
	ctx := context.Background()

	reg := registry.NewInMemory()
	require.NoError(t, reg.Register(ctx, api.ResourceDefinition{
		Name:   "app-source",
		Kind:   api.ResourceGit,
		Params: map[string]string{"url": "https://github.com/acme/app", "revision": "main"},
	}))
	require.NoError(t, reg.Register(ctx, api.ResourceDefinition{
		Name:   "app-image",
		Kind:   api.ResourceImage,
		Params: map[string]string{"url": "registry.local/acme/app"},
	}))

	cat := catalog.NewInMemory()
	require.NoError(t, cat.Register(ctx, api.TaskSpec{
		Name:    "source-to-image",
		Inputs:  []api.ResourceSlot{{Name: "git-source", Kind: api.ResourceGit}},
		Outputs: []api.ResourceSlot{{Name: "built-image", Kind: api.ResourceImage}},
		Params:  []api.ParamSpec{{Name: "imageTag", Default: strptr("latest")}},
		Steps: []api.Step{{
			Name:    "build-and-push",
			Image:   "builder:v1",
			Command: "build",
			Args: []string{
				"--context=${inputs.resources.git-source.url}",
				"--destination=${outputs.resources.built-image.url}:${inputs.params.imageTag}",
			},
		}},
	}))
	require.NoError(t, cat.Register(ctx, api.TaskSpec{
		Name:   "run-tests",
		Inputs: []api.ResourceSlot{{Name: "git-source", Kind: api.ResourceGit}},
		Steps:  []api.Step{{Name: "test", Image: "golang:1.21", Command: "go", Args: []string{"test", "./..."}}},
	}))
	require.NoError(t, cat.Register(ctx, api.TaskSpec{
		Name:   "deploy-image",
		Inputs: []api.ResourceSlot{{Name: "image", Kind: api.ResourceImage}},
		Params: []api.ParamSpec{{Name: "namespace"}},
		Steps: []api.Step{{
			Name:    "deploy",
			Image:   "deployer:v1",
			Command: "deploy",
			Args:    []string{"--image=${inputs.resources.image.url}", "--namespace=${inputs.params.namespace}"},
		}},
	}))

	g, err := graph.NewBuilder(cat).Build(ctx, api.PipelineSpec{
		Name: "build-test-deploy",
		Resources: []api.ResourceSlot{
			{Name: "source", Kind: api.ResourceGit},
			{Name: "image", Kind: api.ResourceImage},
		},
		Params: []api.ParamSpec{{Name: "target-namespace", Default: strptr("staging")}},
		Tasks: []api.PipelineTask{
			{
				Name:    "build",
				TaskRef: "source-to-image",
				Resources: []api.ResourceBinding{
					{Slot: "git-source", Resource: "source"},
					{Slot: "built-image", Resource: "image"},
				},
				Params: []api.ParamBinding{{Name: "imageTag", Value: "v1"}},
			},
			{
				Name:      "test",
				TaskRef:   "run-tests",
				Resources: []api.ResourceBinding{{Slot: "git-source", Resource: "source"}},
			},
			{
				Name:    "deploy",
				TaskRef: "deploy-image",
				Resources: []api.ResourceBinding{
					{Slot: "image", Resource: "image", From: []string{"build"}},
				},
				Params:   []api.ParamBinding{{Name: "namespace", Value: "${params.target-namespace}"}},
				RunAfter: []string{"test"},
			},
		},
	})
	require.NoError(t, err)

	s, err := store.NewInMemoryStore()
	require.NoError(t, err)
	archiver := logs.NewInMemory()

	return &env{
		sched:    New(rt, reg, s, archiver, conf),
		store:    s,
		rt:       rt,
		graph:    g,
		archiver: archiver,
	}
}

func request() api.RunRequest {
	return api.RunRequest{
		Pipeline:  "build-test-deploy",
		Resources: map[string]string{"source": "app-source", "image": "app-image"},
		Params:    map[string]string{"target-namespace": "production"},
	}
}

func waitFinished(t *testing.T, s store.ReadOnlyStore, runID string) api.RunState {
	t.Helper()
	var state api.RunState
	require.Eventually(t, func() bool {
		st, err := s.GetRunState(context.Background(), runID)
		if err != nil {
			return false
		}
		state = st
		return state.Status.Finished()
	}, 5*time.Second, 10*time.Millisecond)
	return state
}

func taskByName(t *testing.T, state api.RunState, name string) api.TaskRunState {
	t.Helper()
	for _, tr := range state.Tasks {
		if tr.Name == name {
			return tr
		}
	}
	t.Fatalf("task %s not in run state", name)
	return api.TaskRunState{}
}

func TestCreateRun(t *testing.T) {
	ctx := context.Background()
	rt := &fakeRuntime{}
	e := newEnv(t, rt, Config{})

	runID, err := e.sched.CreateRun(ctx, e.graph, request())
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	state := waitFinished(t, e.store, runID)
	assert.Equal(t, api.StatusSucceeded, state.Status)
	assert.NotNil(t, state.CreateTime)
	assert.NotNil(t, state.StartTime)
	assert.NotNil(t, state.EndTime)
	for _, tr := range state.Tasks {
		assert.Equal(t, api.StatusSucceeded, tr.Status)
		for _, ss := range tr.Steps {
			assert.Equal(t, api.StatusSucceeded, ss.Status)
		}
	}

	// deploy runs last, after build and test
	names := e.rt.tasks()
	require.Len(t, names, 3)
	assert.Equal(t, "deploy", names[2])

	// steps are handed to the runtime fully resolved
	for _, c := range e.rt.calls {
		switch c.TaskName {
		case "build":
			assert.Equal(t, []string{
				"--context=https://github.com/acme/app",
				"--destination=registry.local/acme/app:v1",
			}, c.Step.Args)
		case "deploy":
			assert.Equal(t, []string{
				"--image=registry.local/acme/app",
				"--namespace=production",
			}, c.Step.Args)
		}
	}

	// step logs are archived
	log, err := e.archiver.Fetch(ctx, runID, "build", 0)
	require.NoError(t, err)
	assert.Equal(t, "ok\n", log)
}

func TestRunIdentity(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, &fakeRuntime{}, Config{})

	first, err := e.sched.CreateRun(ctx, e.graph, request())
	require.NoError(t, err)
	second, err := e.sched.CreateRun(ctx, e.graph, request())
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	waitFinished(t, e.store, first)
	waitFinished(t, e.store, second)

	runs, err := e.store.ListRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestFailurePropagation(t *testing.T) {
	ctx := context.Background()
	rt := &fakeRuntime{fail: map[string]error{"build": errors.New("exit status 1")}}
	e := newEnv(t, rt, Config{})

	runID, err := e.sched.CreateRun(ctx, e.graph, request())
	require.NoError(t, err)
	state := waitFinished(t, e.store, runID)

	assert.Equal(t, api.StatusFailed, state.Status)

	build := taskByName(t, state, "build")
	assert.Equal(t, api.StatusFailed, build.Status)
	assert.Contains(t, build.Message, "exit status 1")

	// deploy is never handed to the runtime and carries a skip message
	deploy := taskByName(t, state, "deploy")
	assert.Equal(t, api.StatusSkipped, deploy.Status)
	assert.Contains(t, deploy.Message, "build")
	assert.NotContains(t, e.rt.tasks(), "deploy")

	// the independent branch still completes
	assert.Equal(t, api.StatusSucceeded, taskByName(t, state, "test").Status)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	gate := make(chan struct{})
	rt := &fakeRuntime{gate: gate}
	e := newEnv(t, rt, Config{})

	runID, err := e.sched.CreateRun(ctx, e.graph, request())
	require.NoError(t, err)

	// wait until build and test are in flight
	require.Eventually(t, func() bool {
		return len(e.rt.tasks()) == 2
	}, 5*time.Second, 10*time.Millisecond)

	// independent branches show up as RUNNING in a single snapshot
	snapshot, err := e.store.GetRunState(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, api.StatusRunning, taskByName(t, snapshot, "build").Status)
	assert.Equal(t, api.StatusRunning, taskByName(t, snapshot, "test").Status)

	require.NoError(t, e.sched.Cancel(ctx, runID))

	state := waitFinished(t, e.store, runID)
	assert.Equal(t, api.StatusCancelled, state.Status)
	assert.Equal(t, api.StatusSkipped, taskByName(t, state, "deploy").Status)

	t.Run("unknown", func(t *testing.T) {
		err := e.sched.Cancel(ctx, "nope")
		require.Error(t, err)
		assert.True(t, errors.As(err, &api.ErrNotFound{}))
	})
}

func TestMaxParallel(t *testing.T) {
	ctx := context.Background()
	rt := &fakeRuntime{}
	e := newEnv(t, rt, Config{MaxParallel: 1})

	runID, err := e.sched.CreateRun(ctx, e.graph, request())
	require.NoError(t, err)
	state := waitFinished(t, e.store, runID)

	assert.Equal(t, api.StatusSucceeded, state.Status)
	assert.Equal(t, 1, e.rt.maxSeen)
}

func TestCreateRunValidation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, &fakeRuntime{}, Config{})

	t.Run("unbound_slot", func(t *testing.T) {
		req := request()
		delete(req.Resources, "image")
		_, err := e.sched.CreateRun(ctx, e.graph, req)
		require.Error(t, err)
		assert.True(t, errors.As(err, &api.ErrUnboundSlot{}))
	})

	t.Run("unknown_resource", func(t *testing.T) {
		req := request()
		req.Resources["image"] = "ghost"
		_, err := e.sched.CreateRun(ctx, e.graph, req)
		require.Error(t, err)
		assert.True(t, errors.As(errors.Cause(err), &api.ErrNotFound{}))
	})

	t.Run("kind_mismatch", func(t *testing.T) {
		req := request()
		req.Resources["image"] = "app-source"
		_, err := e.sched.CreateRun(ctx, e.graph, req)
		require.Error(t, err)
		assert.True(t, errors.As(err, &api.ErrKindMismatch{}))
	})

	t.Run("undeclared_param", func(t *testing.T) {
		req := request()
		req.Params["replicas"] = "3"
		_, err := e.sched.CreateRun(ctx, e.graph, req)
		require.Error(t, err)
		assert.True(t, errors.As(err, &api.ErrUndeclaredReference{}))
	})

	t.Run("undeclared_resource", func(t *testing.T) {
		req := request()
		req.Resources["cache"] = "app-source"
		_, err := e.sched.CreateRun(ctx, e.graph, req)
		require.Error(t, err)
		assert.True(t, errors.As(err, &api.ErrUndeclaredReference{}))
	})

	// A rejected request leaves no trace in the store.
	runs, err := e.store.ListRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
