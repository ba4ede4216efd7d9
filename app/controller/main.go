package main

import (
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/GregDritschler/tekton-tutorial/pkg/catalog"
	"github.com/GregDritschler/tekton-tutorial/pkg/client"
	"github.com/GregDritschler/tekton-tutorial/pkg/graph"
	"github.com/GregDritschler/tekton-tutorial/pkg/logs"
	"github.com/GregDritschler/tekton-tutorial/pkg/registry"
	"github.com/GregDritschler/tekton-tutorial/pkg/runtime"
	"github.com/GregDritschler/tekton-tutorial/pkg/scheduler"
	"github.com/GregDritschler/tekton-tutorial/pkg/store"
	"github.com/GregDritschler/tekton-tutorial/pkg/util/context"

	"github.com/caarlos0/env/v6"
	"github.com/labstack/echo/v4"
	"github.com/neko-neko/echo-logrus/v2/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	StoreType   string `env:"STORE_TYPE" envDefault:"inmemory"`
	PostgresURI string `env:"STORE_POSTGRES_URI"`
	LogsType    string `env:"LOGS_TYPE" envDefault:"inmemory"`
	MaxParallel int    `env:"SCHEDULER_MAX_PARALLEL"`
}

func main() {
	// Create context, echo object and set logger
	e := echo.New()
	ctx := context.Background()
	l := log.MyLogger{Logger: ctx.Logger().Logger}
	e.Logger = &l

	var conf config
	if err := env.Parse(&conf); err != nil {
		e.Logger.Fatal(errors.Wrap(err, "failed to parse configuration"))
		os.Exit(1)
	}

	s, err := newStore(ctx, conf)
	if err != nil {
		e.Logger.Fatal(errors.Wrap(err, "failed to instantiate store"))
		os.Exit(1)
	}

	rt, err := runtime.NewFromEnv(ctx)
	if err != nil {
		e.Logger.Fatal(errors.Wrap(err, "failed to instantiate runtime"))
		os.Exit(1)
	}

	archiver, err := newArchiver(ctx, conf)
	if err != nil {
		e.Logger.Fatal(errors.Wrap(err, "failed to instantiate log archiver"))
		os.Exit(1)
	}

	reg := registry.NewInMemory()
	cat := catalog.NewInMemory()
	sc := scheduler.New(rt, reg, s, archiver, scheduler.Config{MaxParallel: conf.MaxParallel})

	// Setup routes
	h := &handlers{
		registry: reg,
		catalog:  cat,
		builder:  graph.NewBuilder(cat),
		sc:       sc,
		store:    s,
		archiver: archiver,
		graphs:   make(map[string]*graph.ResolvedGraph),
	}
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "tutorial pipeline controller")
	})
	e.Add(client.RegisterResourceMethod, client.RegisterResourcePath, h.RegisterResource)
	e.Add(client.ListResourcesMethod, client.ListResourcesPath, h.ListResources)
	e.Add(client.RegisterTaskMethod, client.RegisterTaskPath, h.RegisterTask)
	e.Add(client.ListTasksMethod, client.ListTasksPath, h.ListTasks)
	e.Add(client.RegisterPipelineMethod, client.RegisterPipelinePath, h.RegisterPipeline)
	e.Add(client.ListPipelinesMethod, client.ListPipelinesPath, h.ListPipelines)
	e.Add(client.CreateRunMethod, client.CreateRunPath, h.CreateRun)
	e.Add(client.ListRunsMethod, client.ListRunsPath, h.ListRuns)
	e.Add(client.RunStateMethod, client.RunStatePath, h.RunState)
	e.Add(client.TaskStateMethod, client.TaskStatePath, h.TaskState)
	e.Add(client.StepLogMethod, client.StepLogPath, h.StepLog)
	e.Add(client.CancelRunMethod, client.CancelRunPath, h.CancelRun)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.HideBanner = true
	e.HidePort = true

	e.Logger.Infof("http server started on 127.0.0.1:%s", conf.Port)
	e.Logger.Fatal(e.Start(fmt.Sprintf(":%s", conf.Port)))
}

func newStore(ctx context.Context, conf config) (store.Store, error) {
	switch conf.StoreType {
	case "inmemory":
		return store.NewInMemoryStore()
	case "postgres":
		return store.NewPostgresStore(ctx, conf.PostgresURI)
	default:
		return nil, errors.Errorf("unknown store type %s", conf.StoreType)
	}
}

func newArchiver(ctx context.Context, conf config) (logs.Archiver, error) {
	switch conf.LogsType {
	case "inmemory":
		return logs.NewInMemory(), nil
	case "minio":
		var mconf logs.MinioConfig
		if err := env.Parse(&mconf); err != nil {
			return nil, errors.Wrap(err, "cannot parse minio configuration")
		}
		return logs.NewMinio(ctx, mconf)
	default:
		return nil, errors.Errorf("unknown logs type %s", conf.LogsType)
	}
}

type handlers struct {
	registry registry.Registry
	catalog  catalog.Catalog
	builder  *graph.Builder
	sc       scheduler.Scheduler
	store    store.Store
	archiver logs.Archiver

	mu     sync.RWMutex
	graphs map[string]*graph.ResolvedGraph
}
