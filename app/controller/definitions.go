package main

import (
	"net/http"

	"github.com/GregDritschler/tekton-tutorial/pkg/api"
	"github.com/GregDritschler/tekton-tutorial/pkg/util/context"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// httpError maps the error taxonomy to http statuses: unknown names are
// 404, definition errors are 400, anything else is 500.
func httpError(err error) error {
	cause := errors.Cause(err)
	if errors.As(cause, &api.ErrNotFound{}) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	for _, target := range []interface{}{
		&api.ErrDuplicateName{},
		&api.ErrUndeclaredReference{},
		&api.ErrUnboundSlot{},
		&api.ErrMissingParameter{},
		&api.ErrKindMismatch{},
		&api.ErrCyclicDependency{},
		&api.ErrUnresolvedReference{},
	} {
		if errors.As(cause, target) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func (h *handlers) RegisterResource(c echo.Context) error {
	ctx := context.FromContext(c.Request().Context())

	var def api.ResourceDefinition
	if err := c.Bind(&def); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.registry.Register(ctx, def); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusCreated)
}

func (h *handlers) ListResources(c echo.Context) error {
	ctx := context.FromContext(c.Request().Context())
	defs, err := h.registry.List(ctx)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, defs)
}

func (h *handlers) RegisterTask(c echo.Context) error {
	ctx := context.FromContext(c.Request().Context())

	var spec api.TaskSpec
	if err := c.Bind(&spec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.catalog.Register(ctx, spec); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusCreated)
}

func (h *handlers) ListTasks(c echo.Context) error {
	ctx := context.FromContext(c.Request().Context())
	specs, err := h.catalog.List(ctx)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, specs)
}

// RegisterPipeline builds the pipeline graph immediately: an invalid
// pipeline is rejected at registration, not when a run is asked for.
func (h *handlers) RegisterPipeline(c echo.Context) error {
	ctx := context.FromContext(c.Request().Context())

	var spec api.PipelineSpec
	if err := c.Bind(&spec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.graphs[spec.Name]; exists {
		return httpError(api.DuplicateNameError("pipeline " + spec.Name))
	}
	g, err := h.builder.Build(ctx, spec)
	if err != nil {
		return httpError(err)
	}
	h.graphs[spec.Name] = g
	return c.NoContent(http.StatusCreated)
}

func (h *handlers) ListPipelines(c echo.Context) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	specs := make([]api.PipelineSpec, 0, len(h.graphs))
	for _, g := range h.graphs {
		specs = append(specs, g.Spec())
	}
	return c.JSON(http.StatusOK, specs)
}
