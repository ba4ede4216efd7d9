package main

import (
	"net/http"
	"strconv"

	"github.com/GregDritschler/tekton-tutorial/pkg/api"
	"github.com/GregDritschler/tekton-tutorial/pkg/client"
	"github.com/GregDritschler/tekton-tutorial/pkg/util/context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// CreateRun accepts a run request. The run identifier is returned
// immediately; execution is asynchronous and observed through RunState.
func (h *handlers) CreateRun(c echo.Context) error {
	ctx := context.FromContext(c.Request().Context())
	ctx = context.WithCorrelationID(ctx, uuid.New().String())

	var req api.RunRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	h.mu.RLock()
	g, exists := h.graphs[req.Pipeline]
	h.mu.RUnlock()
	if !exists {
		return httpError(api.NotFoundError("pipeline " + req.Pipeline))
	}

	runID, err := h.sc.CreateRun(ctx, g, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusAccepted, client.CreateRunResponse{
		RunID: runID,
	})
}

func (h *handlers) ListRuns(c echo.Context) error {
	ctx := context.FromContext(c.Request().Context())
	runs, err := h.store.ListRuns(ctx)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, runs)
}

func (h *handlers) RunState(c echo.Context) error {
	ctx := context.FromContext(c.Request().Context())

	runID := c.Param(client.RunIDParam)
	state, err := h.store.GetRunState(ctx, runID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, state)
}

func (h *handlers) TaskState(c echo.Context) error {
	ctx := context.FromContext(c.Request().Context())

	runID := c.Param(client.RunIDParam)
	task := c.Param(client.TaskNameParam)
	state, err := h.store.GetTaskState(ctx, runID, task)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, state)
}

func (h *handlers) StepLog(c echo.Context) error {
	ctx := context.FromContext(c.Request().Context())

	runID := c.Param(client.RunIDParam)
	task := c.Param(client.TaskNameParam)
	step, err := strconv.Atoi(c.Param(client.StepIDParam))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "step index must be an integer")
	}
	log, err := h.archiver.Fetch(ctx, runID, task, step)
	if err != nil {
		return httpError(err)
	}
	return c.String(http.StatusOK, log)
}

func (h *handlers) CancelRun(c echo.Context) error {
	ctx := context.FromContext(c.Request().Context())

	runID := c.Param(client.RunIDParam)
	if err := h.sc.Cancel(ctx, runID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusAccepted)
}
