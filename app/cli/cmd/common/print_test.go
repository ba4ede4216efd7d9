package common

import (
	"bytes"
	"testing"
	"time"

	"github.com/GregDritschler/tekton-tutorial/pkg/api"
	"github.com/stretchr/testify/assert"
)

func TestPrintRun(t *testing.T) {
	start := time.Date(2023, 4, 12, 10, 0, 0, 0, time.UTC)
	end := start.Add(95 * time.Second)

	state := api.RunState{
		ID:        "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		Pipeline:  "build-test-deploy",
		Status:    api.StatusFailed,
		StartTime: &start,
		EndTime:   &end,
		Tasks: []api.TaskRunState{
			{
				Name:      "build",
				Status:    api.StatusFailed,
				Message:   "exit status 1",
				Steps:     []api.StepState{{Name: "build-and-push", Status: api.StatusFailed}},
				StartTime: &start,
				EndTime:   &end,
			},
			{
				Name:   "deploy",
				Status: api.StatusSkipped,
				Steps:  []api.StepState{{Name: "deploy", Status: api.StatusSkipped}},
			},
		},
	}

	var buf bytes.Buffer
	PrintRun(&buf, state, PrintOptions{})
	out := buf.String()

	assert.Contains(t, out, "build-test-deploy")
	assert.Contains(t, out, "6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "exit status 1")
	assert.Contains(t, out, "1m 35s")
	assert.Contains(t, out, "✖ build")
	assert.Contains(t, out, "○ deploy")
}

func TestPrintRunList(t *testing.T) {
	var buf bytes.Buffer
	PrintRunList(&buf, []api.RunInfo{
		{ID: "run-1", Pipeline: "build-test-deploy", Status: api.StatusSucceeded},
		{ID: "run-2", Pipeline: "build-test-deploy", Status: api.StatusRunning},
	})
	out := buf.String()

	assert.Contains(t, out, "RUN")
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "SUCCEEDED")
	assert.Contains(t, out, "● RUNNING")
}
