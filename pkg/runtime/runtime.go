// Package runtime executes resolved steps. Implementations run the step
// locally, in a docker container, or hand it to remote workers through a
// message broker.
package runtime

import (
	"os"
	"strings"

	"github.com/GregDritschler/tekton-tutorial/pkg/api"
	"github.com/GregDritschler/tekton-tutorial/pkg/broker"
	"github.com/GregDritschler/tekton-tutorial/pkg/util/context"

	"github.com/pkg/errors"
)

const (
	envRuntimeType = "RUNTIME_TYPE"

	// EnvServiceAccount is the env variable carrying the execution-identity
	// token into the step process. The token is opaque to the orchestrator.
	EnvServiceAccount = "SERVICE_ACCOUNT"
)

// StepRequest is one step to execute. Command and Args are fully
// resolved, no template marker is left.
type StepRequest struct {
	RunID          string
	TaskName       string
	Index          int
	Step           api.Step
	Env            map[string]string
	ServiceAccount string
}

// Runtime executes steps.
type Runtime interface {
	// RunStep executes the step synchronously and returns its log output.
	// A non-nil error means the step failed; the error text is the failure
	// message reported to the store.
	RunStep(ctx context.Context, req StepRequest) (string, error)

	// Close releases the runtime resources.
	Close() error
}

// NewFromEnv returns the Runtime designated by the RUNTIME_TYPE env
// variable: local (default), docker or broker.
func NewFromEnv(ctx context.Context) (Runtime, error) {
	switch strings.ToLower(os.Getenv(envRuntimeType)) {
	case "", "local":
		return NewLocal(), nil
	case "docker":
		return NewDocker()
	case "broker":
		b, err := broker.NewFromEnv(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "cannot create broker")
		}
		return NewBrokerRuntime(ctx, b, BrokerRuntimeConfig{})
	default:
		return nil, errors.Errorf("unknown runtime type %s", os.Getenv(envRuntimeType))
	}
}
