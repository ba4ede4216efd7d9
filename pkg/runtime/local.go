package runtime

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"

	"github.com/GregDritschler/tekton-tutorial/pkg/util/context"

	"github.com/pkg/errors"
)

// NewLocal returns a Runtime executing steps as local processes. The step
// image is ignored; command and args are run as-is on the host. Meant for
// development and tests.
func NewLocal() Runtime {
	return local{}
}

type local struct{}

func (local) RunStep(ctx context.Context, req StepRequest) (string, error) {
	ctx.Logger().Tracef("executing step %s locally", req.Step.Name)

	cmd := exec.CommandContext(ctx, req.Step.Command, req.Step.Args...)
	cmd.Env = os.Environ()
	for k, v := range req.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	if req.ServiceAccount != "" {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", EnvServiceAccount, req.ServiceAccount))
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return out.String(), errors.Wrapf(err, "step %s failed", req.Step.Name)
	}
	return out.String(), nil
}

func (local) Close() error {
	return nil
}
