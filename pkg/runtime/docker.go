package runtime

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/GregDritschler/tekton-tutorial/pkg/api"
	"github.com/GregDritschler/tekton-tutorial/pkg/util/context"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/pkg/errors"
)

// NewDocker returns a Runtime executing each step in its own container,
// from the step's image.
func NewDocker() (Runtime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create docker client")
	}
	return docker{cli}, nil
}

type docker struct {
	cli *client.Client
}

func (d docker) RunStep(ctx context.Context, req StepRequest) (string, error) {
	ctx.Logger().Tracef("executing step %s in container from image %s", req.Step.Name, req.Step.Image)

	containerEnv := make([]string, 0, len(req.Env)+1)
	for k, v := range req.Env {
		containerEnv = append(containerEnv, fmt.Sprintf("%s=%s", k, v))
	}
	if req.ServiceAccount != "" {
		containerEnv = append(containerEnv, fmt.Sprintf("%s=%s", EnvServiceAccount, req.ServiceAccount))
	}

	cmd := append([]string{req.Step.Command}, req.Step.Args...)
	resp, err := d.cli.ContainerCreate(ctx, &container.Config{
		Image: req.Step.Image,
		Cmd:   cmd,
		Labels: map[string]string{
			api.HeaderRunID:    req.RunID,
			api.HeaderTaskName: req.TaskName,
			api.HeaderStepID:   strconv.Itoa(req.Index),
		},
		Env: containerEnv,
	}, &container.HostConfig{
		NetworkMode: "host",
	}, nil, nil, "")
	if err != nil {
		return "", errors.Wrapf(err, "cannot create container for image %s", req.Step.Image)
	}
	defer d.cli.ContainerRemove(context.Background(), resp.ID, types.ContainerRemoveOptions{Force: true})

	if err := d.cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return "", errors.Wrapf(err, "cannot start container %s", resp.ID)
	}

	statusCh, errCh := d.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	var exitCode int64
	select {
	case err := <-errCh:
		return "", errors.Wrapf(err, "cannot wait for container %s", resp.ID)
	case status := <-statusCh:
		exitCode = status.StatusCode
	case <-ctx.Done():
		return "", ctx.Err()
	}

	log, err := d.logs(ctx, resp.ID)
	if err != nil {
		ctx.Logger().Warnf("cannot read logs of container %s, %s", resp.ID, err)
	}
	if exitCode != 0 {
		return log, errors.Errorf("step %s exited with code %d", req.Step.Name, exitCode)
	}
	return log, nil
}

func (d docker) logs(ctx context.Context, containerID string) (string, error) {
	r, err := d.cli.ContainerLogs(ctx, containerID, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", err
	}
	defer r.Close()
	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, r); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (d docker) Close() error {
	return d.cli.Close()
}
