// The worker binary consumes step submissions from the broker and
// executes them as local commands, streaming output lines to the logger
// and reporting the captured log back with the SUCCESS event.
package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/GregDritschler/tekton-tutorial/pkg/broker/events"
	"github.com/GregDritschler/tekton-tutorial/pkg/util/context"
	"github.com/GregDritschler/tekton-tutorial/pkg/worker"

	"github.com/mitchellh/mapstructure"
)

func main() {
	worker.Start(step)
}

func step(ctx context.Context, req interface{}) (interface{}, error) {
	var r worker.StepPayload
	err := mapstructure.Decode(req, &r)
	if err != nil {
		return nil, err
	}
	if r.Command == "" {
		return nil, errors.New("step has no command")
	}

	cmd := exec.CommandContext(ctx, r.Command, r.Args...)
	cmd.Env = os.Environ()
	for k, v := range r.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	ctx.Logger().Infof("starting command '%s'", cmd.String())

	// Get stdout and stderr readers
	stdoutIn, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "cannot read stdout")
	}
	stderrIn, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.Wrap(err, "cannot read stderr")
	}

	// Start command
	err = cmd.Start()
	if err != nil {
		return nil, errors.Wrap(err, "cannot start command")
	}

	// cmd.Wait() should be called only after we finish reading
	// from stdoutIn and stderrIn.
	// wg ensures that we finish
	var captured bytes.Buffer
	var mu sync.Mutex
	var errStdout, errStderr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		errStdout = log(ctx, stdoutIn, logrus.InfoLevel, &captured, &mu)
		wg.Done()
	}()
	errStderr = log(ctx, stderrIn, logrus.ErrorLevel, &captured, &mu)
	wg.Wait()

	err = cmd.Wait()
	if err != nil {
		return nil, errors.Wrap(err, "command failed")
	}
	if errStdout != nil || errStderr != nil {
		return nil, errors.New("cannot capture stdout or stderr")
	}

	return events.SuccessEventData{Log: captured.String()}, nil
}

func log(ctx context.Context, r io.ReadCloser, level logrus.Level, captured *bytes.Buffer, mu *sync.Mutex) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		ctx.Logger().Log(level, line)
		mu.Lock()
		captured.WriteString(line + "\n")
		mu.Unlock()
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return nil
}
