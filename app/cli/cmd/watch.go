package cmd

import (
	"context"
	"log"
	"time"

	"github.com/GregDritschler/tekton-tutorial/app/cli/cmd/client"
	"github.com/GregDritschler/tekton-tutorial/app/cli/cmd/common"

	tm "github.com/buger/goterm"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// NewWatchCommand returns a new instance of the tutorial command
func NewWatchCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "watch [runID]",
		Short: "watch a run until it completes",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := watch(context.Background(), args[0]); err != nil {
				log.Fatal(err)
			}
		},
	}
	return command
}

func watch(ctx context.Context, runID string) error {
	cli, err := client.New()
	if err != nil {
		return errors.Wrap(err, "cannot create controller client")
	}
	tm.Clear()
	for {
		state, err := cli.RunState(ctx, runID)
		if err != nil {
			return errors.Wrapf(err, "cannot get state of run %s", runID)
		}
		tm.MoveCursor(1, 1)
		common.PrintRun(tm.Screen, state, common.PrintOptions{})
		tm.Flush()
		if state.Status.Finished() {
			break
		}
		time.Sleep(1 * time.Second)
	}
	return nil
}
