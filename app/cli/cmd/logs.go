package cmd

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/GregDritschler/tekton-tutorial/app/cli/cmd/client"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// NewLogsCommand returns a new instance of the tutorial command
func NewLogsCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "logs [runID] [task] [step]",
		Short: "print the archived log of one step execution",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			cli, err := client.New()
			if err != nil {
				log.Fatal(err)
			}
			step, err := strconv.Atoi(args[2])
			if err != nil {
				log.Fatal(errors.Errorf("step index %q is not an integer", args[2]))
			}
			out, err := cli.StepLog(context.Background(), args[0], args[1], step)
			if err != nil {
				log.Fatal(err)
			}
			fmt.Print(out)
		},
	}
	return command
}
