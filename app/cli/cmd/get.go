package cmd

import (
	"context"
	"log"
	"os"

	"github.com/GregDritschler/tekton-tutorial/app/cli/cmd/client"
	"github.com/GregDritschler/tekton-tutorial/app/cli/cmd/common"

	"github.com/spf13/cobra"
)

// NewGetCommand returns a new instance of the tutorial command
func NewGetCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "get [runID]",
		Short: "show the runs, or the state of one run",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cli, err := client.New()
			if err != nil {
				log.Fatal(err)
			}
			ctx := context.Background()

			if len(args) == 0 {
				runs, err := cli.ListRuns(ctx)
				if err != nil {
					log.Fatal(err)
				}
				common.PrintRunList(os.Stdout, runs)
				return
			}

			state, err := cli.RunState(ctx, args[0])
			if err != nil {
				log.Fatal(err)
			}
			common.PrintRun(os.Stdout, state, common.PrintOptions{})
		},
	}
	return command
}
