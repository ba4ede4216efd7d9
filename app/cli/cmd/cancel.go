package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/GregDritschler/tekton-tutorial/app/cli/cmd/client"

	"github.com/spf13/cobra"
)

// NewCancelCommand returns a new instance of the tutorial command
func NewCancelCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "cancel [runID]",
		Short: "cancel a running run",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cli, err := client.New()
			if err != nil {
				log.Fatal(err)
			}
			if err := cli.CancelRun(context.Background(), args[0]); err != nil {
				log.Fatal(err)
			}
			fmt.Printf("Run %s cancelled\n", args[0])
		},
	}
	return command
}
