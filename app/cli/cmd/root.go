package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCommand returns a new instance of the tutorial command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tutorial",
		Short: "tutorial is the command line interface to the pipeline controller",
		Run: func(cmd *cobra.Command, args []string) {

		},
	}

	rootCmd.AddCommand(NewApplyCommand())
	rootCmd.AddCommand(NewRunCommand())
	rootCmd.AddCommand(NewGetCommand())
	rootCmd.AddCommand(NewWatchCommand())
	rootCmd.AddCommand(NewCancelCommand())
	rootCmd.AddCommand(NewLogsCommand())
	return rootCmd
}
