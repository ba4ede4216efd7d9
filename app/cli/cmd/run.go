package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/GregDritschler/tekton-tutorial/app/cli/cmd/client"
	"github.com/GregDritschler/tekton-tutorial/pkg/api"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type runOpts struct {
	resources      []string // -r slot=resource
	params         []string // -p name=value
	serviceAccount string   // --service-account
	watch          bool     // --watch
}

// NewRunCommand returns a new instance of the tutorial command
func NewRunCommand() *cobra.Command {
	var opts runOpts
	command := &cobra.Command{
		Use:   "run [pipeline]",
		Short: "ask for one execution of a pipeline",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cli, err := client.New()
			if err != nil {
				log.Fatal(err)
			}

			req := api.RunRequest{
				Pipeline:       args[0],
				Resources:      make(map[string]string),
				Params:         make(map[string]string),
				ServiceAccount: opts.serviceAccount,
			}
			for _, r := range opts.resources {
				slot, name, err := splitPair(r)
				if err != nil {
					log.Fatal(errors.Wrap(err, "invalid --resource flag"))
				}
				req.Resources[slot] = name
			}
			for _, p := range opts.params {
				name, value, err := splitPair(p)
				if err != nil {
					log.Fatal(errors.Wrap(err, "invalid --param flag"))
				}
				req.Params[name] = value
			}

			ctx := context.Background()
			runID, err := cli.CreateRun(ctx, req)
			if err != nil {
				log.Fatal(err)
			}

			if opts.watch {
				if err := watch(ctx, runID); err != nil {
					log.Fatal(err)
				}
			} else {
				fmt.Printf("Run created with ID %s\n", runID)
			}
		},
	}
	command.Flags().StringArrayVarP(&opts.resources, "resource", "r", nil, "bind a pipeline resource slot, as slot=resource")
	command.Flags().StringArrayVarP(&opts.params, "param", "p", nil, "set a pipeline parameter, as name=value")
	command.Flags().StringVar(&opts.serviceAccount, "service-account", "", "execution identity token handed to the step runtime")
	command.Flags().BoolVarP(&opts.watch, "watch", "w", false, "watch the run until it completes")

	return command
}

func splitPair(s string) (string, string, error) {
	parts := strings.SplitN(s, "=", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", "", errors.Errorf("%q is not of form key=value", s)
	}
	return parts[0], parts[1], nil
}
