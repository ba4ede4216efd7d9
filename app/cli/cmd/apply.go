package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/GregDritschler/tekton-tutorial/app/cli/cmd/client"
	"github.com/GregDritschler/tekton-tutorial/pkg/api"
	pclient "github.com/GregDritschler/tekton-tutorial/pkg/client"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// document is one YAML document of an apply file: a kind selector and the
// definition itself.
type document struct {
	Kind string    `yaml:"kind"`
	Spec yaml.Node `yaml:"spec"`
}

// NewApplyCommand returns a new instance of the tutorial command
func NewApplyCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "apply [files]",
		Short: "register resources, tasks and pipelines from YAML files",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cli, err := client.New()
			if err != nil {
				log.Fatal(err)
			}
			ctx := context.Background()
			for _, file := range args {
				if err := apply(ctx, cli, file); err != nil {
					log.Fatal(err)
				}
			}
		},
	}
	return command
}

func apply(ctx context.Context, cli pclient.Client, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return errors.Wrapf(err, "cannot open file %s", file)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	for {
		var doc document
		if err := dec.Decode(&doc); err != nil {
			if err == io.EOF {
				return nil
			}
			return errors.Wrapf(err, "cannot decode file %s", file)
		}

		switch strings.ToLower(doc.Kind) {
		case "resource":
			var def api.ResourceDefinition
			if err := doc.Spec.Decode(&def); err != nil {
				return errors.Wrapf(err, "cannot decode resource in file %s", file)
			}
			if err := cli.RegisterResource(ctx, def); err != nil {
				return errors.Wrapf(err, "cannot register resource %s", def.Name)
			}
			fmt.Printf("resource %s registered\n", def.Name)
		case "task":
			var spec api.TaskSpec
			if err := doc.Spec.Decode(&spec); err != nil {
				return errors.Wrapf(err, "cannot decode task in file %s", file)
			}
			if err := cli.RegisterTask(ctx, spec); err != nil {
				return errors.Wrapf(err, "cannot register task %s", spec.Name)
			}
			fmt.Printf("task %s registered\n", spec.Name)
		case "pipeline":
			var spec api.PipelineSpec
			if err := doc.Spec.Decode(&spec); err != nil {
				return errors.Wrapf(err, "cannot decode pipeline in file %s", file)
			}
			if err := cli.RegisterPipeline(ctx, spec); err != nil {
				return errors.Wrapf(err, "cannot register pipeline %s", spec.Name)
			}
			fmt.Printf("pipeline %s registered\n", spec.Name)
		default:
			return errors.Errorf("unknown kind %q in file %s", doc.Kind, file)
		}
	}
}
