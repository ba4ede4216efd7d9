package main

import (
	"os"

	"github.com/GregDritschler/tekton-tutorial/app/cli/cmd"
)

func main() {
	if err := cmd.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
