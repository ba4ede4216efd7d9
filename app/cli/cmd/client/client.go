package client

import (
	"os"

	"github.com/GregDritschler/tekton-tutorial/pkg/client"
)

const envControllerURI = "CONTROLLER_URI"

// New returns a new controller client
func New() (client.Client, error) {
	uri := os.Getenv(envControllerURI)
	if uri == "" {
		uri = "http://127.0.0.1:8080"
	}
	return client.NewClient(uri)
}
