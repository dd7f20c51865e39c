// Chatstream CI/CD
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
package main

import (
	"context"

	"dagger/chatstream/internal/dagger"
)

// Chatstream is the main module for the chatstream CI/CD pipeline
type Chatstream struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Chatstream CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", ".devenv", ".chatstream", "build", "tmp"]
	source *dagger.Directory,
) *Chatstream {
	return &Chatstream{
		Source: source,
	}
}

// goContainer returns a Debian Bookworm-based Go container with the project
// source mounted and module and build caches attached.
//
// It is the shared foundation for tests, builds, and linting.
func (c *Chatstream) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-bookworm").
		WithEnvVariable("CGO_ENABLED", "1").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", c.Source)
}

// Test runs the chatstream unit tests via "go test" with the race detector
func (c *Chatstream) Test(ctx context.Context) (string, error) {
	return c.goContainer().
		WithExec([]string{"go", "test", "-race", "-v", "./..."}).
		Stdout(ctx)
}
