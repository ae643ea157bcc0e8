// lettarag CI/CD
//
// Package main provides reproducible builds, tests and releases for lettarag,
// locally and in GitHub actions.
package main

import (
	"context"

	"dagger/lettarag/internal/dagger"
)

// Lettarag is the main module for the lettarag CI/CD pipeline
type Lettarag struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new lettarag CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", "build", "tmp", "data", "storage", ".lettarag"]
	source *dagger.Directory,
) *Lettarag {
	return &Lettarag{
		Source: source,
	}
}

// goContainer returns a Debian Bookworm-based Go container with CGO enabled
// for the sqlite vector index, and the project source mounted.
func (l *Lettarag) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-bookworm").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "gcc", "libsqlite3-dev"}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", l.Source)
}

// Test runs the unit tests with the race detector. The synchronizer and
// watcher are concurrent, so races are treated as failures.
//
// +check
func (l *Lettarag) Test(ctx context.Context) (string, error) {
	return l.goContainer().
		WithExec([]string{"go", "test", "-race", "./..."}).
		Stdout(ctx)
}

// Vet runs "go vet" over every package.
//
// +check
func (l *Lettarag) Vet(ctx context.Context) (string, error) {
	return l.goContainer().
		WithExec([]string{"go", "vet", "./..."}).
		Stdout(ctx)
}
