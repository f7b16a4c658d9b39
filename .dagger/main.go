// Docchat CI
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
package main

import (
	"context"

	"dagger/docchat/internal/dagger"
)

// Docchat is the CI module for the docchat server and CLI
type Docchat struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Docchat CI module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".docchat", "build", "tmp"]
	source *dagger.Directory,
) *Docchat {
	return &Docchat{
		Source: source,
	}
}

// goContainer returns a Debian Bookworm-based Go container for the given
// platform with gcc and CGO enabled, since the SQLite drivers and sqlite-vec
// are cgo packages. An empty platform uses the engine's own.
func (d *Docchat) goContainer(platform dagger.Platform) *dagger.Container {
	return dag.Container(dagger.ContainerOpts{Platform: platform}).
		From("golang:1.25-bookworm").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "gcc", "libsqlite3-dev"}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build-"+string(platform))).
		WithWorkdir("/src").
		WithDirectory("/src", d.Source)
}

// Test runs the docchat unit tests via "go test"
func (d *Docchat) Test(ctx context.Context) (string, error) {
	return d.goContainer("").
		WithExec([]string{"go", "test", "-race", "./..."}).
		Stdout(ctx)
}
