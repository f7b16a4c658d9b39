package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/docchat/internal/dagger"
)

// Build and return a directory of docchat binaries, one per linux arch.
// Each arch builds natively in its own platform container because cgo
// does not cross-compile without a target toolchain.
func (d *Docchat) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	outputs := dag.Directory()

	for _, goarch := range []string{"amd64", "arm64"} {
		path := fmt.Sprintf("linux/%s/", goarch)

		build := d.goContainer(dagger.Platform("linux/"+goarch)).
			WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/docchat"})

		outputs = outputs.WithDirectory(path, build.Directory(path))
	}

	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (d *Docchat) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	buildtime := time.Now().UTC().Format(time.RFC3339)

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/papercomputeco/docchat/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/papercomputeco/docchat/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/papercomputeco/docchat/pkg/utils.Buildtime=%s'", buildtime),
	}

	return d.Build(ctx, strings.Join(ldflags, " "))
}
