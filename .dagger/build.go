package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/chatstream/internal/dagger"
)

const versionPkg = "github.com/papercomputeco/chatstream/pkg/utils"

// platforms chatstream ships binaries for, as GOOS/GOARCH.
var platforms = []string{
	"linux/amd64",
	"linux/arm64",
	"darwin/amd64",
	"darwin/arm64",
}

// Build cross-compiles the chatstream CLI into <goos>/<goarch>/chatstream.
func (c *Chatstream) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	base := dag.Container().
		From("golang:1.25-alpine").
		WithEnvVariable("CGO_ENABLED", "0").
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithDirectory("/src", c.Source).
		WithWorkdir("/src")

	out := dag.Directory()
	for _, p := range platforms {
		goos, goarch, _ := strings.Cut(p, "/")
		dir := p + "/"
		built := base.
			WithEnvVariable("GOOS", goos).
			WithEnvVariable("GOARCH", goarch).
			WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", dir, "./cli/chatstream"})
		out = out.WithDirectory(dir, built.Directory(dir))
	}
	return out
}

// BuildRelease is Build with version, commit and build time stamped into
// pkg/utils, where "chatstream version" reads them.
func (c *Chatstream) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	stamp := func(name, value string) string {
		return fmt.Sprintf("-X '%s.%s=%s'", versionPkg, name, value)
	}
	ldflags := []string{
		"-s", "-w",
		stamp("Version", version),
		stamp("Sha", commit),
		stamp("Buildtime", time.Now().UTC().Format(time.RFC3339)),
	}
	return c.Build(ctx, strings.Join(ldflags, " "))
}
