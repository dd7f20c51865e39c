package main

import (
	"context"
	"errors"
	"fmt"

	"dagger/chatstream/internal/dagger"
)

// CheckGoModTidy fails when "go mod tidy" would change go.mod or go.sum.
//
// +check
func (c *Chatstream) CheckGoModTidy(ctx context.Context) (string, error) {
	const diff = "cp go.mod /tmp/go.mod && cp go.sum /tmp/go.sum && go mod tidy && " +
		"diff -u /tmp/go.mod go.mod && diff -u /tmp/go.sum go.sum"

	out, err := c.goContainer().WithExec([]string{"sh", "-c", diff}).Stdout(ctx)

	var execErr *dagger.ExecError
	switch {
	case errors.As(err, &execErr):
		return "", fmt.Errorf("go.mod or go.sum are not tidy; run 'go mod tidy':\n\n%s", execErr.Stdout)
	case err != nil:
		return "", err
	}
	return "go.mod and go.sum are tidy" + out, nil
}
