// Package main provides the entry point for the pipelink CLI tool.
package main

import (
	"context"
	"os"

	"github.com/crestline/pipelink/cmd/pipelink/app"
)

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	application := app.New(version, commit, date)

	// Cancel the context on SIGINT/SIGTERM so the run stops cleanly
	// between submissions.
	ctx, cancel := app.ContextWithSignals(context.Background())
	defer cancel()

	if err := application.Execute(ctx, os.Args[1:]); err != nil {
		app.ExitOnError(err)
	}
}
