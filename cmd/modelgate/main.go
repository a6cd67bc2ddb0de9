package main

import (
	"context"
	"io"
	"os"
)

// version is stamped at release time via ldflags; default stays dev for local builds.
var version = "0.0.0-dev"

const (
	exitOK              = 0
	exitInternalFailure = 1
	exitVerifyFailed    = 2
	exitGateFailed      = 3
	exitInvalidInput    = 6
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(arguments []string, stdout, stderr io.Writer) int {
	app := newApp(stdout, stderr)
	root := newRootCommand(app)
	if len(arguments) > 1 {
		root.SetArgs(arguments[1:])
	} else {
		root.SetArgs([]string{})
	}
	err := root.ExecuteContext(context.Background())
	return app.finish(err)
}
