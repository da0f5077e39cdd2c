// Package main provides the hbframe CLI entrypoint.
//
// All commands except `run` and `generate` are read-only.
//
// Usage:
//
//	hbframe <command> [subcommand] [options]
//
// Exit codes for `run`:
//   - 0: success
//   - 1: input error or cancelled
//   - 2: sink failure
//   - 3: invariant failure
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/hbframe/cli/cmd"
	"github.com/justapithecus/hbframe/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "hbframe",
		Usage:          "Heartbeat-frame and RDH timing emulator",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.RunCommand(),
			cmd.InspectCommand(),
			cmd.StatsCommand(),
			cmd.GenerateCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled cli.ExitCoder errors.
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes from cli.Exit().
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		if msg := exitMessage(exitCoder); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// exitMessage returns the text worth printing for an exit error.
// cli.Exit("", N).Error() yields "exit status N", which is suppressed.
func exitMessage(e cli.ExitCoder) string {
	msg := e.Error()
	if msg == fmt.Sprintf("exit status %d", e.ExitCode()) {
		return ""
	}
	return msg
}
