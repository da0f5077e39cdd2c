// Package cmd provides CLI commands for the hbframe binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml, text.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml, text",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// PathFlag narrows the output with a JSONPath expression.
	PathFlag = &cli.StringFlag{
		Name:  "path",
		Usage: "JSONPath expression selecting part of the output (e.g. $.links[*].summary.headers)",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for select read-only commands (inspect, stats).
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (inspect, stats only)",
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		PathFlag,
		TUIFlag,
	}
}

// TUIReadOnlyFlags returns flags for commands that support TUI mode.
// This is an alias for ReadOnlyFlags, kept for documentation clarity.
func TUIReadOnlyFlags() []cli.Flag {
	return ReadOnlyFlags()
}

// gridFlags place headers and records on a non-default clock grid.
func gridFlags() []cli.Flag {
	return []cli.Flag{
		&cli.UintFlag{Name: "first-orbit", Usage: "Epoch orbit of frame 0"},
		&cli.UintFlag{Name: "orbits-per-hbf", Usage: "Heartbeat period in orbits"},
		&cli.UintFlag{Name: "hbf-per-tf", Usage: "Heartbeat frames per time frame"},
	}
}
