package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/hbframe/cli/render"
	"github.com/justapithecus/hbframe/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version       string `json:"version"`
	Commit        string `json:"commit"`
	HeaderVersion int    `json:"header_version"`
}

// VersionCommand returns the version command.
// The CLI, the ipc stream and the stored records share one version.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  ReadOnlyFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}

		// TUI not supported for version command
		if c.Bool("tui") {
			return cli.Exit("--tui is not supported for version command", 1)
		}

		return r.Render(VersionResponse{
			Version:       types.Version,
			Commit:        commit,
			HeaderVersion: types.HeaderVersion,
		})
	}
}
