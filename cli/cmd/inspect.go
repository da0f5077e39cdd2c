package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/hbframe/cli/reader"
	"github.com/justapithecus/hbframe/cli/render"
	"github.com/justapithecus/hbframe/grid"
)

// InspectCommand returns the inspect command with subcommands.
// Inspect decodes header files back into frames.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Decode and lay out header files",
		Subcommands: []*cli.Command{
			inspectFileCommand(),
		},
	}
}

func inspectFileCommand() *cli.Command {
	return &cli.Command{
		Name:      "file",
		Usage:     "Inspect raw or ipc header files (globs like out/**/*.raw.xz are expanded)",
		ArgsUsage: "<path-or-glob>...",
		Flags: append(append(TUIReadOnlyFlags(), gridFlags()...),
			&cli.StringFlag{
				Name:  "input-format",
				Usage: "Header file format: raw or ipc (default: from extension)",
			},
			&cli.BoolFlag{
				Name:  "totals",
				Usage: "Omit per-header rows",
			},
		),
		Action: inspectFileAction,
	}
}

func inspectFileAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("at least one path required", 1)
	}

	format := c.String("input-format")
	switch format {
	case "", reader.FormatRaw, reader.FormatIPC:
	default:
		return cli.Exit(fmt.Sprintf("invalid --input-format %q (must be raw or ipc)", format), 1)
	}

	gc := grid.DefaultConfig()
	applyGridFlags(c, &gc)
	g, err := grid.New(gc)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	paths, err := reader.ExpandPaths(c.Args().Slice())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	files := make([]*reader.InspectFileResponse, 0, len(paths))
	for _, path := range paths {
		resp, err := reader.Inspect(g, path, format)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		if c.Bool("totals") {
			resp.Headers = nil
		}
		files = append(files, resp)
	}

	r, err := render.NewRendererWithDefault(c, render.FormatText)
	if err != nil {
		return err
	}

	// Handle TUI mode
	if c.Bool("tui") {
		return r.RenderTUI("inspect_file", files)
	}

	if len(files) == 1 {
		return r.Render(files[0])
	}
	return r.Render(files)
}
