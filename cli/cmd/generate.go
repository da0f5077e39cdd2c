package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/hbframe/iox"
	"github.com/justapithecus/hbframe/ipc"
	"github.com/justapithecus/hbframe/runtime"
	"github.com/justapithecus/hbframe/sampler"
)

// GenerateCommand returns the generate command.
// It writes a seeded Poisson collision-time stream as a record file that
// run --input can replay.
func GenerateCommand() *cli.Command {
	def := sampler.DefaultPoissonConfig()
	return &cli.Command{
		Name:      "generate",
		Usage:     "Generate a Poisson collision-time record file",
		ArgsUsage: " ",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output path (- for stdout); a .xz suffix compresses", Value: "-"},
			&cli.StringFlag{Name: "format", Usage: "Record format: csv or ipc (default: from the output extension)"},
			&cli.IntFlag{Name: "count", Usage: "Number of records", Value: 1000},
			&cli.Float64Flag{Name: "rate", Usage: "Mean interaction rate in Hz", Value: def.Rate},
			&cli.Uint64Flag{Name: "seed", Usage: "Generator seed", Value: def.Seed},
			&cli.UintFlag{Name: "filled-every", Usage: "Every Nth bunch crossing is filled", Value: uint(def.FilledEvery)},
			&cli.UintFlag{Name: "first-orbit", Usage: "Orbit the stream starts at"},
			&cli.UintFlag{Name: "min-payload", Usage: "Minimum payload bytes", Value: uint(def.MinPayload)},
			&cli.UintFlag{Name: "max-payload", Usage: "Maximum payload bytes", Value: uint(def.MaxPayload)},
		},
		Action: generateAction,
	}
}

// GenerateResponse is printed to stderr after a file output.
type GenerateResponse struct {
	Path    string  `json:"path"`
	Format  string  `json:"format"`
	Records int     `json:"records"`
	Rate    float64 `json:"rate"`
	Seed    uint64  `json:"seed"`
}

func generateAction(c *cli.Context) error {
	cfg := sampler.DefaultPoissonConfig()
	cfg.Rate = c.Float64("rate")
	cfg.Seed = c.Uint64("seed")
	cfg.FilledEvery = uint16(c.Uint("filled-every"))
	cfg.FirstOrbit = uint32(c.Uint("first-orbit"))
	cfg.MinPayload = uint32(c.Uint("min-payload"))
	cfg.MaxPayload = uint32(c.Uint("max-payload"))
	if err := cfg.Validate(); err != nil {
		return cli.Exit(err.Error(), exitInputError)
	}
	count := c.Int("count")
	if count < 0 {
		return cli.Exit(fmt.Sprintf("--count must be >= 0, got %d", count), exitInputError)
	}

	out := c.String("output")
	format := c.String("format")
	if format == "" {
		format = runtime.FormatCSV
		if out != "-" {
			format = runtime.DetectFormat(out)
		}
	}
	if format != runtime.FormatCSV && format != runtime.FormatIPC {
		return cli.Exit(fmt.Sprintf("invalid --format %q (must be csv or ipc)", format), exitInputError)
	}

	gen, err := sampler.NewPoisson(cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitInputError)
	}

	if out == "-" {
		return writeRecords(c.App.Writer, format, gen, count)
	}

	w, err := iox.Create(out, iox.DetectCompression(out))
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot create %s: %v", out, err), exitSinkFailure)
	}
	if err := writeRecords(w, format, gen, count); err != nil {
		iox.DiscardClose(w)
		return cli.Exit(fmt.Sprintf("write %s: %v", out, err), exitSinkFailure)
	}
	if err := w.Close(); err != nil {
		return cli.Exit(fmt.Sprintf("close %s: %v", out, err), exitSinkFailure)
	}

	enc := json.NewEncoder(os.Stderr)
	enc.SetIndent("", "  ")
	_ = enc.Encode(GenerateResponse{
		Path:    out,
		Format:  format,
		Records: count,
		Rate:    cfg.Rate,
		Seed:    cfg.Seed,
	})
	return nil
}

func writeRecords(w io.Writer, format string, gen *sampler.Poisson, count int) error {
	if format == runtime.FormatIPC {
		_, err := ipc.WriteRecords(w, gen.Records(count))
		return err
	}
	return sampler.WriteCSV(w, gen.Records(count))
}
