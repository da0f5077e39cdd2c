// Package main provides hbframe-filter, a single-link framing filter for
// pipelines.
//
// It reads interaction records from stdin and writes the synthesized
// header stream, terminated by a summary frame, to stdout.
//
// Usage:
//
//	hbframe generate --format ipc | hbframe-filter [options] > link.ipc
//
// Exit codes:
//   - 0: success
//   - 1: input error or cancelled
//   - 2: sink failure
//   - 3: invariant failure
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/hbframe/frames"
	"github.com/justapithecus/hbframe/ipc"
	"github.com/justapithecus/hbframe/log"
	"github.com/justapithecus/hbframe/policy"
	"github.com/justapithecus/hbframe/runtime"
	"github.com/justapithecus/hbframe/sampler"
	"github.com/justapithecus/hbframe/session"
	"github.com/justapithecus/hbframe/types"
)

// policyChoice holds parsed policy configuration from CLI flags.
type policyChoice struct {
	name       string
	maxHeaders int
	maxBytes   int64
}

func main() {
	app := &cli.App{
		Name:           "hbframe-filter",
		Usage:          "Frame one link: records on stdin, header stream on stdout",
		Version:        types.Version,
		Flags:          flags(),
		Action:         filterAction,
		ExitErrHandler: exitErrHandler,
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(runtime.ExitCodeInputError)
	}
}

// exitErrHandler handles errors from the CLI, respecting cli.ExitCoder.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(runtime.ExitCodeInputError)
}

func flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "input-format", Usage: "Record format on stdin: csv or ipc", Value: runtime.FormatIPC},
		&cli.StringFlag{Name: "detector", Usage: "Detector name stamped into the summary"},
		&cli.StringFlag{Name: "link", Usage: "Link name", Value: "l0"},
		&cli.UintFlag{Name: "fee-id", Usage: "Front-end ID stamped into headers"},
		&cli.UintFlag{Name: "first-orbit", Usage: "Orbit of the clock epoch"},
		&cli.UintFlag{Name: "orbits-per-hbf", Usage: "Orbits per heartbeat frame", Value: 1},
		&cli.UintFlag{Name: "hbf-per-tf", Usage: "Heartbeat frames per time frame", Value: 256},
		&cli.StringFlag{Name: "payload-policy", Usage: "Payload of a frame: sum or max", Value: string(frames.PayloadSum)},
		&cli.StringFlag{Name: "policy", Usage: "Ingestion policy: strict or buffered", Value: "strict"},
		&cli.IntFlag{Name: "buffer-headers", Usage: "Max buffered headers (buffered policy)"},
		&cli.Int64Flag{Name: "buffer-bytes", Usage: "Max buffered page bytes (buffered policy)"},
		&cli.StringFlag{Name: "log-level", Usage: "Log level on stderr", Value: "warn"},
		&cli.BoolFlag{Name: "quiet", Usage: "Suppress the summary line on stderr"},
	}
}

func filterAction(c *cli.Context) error {
	choice := policyChoice{
		name:       c.String("policy"),
		maxHeaders: c.Int("buffer-headers"),
		maxBytes:   c.Int64("buffer-bytes"),
	}
	if err := validatePolicyConfig(choice); err != nil {
		return cli.Exit(fmt.Sprintf("invalid policy config: %v", err), runtime.ExitCodeInputError)
	}

	cfg := session.DefaultConfig()
	cfg.Grid.FirstOrbit = uint32(c.Uint("first-orbit"))
	cfg.Grid.OrbitsPerHBF = uint32(c.Uint("orbits-per-hbf"))
	cfg.Grid.HBFPerTF = uint32(c.Uint("hbf-per-tf"))
	cfg.Header.Identity.FeeID = uint16(c.Uint("fee-id"))
	cfg.PayloadPolicy = frames.PayloadPolicy(c.String("payload-policy"))
	if err := cfg.Validate(); err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInputError)
	}

	meta := types.SessionMeta{
		SessionID: uuid.NewString(),
		Detector:  c.String("detector"),
		Link:      c.String("link"),
		FeeID:     cfg.Header.Identity.FeeID,
		StartedAt: time.Now(),
	}
	logger := log.NewLoggerLevel(&meta, c.String("log-level"))
	defer func() { _ = logger.Sync() }()

	sink := ipc.NewSink(os.Stdout)
	pol, err := buildPolicy(choice, sink, logger)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInputError)
	}

	s, err := session.New(cfg, pol, session.WithLogger(logger), session.WithMeta(meta))
	if err != nil {
		_ = pol.Close()
		return cli.Exit(err.Error(), runtime.ExitCodeInputError)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var readErr error
	records, err := readRecords(os.Stdin, c.String("input-format"), logger, &readErr)
	if err != nil {
		_ = pol.Close()
		return cli.Exit(err.Error(), runtime.ExitCodeInputError)
	}

	summary, runErr := session.Run(ctx, s, records)
	if runErr == nil && readErr != nil {
		runErr = fmt.Errorf("%w: %w", runtime.ErrSource, readErr)
	}
	outcome := runtime.DetermineOutcome(runErr)

	// Flush before the summary frame so it terminates the stream.
	if err := pol.Flush(context.Background()); err != nil && outcome.Status == types.OutcomeSuccess {
		outcome = types.SessionOutcome{Status: types.OutcomeSinkFailure, Message: err.Error()}
	}
	if err := sink.WriteSummary(summary, outcome); err != nil && outcome.Status == types.OutcomeSuccess {
		outcome = types.SessionOutcome{Status: types.OutcomeSinkFailure, Message: err.Error()}
	}
	if err := pol.Close(); err != nil && outcome.Status == types.OutcomeSuccess {
		outcome = types.SessionOutcome{Status: types.OutcomeSinkFailure, Message: err.Error()}
	}

	if !c.Bool("quiet") {
		printSummary(c.App.ErrWriter, summary, outcome, pol.Stats())
	}

	return cli.Exit("", runtime.ExitCode(outcome.Status))
}

// validatePolicyConfig validates the policy configuration.
func validatePolicyConfig(choice policyChoice) error {
	switch choice.name {
	case "strict":
		if choice.maxHeaders > 0 || choice.maxBytes > 0 {
			fmt.Fprintf(os.Stderr, "Warning: buffer flags ignored for strict policy\n")
		}
		return nil
	case "buffered":
		if choice.maxHeaders <= 0 && choice.maxBytes <= 0 {
			return fmt.Errorf("buffered policy requires --buffer-headers > 0 or --buffer-bytes > 0")
		}
		return nil
	default:
		return fmt.Errorf("invalid policy: %s (must be strict or buffered)", choice.name)
	}
}

// buildPolicy creates a Policy writing into sink.
func buildPolicy(choice policyChoice, sink policy.Sink, logger *log.Logger) (policy.Policy, error) {
	switch choice.name {
	case "strict":
		return policy.NewStrictPolicy(sink), nil
	case "buffered":
		return policy.NewBufferedPolicy(sink, policy.BufferedConfig{
			MaxBufferHeaders: choice.maxHeaders,
			MaxBufferBytes:   choice.maxBytes,
			Backpressure:     policy.BackpressureBlock,
			Logger:           logger,
		})
	default:
		return nil, fmt.Errorf("unknown policy: %s", choice.name)
	}
}

func readRecords(r io.Reader, format string, logger *log.Logger, errp *error) (iter.Seq[types.InteractionRecord], error) {
	switch format {
	case runtime.FormatCSV:
		return sampler.ReadCSV(r, errp), nil
	case runtime.FormatIPC:
		onSkip := func(err error) {
			logger.Warn("skipped undecodable record frame", map[string]any{"error": err.Error()})
		}
		return sampler.ReadIPC(r, onSkip, errp), nil
	default:
		return nil, fmt.Errorf("invalid --input-format %q (must be csv or ipc)", format)
	}
}

func printSummary(w io.Writer, s types.SessionSummary, outcome types.SessionOutcome, stats policy.Stats) {
	_, _ = fmt.Fprintf(w, "session_id=%s, link=%s, outcome=%s, frames=%d, empty=%d, tf=%d, headers=%d, persisted=%d\n",
		s.SessionID,
		s.Link,
		outcome.Status,
		s.FramesOpened,
		s.EmptyFrames,
		s.TimeFrames,
		s.Headers,
		stats.HeadersPersisted,
	)
	if outcome.Message != "" {
		_, _ = fmt.Fprintf(w, "message=%s\n", outcome.Message)
	}
}
