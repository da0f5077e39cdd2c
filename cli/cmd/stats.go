package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	lodelibrary "github.com/justapithecus/lode/lode"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/hbframe/cli/reader"
	"github.com/justapithecus/hbframe/cli/render"
	"github.com/justapithecus/hbframe/lode"
	"github.com/justapithecus/hbframe/runtime"
)

// statsQueryTimeout bounds Lode reads of the stats commands.
const statsQueryTimeout = 30 * time.Second

// StatsCommand returns the stats command with subcommands.
// Stats reads what finished runs recorded, from a run report or from Lode.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show recorded session statistics (sessions, metrics)",
		Subcommands: []*cli.Command{
			statsSessionsCommand(),
			statsMetricsCommand(),
		},
	}
}

// statsSourceFlags select where stats are read from.
func statsSourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "report", Usage: "Read a JSON run report written by hbframe run --report"},
		&cli.StringFlag{Name: "storage-dataset", Usage: "Lode dataset ID", Value: lode.DefaultDataset},
		&cli.StringFlag{Name: "storage-backend", Usage: "Storage backend: fs or s3"},
		&cli.StringFlag{Name: "storage-path", Usage: "Storage path (fs: directory, s3: bucket/prefix)"},
		&cli.StringFlag{Name: "storage-region", Usage: "AWS region for S3 backend"},
		&cli.StringFlag{Name: "storage-endpoint", Usage: "Custom S3 endpoint (MinIO, R2)"},
		&cli.BoolFlag{Name: "storage-s3-path-style", Usage: "Force S3 path-style addressing"},
		&cli.StringFlag{Name: "session-id", Usage: "Only this session"},
		&cli.StringFlag{Name: "detector", Usage: "Only this detector"},
		&cli.StringSliceFlag{Name: "link", Usage: "Only these links (repeatable)"},
	}
}

func statsSessionsCommand() *cli.Command {
	return &cli.Command{
		Name:   "sessions",
		Usage:  "Show frame and header counts per link session",
		Flags:  append(TUIReadOnlyFlags(), statsSourceFlags()...),
		Action: statsSessionsAction,
	}
}

func statsSessionsAction(c *cli.Context) error {
	var sessions []reader.SessionStats

	if path := c.String("report"); path != "" {
		report, err := readReportFile(path)
		if err != nil {
			return err
		}
		sessions = filterSessions(reader.SessionsFromReport(report), c.String("session-id"), c.StringSlice("link"))
	} else {
		ds, err := statsDataset(c)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(c.Context, statsQueryTimeout)
		defer cancel()

		for _, f := range statsFilters(c) {
			record, err := lode.QueryLatestSummary(ctx, ds, f)
			if errors.Is(err, lode.ErrNoSummaryFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to read summary from Lode: %w", err)
			}
			s, err := reader.ParseSummaryRecord(record)
			if err != nil {
				return fmt.Errorf("failed to parse summary record: %w", err)
			}
			sessions = append(sessions, *s)
		}
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI("stats_sessions", sessions)
	}

	return r.Render(sessions)
}

func statsMetricsCommand() *cli.Command {
	return &cli.Command{
		Name:   "metrics",
		Usage:  "Show session metrics (input, framing, ingestion, storage)",
		Flags:  append(TUIReadOnlyFlags(), statsSourceFlags()...),
		Action: statsMetricsAction,
	}
}

func statsMetricsAction(c *cli.Context) error {
	var snapshot *reader.MetricsSnapshot

	if path := c.String("report"); path != "" {
		report, err := readReportFile(path)
		if err != nil {
			return err
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		snapshot = reader.MetricsFromReport(report, info.ModTime().UTC().Format(time.RFC3339))
	} else {
		ds, err := statsDataset(c)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(c.Context, statsQueryTimeout)
		defer cancel()

		filters := statsFilters(c)
		if len(filters) > 1 {
			return cli.Exit("metrics shows one session: pass at most one --link", 1)
		}
		record, err := lode.QueryLatestMetrics(ctx, ds, filters[0])
		if err != nil {
			return fmt.Errorf("failed to read metrics from Lode: %w", err)
		}
		snapshot, err = reader.ParseMetricsRecord(record)
		if err != nil {
			return fmt.Errorf("failed to parse metrics record: %w", err)
		}
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI("stats_metrics", snapshot)
	}

	return r.Render(snapshot)
}

func readReportFile(path string) (*runtime.SessionReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("cannot open report: %v", err), 1)
	}
	defer func() { _ = f.Close() }()
	return runtime.ReadReport(f)
}

// statsFilters returns one Lode filter per --link, or a single filter
// without a link.
func statsFilters(c *cli.Context) []lode.Filter {
	base := lode.Filter{
		SessionID: c.String("session-id"),
		Detector:  c.String("detector"),
	}
	links := c.StringSlice("link")
	if len(links) == 0 {
		return []lode.Filter{base}
	}
	out := make([]lode.Filter, 0, len(links))
	for _, l := range links {
		f := base
		f.Link = l
		out = append(out, f)
	}
	return out
}

func filterSessions(in []reader.SessionStats, sessionID string, links []string) []reader.SessionStats {
	if sessionID == "" && len(links) == 0 {
		return in
	}
	want := make(map[string]bool, len(links))
	for _, l := range links {
		want[l] = true
	}
	out := make([]reader.SessionStats, 0, len(in))
	for _, s := range in {
		if sessionID != "" && s.SessionID != sessionID {
			continue
		}
		if len(links) > 0 && !want[s.Link] {
			continue
		}
		out = append(out, s)
	}
	return out
}

// statsDataset opens the Lode dataset named by the storage flags.
func statsDataset(c *cli.Context) (lodelibrary.Dataset, error) {
	backend := c.String("storage-backend")
	path := c.String("storage-path")
	if backend == "" || path == "" {
		return nil, cli.Exit("either --report or both --storage-backend and --storage-path are required", 1)
	}
	ds, err := buildReadDataset(c.Context, storageChoice{
		dataset:      c.String("storage-dataset"),
		backend:      backend,
		path:         path,
		region:       c.String("storage-region"),
		endpoint:     c.String("storage-endpoint"),
		usePathStyle: c.Bool("storage-s3-path-style"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage reader: %w", err)
	}
	return ds, nil
}

// buildReadDataset creates a Lode Dataset for reading.
func buildReadDataset(ctx context.Context, s storageChoice) (lodelibrary.Dataset, error) {
	switch s.backend {
	case "fs":
		return lode.NewReadDatasetFS(s.dataset, s.path)
	case "s3":
		bucket, prefix := lode.ParseS3Path(s.path)
		return lode.NewReadDatasetS3(ctx, s.dataset, lode.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       s.region,
			Endpoint:     s.endpoint,
			UsePathStyle: s.usePathStyle,
		})
	default:
		return nil, fmt.Errorf("unsupported storage-backend: %s (must be fs or s3)", s.backend)
	}
}
