package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	lodelibrary "github.com/justapithecus/lode/lode"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/hbframe/adapter"
	redisadapter "github.com/justapithecus/hbframe/adapter/redis"
	"github.com/justapithecus/hbframe/adapter/webhook"
	"github.com/justapithecus/hbframe/chart"
	hbconfig "github.com/justapithecus/hbframe/cli/config"
	"github.com/justapithecus/hbframe/frames"
	"github.com/justapithecus/hbframe/grid"
	"github.com/justapithecus/hbframe/iox"
	"github.com/justapithecus/hbframe/lode"
	"github.com/justapithecus/hbframe/policy"
	"github.com/justapithecus/hbframe/rdh"
	"github.com/justapithecus/hbframe/runtime"
	"github.com/justapithecus/hbframe/session"
)

// Exit codes of hbframe run. runtime.ExitCode maps outcomes onto them.
const (
	exitSuccess        = 0
	exitInputError     = 1
	exitSinkFailure    = 2
	exitInvariantError = 3
)

// DefaultLink is used when neither flags nor config name a link.
const DefaultLink = "l0"

// RunCommand returns the run command.
// This is the only command that writes anything.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Frame collision times into heartbeat-frame header pages",
		Flags: append(gridFlags(),
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to an hbframe.yaml config file (flags override it)",
			},
			&cli.StringFlag{
				Name:  "detector",
				Usage: "Detector name used for partitioning and file names",
			},
			&cli.StringSliceFlag{
				Name:  "link",
				Usage: "Link to emulate, name or name:fee_id (repeatable)",
			},
			&cli.IntFlag{
				Name:  "parallel",
				Usage: "Links framed concurrently (0 = all)",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress result output",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error",
				Value: "info",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write a JSON run report to this path",
			},

			&cli.StringFlag{Name: "payload-policy", Usage: "Frame payload policy: sum or max"},

			// Source flags
			&cli.StringFlag{
				Name:  "input",
				Usage: "Read collision times from a csv or ipc file ({link} expands to the link name)",
			},
			&cli.StringFlag{
				Name:  "input-format",
				Usage: "Input format: csv or ipc (default: from extension)",
			},
			&cli.IntFlag{
				Name:  "count",
				Usage: "Generated records per link when no --input is given",
				Value: 1000,
			},
			&cli.Float64Flag{Name: "rate", Usage: "Generator interaction rate in Hz"},
			&cli.Uint64Flag{Name: "seed", Usage: "Generator seed (link i uses seed+i)"},

			// Policy flags
			&cli.StringFlag{
				Name:  "policy",
				Usage: "Ingestion policy: strict, buffered, streaming or noop",
				Value: runtime.PolicyStrict,
			},
			&cli.StringFlag{
				Name:  "backpressure",
				Usage: "What a full buffer or queue does: block or drop",
				Value: string(policy.BackpressureBlock),
			},
			&cli.IntFlag{Name: "buffer-headers", Usage: "Max buffered headers (buffered policy)"},
			&cli.Int64Flag{Name: "buffer-bytes", Usage: "Max buffered page bytes (buffered policy)"},
			&cli.IntFlag{Name: "flush-count", Usage: "Write after N headers (streaming policy)"},
			&cli.DurationFlag{Name: "flush-interval", Usage: "Write every interval (streaming policy)"},
			&cli.IntFlag{Name: "queue-size", Usage: "Queued batches before backpressure (streaming policy)"},

			// Output flags
			&cli.StringFlag{
				Name:  "output",
				Usage: "Header output: raw, ipc, lode or none",
				Value: runtime.OutputRaw,
			},
			&cli.StringFlag{
				Name:  "output-dir",
				Usage: "Directory for raw and ipc output files",
				Value: ".",
			},
			&cli.StringFlag{
				Name:  "compression",
				Usage: "Output compression: none or xz",
				Value: string(iox.CompressionNone),
			},
			&cli.BoolFlag{Name: "digest", Usage: "Record a HighwayHash digest of each raw file"},
			&cli.StringFlag{Name: "chart", Usage: "Write an occupancy chart (HTML) of all links to this path"},

			// Storage flags
			&cli.StringFlag{Name: "storage-dataset", Usage: "Lode dataset ID", Value: lode.DefaultDataset},
			&cli.StringFlag{Name: "storage-backend", Usage: "Lode storage backend: fs, s3 or memory"},
			&cli.StringFlag{Name: "storage-path", Usage: "Storage path (fs: directory, s3: bucket/prefix)"},
			&cli.StringFlag{Name: "storage-region", Usage: "AWS region for S3 backend"},
			&cli.StringFlag{Name: "storage-endpoint", Usage: "Custom S3 endpoint (MinIO, R2)"},
			&cli.BoolFlag{Name: "storage-s3-path-style", Usage: "Force S3 path-style addressing"},
			&cli.BoolFlag{Name: "storage-sidecars", Usage: "Store report.json next to each session"},
			&cli.BoolFlag{Name: "storage-chart", Usage: "Store occupancy.html next to each session (needs --storage-sidecars)"},

			// Adapter flags
			&cli.StringFlag{Name: "adapter", Usage: "Completion event adapter: webhook or redis"},
			&cli.StringFlag{Name: "adapter-url", Usage: "Webhook endpoint or redis URL"},
			&cli.StringFlag{Name: "adapter-channel", Usage: "Redis channel"},
			&cli.BoolFlag{Name: "adapter-per-link", Usage: "Publish on one redis channel per link"},
			&cli.DurationFlag{Name: "adapter-timeout", Usage: "Per-publish timeout", Value: 10 * time.Second},
			&cli.IntFlag{Name: "adapter-retries", Usage: "Publish retries", Value: 3},
			&cli.StringSliceFlag{Name: "adapter-header", Usage: "Webhook header key=value (repeatable)"},
			&cli.StringFlag{Name: "adapter-secret", Usage: "Sign webhook requests with an HS256 bearer token", EnvVars: []string{"HBFRAME_ADAPTER_SECRET"}},
		),
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	sessCfg, err := buildSessionConfig(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitInputError)
	}
	links, err := buildLinks(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitInputError)
	}
	source, err := buildSource(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitInputError)
	}

	polCfg := buildPolicyConfig(c, cfg)
	if err := validatePolicyConfig(polCfg); err != nil {
		return cli.Exit(err.Error(), exitInputError)
	}

	out, err := buildOutputConfig(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitInputError)
	}

	if err := validateStorageChoice(resolveStorage(c, cfg)); err != nil {
		return cli.Exit(err.Error(), exitInputError)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storage, err := buildStorage(ctx, c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitSinkFailure)
	}

	var adapterType string
	if cfg != nil {
		adapterType = cfg.Adapter.Type
	}
	adapterType = resolveString(c, "adapter", adapterType)
	var adp adapter.Adapter
	if adapterType != "" {
		ac, err := parseAdapterConfigWithPrecedence(c, cfg, adapterType)
		if err != nil {
			return cli.Exit(err.Error(), exitInputError)
		}
		adp, err = buildAdapter(ac)
		if err != nil {
			return cli.Exit(err.Error(), exitInputError)
		}
	}

	orchestrator, err := runtime.New(runtime.Config{
		Detector: resolveString(c, "detector", configVal(cfg, func(cfg *hbconfig.Config) string { return cfg.Detector })),
		Links:    links,
		Session:  sessCfg,
		Source:   source,
		Policy:   polCfg,
		Output:   out,
		Storage:  storage,
		Adapter:  adp,
		Parallel: resolveInt(c, "parallel", configVal(cfg, func(cfg *hbconfig.Config) int { return cfg.Parallel })),
		LogLevel: resolveString(c, "log-level", configVal(cfg, func(cfg *hbconfig.Config) string { return cfg.LogLevel })),
	})
	if err != nil {
		if adp != nil {
			_ = adp.Close()
		}
		return cli.Exit(err.Error(), exitInputError)
	}
	defer func() { _ = orchestrator.Close() }()

	// Set up context with signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	res, err := orchestrator.Execute(ctx)
	if err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}

	if !c.Bool("quiet") {
		printRunResult(os.Stdout, res)
	}

	if path := resolveString(c, "report", configVal(cfg, func(cfg *hbconfig.Config) string { return cfg.Report })); path != "" {
		if err := runtime.WriteReport(runtime.BuildReport(res), path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to write report: %v\n", err)
		}
	}
	if path := resolveString(c, "chart", configVal(cfg, func(cfg *hbconfig.Config) string { return cfg.Output.Chart })); path != "" {
		if err := writeChart(path, res); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to write chart: %v\n", err)
		}
	}

	return cli.Exit("", runtime.ExitCode(res.Outcome.Status))
}

// loadConfig reads --config when given. A nil config means flags only.
func loadConfig(c *cli.Context) (*hbconfig.Config, error) {
	path := c.String("config")
	if path == "" {
		return nil, nil
	}
	cfg, err := hbconfig.Load(path)
	if err != nil {
		return nil, cli.Exit(err.Error(), exitInputError)
	}
	return cfg, nil
}

// --- Precedence helpers ---
//
// An explicitly set flag wins, then the config file, then the flag default.

// configVal reads a value from cfg, returning the zero value for a nil cfg.
func configVal[T any](cfg *hbconfig.Config, get func(*hbconfig.Config) T) T {
	if cfg == nil {
		var zero T
		return zero
	}
	return get(cfg)
}

func resolveString(c *cli.Context, name, fromConfig string) string {
	if c.IsSet(name) || fromConfig == "" {
		return c.String(name)
	}
	return fromConfig
}

func resolveInt(c *cli.Context, name string, fromConfig int) int {
	if c.IsSet(name) || fromConfig == 0 {
		return c.Int(name)
	}
	return fromConfig
}

func resolveInt64(c *cli.Context, name string, fromConfig int64) int64 {
	if c.IsSet(name) || fromConfig == 0 {
		return c.Int64(name)
	}
	return fromConfig
}

func resolveBool(c *cli.Context, name string, fromConfig bool) bool {
	if c.IsSet(name) {
		return c.Bool(name)
	}
	return fromConfig || c.Bool(name)
}

func resolveDuration(c *cli.Context, name string, fromConfig time.Duration) time.Duration {
	if c.IsSet(name) || fromConfig == 0 {
		return c.Duration(name)
	}
	return fromConfig
}

// --- Builders ---

func buildSessionConfig(c *cli.Context, cfg *hbconfig.Config) (session.Config, error) {
	sc := session.DefaultConfig()
	if cfg != nil {
		sc = cfg.Session()
	}
	applyGridFlags(c, &sc.Grid)
	if c.IsSet("payload-policy") {
		p, err := frames.ParsePayloadPolicy(c.String("payload-policy"))
		if err != nil {
			return sc, err
		}
		sc.PayloadPolicy = p
	}
	return sc, sc.Validate()
}

// applyGridFlags overrides grid parameters that were set on the command line.
func applyGridFlags(c *cli.Context, g *grid.Config) {
	if c.IsSet("first-orbit") {
		g.FirstOrbit = uint32(c.Uint("first-orbit"))
	}
	if c.IsSet("orbits-per-hbf") {
		g.OrbitsPerHBF = uint32(c.Uint("orbits-per-hbf"))
	}
	if c.IsSet("hbf-per-tf") {
		g.HBFPerTF = uint32(c.Uint("hbf-per-tf"))
	}
}

// buildLinks takes --link flags when given, else the config links, else
// DefaultLink.
func buildLinks(c *cli.Context, cfg *hbconfig.Config) ([]runtime.Link, error) {
	if specs := c.StringSlice("link"); len(specs) > 0 {
		links := make([]runtime.Link, 0, len(specs))
		for _, spec := range specs {
			l, err := parseLinkSpec(spec)
			if err != nil {
				return nil, err
			}
			links = append(links, l)
		}
		return links, nil
	}
	if cfg != nil && len(cfg.Links) > 0 {
		links := make([]runtime.Link, 0, len(cfg.Links))
		for _, l := range cfg.Links {
			links = append(links, runtime.Link{Name: l.Name, Identity: l.Identity})
		}
		return links, nil
	}
	return []runtime.Link{{Name: DefaultLink}}, nil
}

// parseLinkSpec parses "name" or "name:fee_id". fee_id accepts 0x hex.
func parseLinkSpec(spec string) (runtime.Link, error) {
	name, fee, hasFee := strings.Cut(spec, ":")
	if name == "" {
		return runtime.Link{}, fmt.Errorf("invalid --link %q: name must not be empty", spec)
	}
	l := runtime.Link{Name: name}
	if hasFee {
		id, err := strconv.ParseUint(fee, 0, 16)
		if err != nil {
			return runtime.Link{}, fmt.Errorf("invalid --link %q: fee_id must be a 16-bit number", spec)
		}
		l.Identity = rdh.Identity{FeeID: uint16(id)}
	}
	return l, nil
}

// buildSource reads a file when --input (or source.kind: file) is given and
// generates Poisson records otherwise.
func buildSource(c *cli.Context, cfg *hbconfig.Config) (runtime.Source, error) {
	var sc hbconfig.SourceConfig
	if cfg != nil {
		sc = cfg.Source
	} else {
		sc = hbconfig.Default().Source
	}

	path := resolveString(c, "input", sc.Path)
	if path != "" || sc.Kind == "file" {
		if path == "" {
			return nil, fmt.Errorf("source kind file requires a path (--input)")
		}
		format := resolveString(c, "input-format", sc.Format)
		switch format {
		case "", runtime.FormatCSV, runtime.FormatIPC:
		default:
			return nil, fmt.Errorf("invalid --input-format %q (must be csv or ipc)", format)
		}
		return runtime.FileSource{Path: path, Format: format}, nil
	}

	switch sc.Kind {
	case "", "poisson":
	default:
		return nil, fmt.Errorf("unknown source kind %q (must be poisson or file)", sc.Kind)
	}

	pc := sc.Poisson
	if c.IsSet("rate") {
		pc.Rate = c.Float64("rate")
	}
	if c.IsSet("seed") {
		pc.Seed = c.Uint64("seed")
	}
	if err := pc.Validate(); err != nil {
		return nil, err
	}
	count := resolveInt(c, "count", sc.Count)
	if count < 0 {
		return nil, fmt.Errorf("--count must be >= 0, got %d", count)
	}
	return runtime.PoissonSource{Config: pc, Count: count}, nil
}

func buildPolicyConfig(c *cli.Context, cfg *hbconfig.Config) runtime.PolicyConfig {
	var pc hbconfig.PolicyConfig
	if cfg != nil {
		pc = cfg.Policy
	}
	return runtime.PolicyConfig{
		Name:             resolveString(c, "policy", pc.Name),
		Backpressure:     policy.Backpressure(resolveString(c, "backpressure", pc.Backpressure)),
		MaxBufferHeaders: resolveInt(c, "buffer-headers", pc.BufferHeaders),
		MaxBufferBytes:   resolveInt64(c, "buffer-bytes", pc.BufferBytes),
		FlushCount:       resolveInt(c, "flush-count", pc.FlushCount),
		FlushInterval:    resolveDuration(c, "flush-interval", pc.FlushInterval.Duration),
		QueueSize:        resolveInt(c, "queue-size", pc.QueueSize),
	}
}

// validatePolicyConfig rejects unusable combinations with messages that
// name the flag to fix.
func validatePolicyConfig(pc runtime.PolicyConfig) error {
	if _, err := policy.ParseBackpressure(string(pc.Backpressure)); err != nil {
		return fmt.Errorf("invalid --backpressure %q (must be block or drop)", pc.Backpressure)
	}

	switch pc.Name {
	case runtime.PolicyStrict, runtime.PolicyNoop:
		if pc.MaxBufferHeaders > 0 || pc.MaxBufferBytes > 0 || pc.FlushCount > 0 || pc.FlushInterval > 0 {
			fmt.Fprintf(os.Stderr, "Warning: buffer/flush flags ignored for %s policy\n", pc.Name)
		}
		return nil

	case runtime.PolicyBuffered:
		if pc.MaxBufferHeaders < 0 || pc.MaxBufferBytes < 0 {
			return fmt.Errorf("buffer limits must be >= 0")
		}
		return nil

	case runtime.PolicyStreaming:
		if pc.FlushCount < 0 || pc.FlushInterval < 0 || pc.QueueSize < 0 {
			return fmt.Errorf("--flush-count, --flush-interval and --queue-size must be >= 0")
		}
		return nil

	default:
		return fmt.Errorf("invalid --policy %q (must be strict, buffered, streaming or noop)", pc.Name)
	}
}

func buildOutputConfig(c *cli.Context, cfg *hbconfig.Config) (runtime.OutputConfig, error) {
	var oc hbconfig.OutputConfig
	if cfg != nil {
		oc = cfg.Output
	}
	comp, err := iox.ParseCompression(resolveString(c, "compression", oc.Compression))
	if err != nil {
		return runtime.OutputConfig{}, fmt.Errorf("invalid --compression: %w", err)
	}
	return runtime.OutputConfig{
		Kind:        resolveString(c, "output", oc.Kind),
		Dir:         resolveString(c, "output-dir", oc.Dir),
		Compression: comp,
		Digest:      resolveBool(c, "digest", oc.Digest),
	}, nil
}

// storageChoice holds the resolved Lode storage settings.
type storageChoice struct {
	dataset      string
	backend      string
	path         string
	region       string
	endpoint     string
	usePathStyle bool
}

func resolveStorage(c *cli.Context, cfg *hbconfig.Config) storageChoice {
	var sc hbconfig.StorageConfig
	if cfg != nil {
		sc = cfg.Storage
	}
	return storageChoice{
		dataset:      resolveString(c, "storage-dataset", sc.Dataset),
		backend:      resolveString(c, "storage-backend", sc.Backend),
		path:         resolveString(c, "storage-path", sc.Path),
		region:       resolveString(c, "storage-region", sc.Region),
		endpoint:     resolveString(c, "storage-endpoint", sc.Endpoint),
		usePathStyle: resolveBool(c, "storage-s3-path-style", sc.S3PathStyle),
	}
}

// validateStorageChoice checks that a backend, when chosen, has a path.
func validateStorageChoice(s storageChoice) error {
	switch s.backend {
	case "":
		if s.path != "" {
			return fmt.Errorf("--storage-backend is required when --storage-path is set")
		}
	case "fs", "s3":
		if s.path == "" {
			return fmt.Errorf("--storage-path is required for the %s backend", s.backend)
		}
	case "memory":
	default:
		return fmt.Errorf("unknown --storage-backend %q (must be fs, s3 or memory)", s.backend)
	}
	return nil
}

// buildStoreFactory returns the Lode store factory of s. A nil factory
// means storage is disabled.
func buildStoreFactory(ctx context.Context, s storageChoice) (lodelibrary.StoreFactory, error) {
	switch s.backend {
	case "":
		return nil, nil
	case "fs":
		if err := os.MkdirAll(s.path, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create storage directory: %w", err)
		}
		return lodelibrary.NewFSFactory(s.path), nil
	case "s3":
		bucket, prefix := lode.ParseS3Path(s.path)
		return lode.NewS3Factory(ctx, lode.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       s.region,
			Endpoint:     s.endpoint,
			UsePathStyle: s.usePathStyle,
		})
	case "memory":
		return lodelibrary.NewMemoryFactory(), nil
	default:
		return nil, fmt.Errorf("unknown --storage-backend %q", s.backend)
	}
}

func buildStorage(ctx context.Context, c *cli.Context, cfg *hbconfig.Config) (runtime.StorageConfig, error) {
	s := resolveStorage(c, cfg)
	if err := validateStorageChoice(s); err != nil {
		return runtime.StorageConfig{}, err
	}
	factory, err := buildStoreFactory(ctx, s)
	if err != nil {
		return runtime.StorageConfig{}, fmt.Errorf("failed to initialize storage: %w", err)
	}
	var sc hbconfig.StorageConfig
	if cfg != nil {
		sc = cfg.Storage
	}
	return runtime.StorageConfig{
		Factory:  factory,
		Dataset:  s.dataset,
		Backend:  s.backend,
		Sidecars: resolveBool(c, "storage-sidecars", sc.Sidecars),
		Chart:    resolveBool(c, "storage-chart", sc.Chart),
	}, nil
}

// adapterChoice holds the resolved adapter settings.
type adapterChoice struct {
	adapterType string
	url         string
	channel     string
	perLink     bool
	stream      string
	streamMax   int64
	headers     map[string]string
	timeout     time.Duration
	retries     int
	secret      string
	issuer      string
	tokenTTL    time.Duration
}

// parseAdapterConfigWithPrecedence merges adapter flags over the config
// file. Config headers are kept unless a flag header has the same key.
func parseAdapterConfigWithPrecedence(c *cli.Context, cfg *hbconfig.Config, adapterType string) (*adapterChoice, error) {
	var ac hbconfig.AdapterConfig
	if cfg != nil {
		ac = cfg.Adapter
	}

	retries := c.Int("adapter-retries")
	if !c.IsSet("adapter-retries") && ac.Retries != nil {
		retries = *ac.Retries
	}

	choice := &adapterChoice{
		adapterType: adapterType,
		url:         resolveString(c, "adapter-url", ac.URL),
		channel:     resolveString(c, "adapter-channel", ac.Channel),
		perLink:     resolveBool(c, "adapter-per-link", ac.PerLink),
		stream:      ac.Stream,
		streamMax:   ac.StreamMaxLen,
		timeout:     resolveDuration(c, "adapter-timeout", ac.Timeout.Duration),
		retries:     retries,
		secret:      resolveString(c, "adapter-secret", ac.Secret),
		issuer:      ac.Issuer,
		tokenTTL:    ac.TokenTTL.Duration,
		headers:     make(map[string]string, len(ac.Headers)),
	}
	for k, v := range ac.Headers {
		choice.headers[k] = v
	}
	for _, h := range c.StringSlice("adapter-header") {
		k, v, ok := strings.Cut(h, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --adapter-header %q (expected key=value)", h)
		}
		choice.headers[k] = v
	}

	switch adapterType {
	case "webhook":
		if choice.url == "" {
			return nil, fmt.Errorf("--adapter-url is required when --adapter=webhook")
		}
	case "redis":
		if choice.url == "" {
			return nil, fmt.Errorf("--adapter-url is required when --adapter=redis")
		}
	default:
		return nil, fmt.Errorf("unknown adapter type %q (must be webhook or redis)", adapterType)
	}
	if choice.retries < 0 {
		return nil, fmt.Errorf("--adapter-retries must be >= 0, got %d", choice.retries)
	}
	return choice, nil
}

func buildAdapter(ac *adapterChoice) (adapter.Adapter, error) {
	switch ac.adapterType {
	case "webhook":
		return webhook.New(webhook.Config{
			URL:      ac.url,
			Headers:  ac.headers,
			Timeout:  ac.timeout,
			Retries:  ac.retries,
			Secret:   ac.secret,
			Issuer:   ac.issuer,
			TokenTTL: ac.tokenTTL,
		})
	case "redis":
		return redisadapter.New(redisadapter.Config{
			URL:          ac.url,
			Channel:      ac.channel,
			PerLink:      ac.perLink,
			Stream:       ac.stream,
			StreamMaxLen: ac.streamMax,
			Timeout:      ac.timeout,
			Retries:      ac.retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type %q", ac.adapterType)
	}
}

func writeChart(path string, res *runtime.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := chart.Render(f, res.Summaries(), chart.Options{Title: res.Detector + " occupancy"}); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func printRunResult(w io.Writer, res *runtime.Result) {
	fmt.Fprintf(w, "\ndetector=%s, links=%d, outcome=%s, duration=%s\n",
		res.Detector,
		len(res.Links),
		res.Outcome.Status,
		res.Duration.Round(time.Millisecond),
	)
	fmt.Fprintf(w, "policy=%s, succeeded=%d, failed=%d\n", res.Policy, res.Succeeded, res.Failed)

	for _, lr := range res.Links {
		s := lr.Summary
		fmt.Fprintf(w, "\n=== Link %s ===\n", lr.Meta.Link)
		fmt.Fprintf(w, "Session ID:   %s\n", lr.Meta.SessionID)
		fmt.Fprintf(w, "Outcome:      %s\n", lr.Outcome.Status)
		fmt.Fprintf(w, "Message:      %s\n", lr.Outcome.Message)
		fmt.Fprintf(w, "Duration:     %s\n", lr.Duration.Round(time.Millisecond))
		fmt.Fprintf(w, "Records:      %d accepted, %d rejected\n", s.RecordsAccepted, s.RecordsRejected)
		fmt.Fprintf(w, "Frames:       N_TF=%d, N_HBF=%d (%d empty), Opened %d / Closed %d\n",
			s.TimeFrames, s.FramesOpened, s.EmptyFrames, s.FramesOpened, s.FramesClosed)
		fmt.Fprintf(w, "Headers:      %d (%d continuation pages)\n", s.Headers, s.ContinuationPages)
		if lr.Output.Path != "" {
			fmt.Fprintf(w, "Output:       %s (%d pages, %d bytes)\n", lr.Output.Path, lr.Output.Pages, lr.Output.Bytes)
			if lr.Output.Digest != "" {
				fmt.Fprintf(w, "Digest:       %s\n", lr.Output.Digest)
			}
		}
		if lr.StoragePath != "" {
			fmt.Fprintf(w, "Storage:      %s\n", lr.StoragePath)
		}
		if res.Policy == runtime.PolicyBuffered || res.Policy == runtime.PolicyStreaming {
			fmt.Fprintf(w, "Policy:       persisted=%d, dropped=%d, flushes=%d\n",
				lr.PolicyStats.HeadersPersisted, lr.PolicyStats.HeadersDropped, lr.PolicyStats.FlushCount)
		}
	}
}
