package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/justapithecus/hbframe/adapter"
	"github.com/justapithecus/hbframe/chart"
	"github.com/justapithecus/hbframe/iox"
	"github.com/justapithecus/hbframe/ipc"
	"github.com/justapithecus/hbframe/lode"
	"github.com/justapithecus/hbframe/log"
	"github.com/justapithecus/hbframe/metrics"
	"github.com/justapithecus/hbframe/policy"
	"github.com/justapithecus/hbframe/rdh"
	"github.com/justapithecus/hbframe/session"
	"github.com/justapithecus/hbframe/types"
)

// Sidecar file names stored next to each session's partitions.
const (
	ReportFile = "report.json"
	ChartFile  = "occupancy.html"
)

// LinkResult is the result of one link's session.
type LinkResult struct {
	Meta    types.SessionMeta
	Summary types.SessionSummary
	Outcome types.SessionOutcome
	// Err is the terminal error, nil on success.
	Err error

	PolicyStats   policy.Stats
	FlushTriggers map[policy.FlushTrigger]int64
	Metrics       metrics.Snapshot
	Output        ReportOutput
	StoragePath   string
	Duration      time.Duration
}

// Result aggregates all links of a run.
type Result struct {
	Detector  string
	Policy    string
	Links     []*LinkResult
	Outcome   types.SessionOutcome
	Metrics   metrics.Snapshot
	Duration  time.Duration
	Succeeded int
	Failed    int
}

// Summaries returns the per-link summaries in link order.
func (r *Result) Summaries() []types.SessionSummary {
	out := make([]types.SessionSummary, 0, len(r.Links))
	for _, lr := range r.Links {
		out = append(out, lr.Summary)
	}
	return out
}

// Orchestrator runs the sessions of every configured link.
type Orchestrator struct {
	config Config
	logOut zapcore.WriteSyncer
}

// New validates cfg and returns an orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewSessionID == nil {
		cfg.NewSessionID = uuid.NewString
	}
	if cfg.Storage.Dataset == "" {
		cfg.Storage.Dataset = lode.DefaultDataset
	}

	o := &Orchestrator{config: cfg}
	if cfg.LogOutput != nil {
		// One lock for all links sharing the writer.
		o.logOut = zapcore.Lock(zapcore.AddSync(cfg.LogOutput))
	}
	return o, nil
}

// Execute runs every link and waits for all of them. Link failures are
// reported in the result, not as an error.
func (o *Orchestrator) Execute(ctx context.Context) (*Result, error) {
	cfg := &o.config
	start := cfg.Now()

	results := make([]*LinkResult, len(cfg.Links))
	var g errgroup.Group
	if cfg.Parallel > 0 {
		g.SetLimit(cfg.Parallel)
	}
	for i, link := range cfg.Links {
		g.Go(func() error {
			results[i] = o.runLink(ctx, i, link)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{
		Detector: cfg.Detector,
		Policy:   cfg.policyName(),
		Links:    results,
		Duration: cfg.Now().Sub(start),
	}
	outcomes := make([]types.SessionOutcome, 0, len(results))
	snaps := make([]metrics.Snapshot, 0, len(results))
	for _, lr := range results {
		outcomes = append(outcomes, lr.Outcome)
		snaps = append(snaps, lr.Metrics)
		if lr.Outcome.Status == types.OutcomeSuccess {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}
	res.Outcome = Worst(outcomes...)
	res.Metrics = metrics.Sum(snaps...)
	return res, nil
}

// linkOutput is the opened sink of one link.
type linkOutput struct {
	sink policy.Sink
	raw  *rdh.FileSink
	ipc  *ipc.Sink
	kind string
	path string
}

func (o *linkOutput) result() ReportOutput {
	switch {
	case o.raw != nil:
		pages, n := o.raw.Stats()
		return ReportOutput{Kind: o.kind, Path: o.path, Digest: o.raw.Digest(), Pages: pages, Bytes: n}
	case o.ipc != nil:
		return ReportOutput{Kind: o.kind, Path: o.path, Pages: o.ipc.Headers()}
	}
	return ReportOutput{}
}

func (o *Orchestrator) runLink(ctx context.Context, index int, link Link) *LinkResult {
	cfg := &o.config
	meta := types.SessionMeta{
		SessionID: cfg.NewSessionID(),
		Detector:  cfg.Detector,
		Link:      link.Name,
		FeeID:     link.Identity.FeeID,
		StartedAt: cfg.Now(),
	}
	res := &LinkResult{Meta: meta}
	logger := o.newLogger(&meta)
	collector := metrics.NewCollector(metrics.Dimensions{
		Policy:         cfg.policyName(),
		StorageBackend: cfg.Storage.Backend,
		SessionID:      meta.SessionID,
		Detector:       meta.Detector,
		Link:           meta.Link,
	})

	var client *lode.LodeClient
	if cfg.Storage.Factory != nil {
		c, err := lode.NewLodeClientWithFactory(lode.Config{
			Dataset:   cfg.Storage.Dataset,
			Detector:  meta.Detector,
			Link:      meta.Link,
			Day:       lode.DeriveDay(meta.StartedAt),
			SessionID: meta.SessionID,
			Policy:    cfg.policyName(),
		}, cfg.Storage.Factory)
		if err != nil {
			return o.abandon(ctx, res, collector, logger, fmt.Errorf("%w: %w", session.ErrSink, err))
		}
		client = c
		res.StoragePath = c.SessionPath()
		defer iox.DiscardClose(c)
	}

	out, err := o.openOutput(meta, client)
	if err != nil {
		return o.abandon(ctx, res, collector, logger, fmt.Errorf("%w: %w", session.ErrSink, err))
	}
	pol, err := o.newPolicy(out, collector, logger)
	if err != nil {
		if out.sink != nil {
			iox.DiscardClose(out.sink)
		}
		return o.abandon(ctx, res, collector, logger, err)
	}

	in, err := cfg.Source.Open(link, index, func(err error) {
		collector.IncIPCDecodeErrors()
		logger.Warn("skipped undecodable record", map[string]any{"error": err.Error()})
	})
	if err != nil {
		iox.DiscardClose(pol)
		return o.abandon(ctx, res, collector, logger, err)
	}
	defer iox.DiscardClose(in)

	sessCfg := cfg.Session
	sessCfg.Header.Identity = link.Identity
	sess, err := session.New(sessCfg, pol,
		session.WithLogger(logger),
		session.WithMetrics(collector),
		session.WithMeta(meta),
	)
	if err != nil {
		iox.DiscardClose(pol)
		return o.abandon(ctx, res, collector, logger, err)
	}

	sum, runErr := session.Run(ctx, sess, in.Records)
	if runErr == nil {
		runErr = in.Err()
	}

	// Headers already produced are written even after cancellation.
	endCtx := context.WithoutCancel(ctx)
	sinkErr := pol.Flush(endCtx)
	if out.ipc != nil && sinkErr == nil {
		sinkErr = out.ipc.WriteSummary(sum, DetermineOutcome(runErr))
	}
	sinkErr = errors.Join(sinkErr, pol.Close())
	if sinkErr != nil && runErr == nil {
		runErr = fmt.Errorf("%w: %w", session.ErrSink, sinkErr)
	}

	res.Summary = sum
	res.PolicyStats = pol.Stats()
	if sp, ok := pol.(*policy.StreamingPolicy); ok {
		res.FlushTriggers = sp.FlushTriggerStats()
	}
	res.Output = out.result()
	collector.AbsorbPolicyStats(res.PolicyStats.HeadersReceived, res.PolicyStats.HeadersPersisted,
		res.PolicyStats.HeadersDropped, res.PolicyStats.BatchesDropped)

	res.Err = runErr
	res.Outcome = DetermineOutcome(runErr)
	if client != nil {
		o.persist(endCtx, res, client, collector, logger)
	}
	res.Metrics = collector.Snapshot()
	res.Duration = cfg.Now().Sub(meta.StartedAt)

	if client != nil && cfg.Storage.Sidecars {
		o.writeSidecars(endCtx, res, client, logger)
	}
	o.publish(endCtx, res, logger)
	o.logResult(res, logger)
	return res
}

// abandon finishes a link that failed before its session could run.
func (o *Orchestrator) abandon(ctx context.Context, res *LinkResult, collector *metrics.Collector, logger *log.Logger, err error) *LinkResult {
	collector.IncSessionStarted()
	collector.IncSessionFailed()
	res.Err = err
	res.Outcome = DetermineOutcome(err)
	res.Summary = types.SessionSummary{
		SessionID: res.Meta.SessionID,
		Detector:  res.Meta.Detector,
		Link:      res.Meta.Link,
		State:     string(session.StateFailed),
	}
	res.Metrics = collector.Snapshot()
	res.Duration = o.config.Now().Sub(res.Meta.StartedAt)
	o.publish(context.WithoutCancel(ctx), res, logger)
	o.logResult(res, logger)
	return res
}

func (o *Orchestrator) newLogger(meta *types.SessionMeta) *log.Logger {
	l := log.NewLoggerLevel(meta, o.config.LogLevel)
	if o.logOut != nil {
		l = l.WithOutput(o.logOut)
	}
	return l
}

// OutputPath returns the output file of a link for raw and ipc output.
func OutputPath(cfg OutputConfig, detector, link string) string {
	stem := link
	if detector != "" {
		stem = detector + "_" + link
	}
	ext := ".raw"
	if cfg.Kind == OutputIPC {
		ext = ".ipc"
	}
	if cfg.Compression == iox.CompressionXZ {
		ext += iox.XZSuffix
	}
	return filepath.Join(cfg.Dir, stem+ext)
}

func (o *Orchestrator) openOutput(meta types.SessionMeta, client *lode.LodeClient) (*linkOutput, error) {
	cfg := o.config.Output
	out := &linkOutput{kind: cfg.Kind}

	switch cfg.Kind {
	case OutputRaw:
		out.path = OutputPath(cfg, meta.Detector, meta.Link)
		s, err := rdh.NewFileSink(out.path, rdh.FileOptions{Compression: cfg.Compression, Digest: cfg.Digest})
		if err != nil {
			return nil, err
		}
		out.raw, out.sink = s, s
	case OutputIPC:
		out.path = OutputPath(cfg, meta.Detector, meta.Link)
		w, err := iox.Create(out.path, cfg.Compression)
		if err != nil {
			return nil, fmt.Errorf("create ipc output %s: %w", out.path, err)
		}
		s := ipc.NewSink(w)
		out.ipc, out.sink = s, s
	case OutputLode:
		out.sink = lode.NewSink(client)
	}
	return out, nil
}

func (o *Orchestrator) newPolicy(out *linkOutput, collector *metrics.Collector, logger *log.Logger) (policy.Policy, error) {
	pc := o.config.Policy
	if out.sink == nil || pc.Name == PolicyNoop {
		if out.sink != nil {
			iox.DiscardClose(out.sink)
		}
		return policy.NewNoopPolicy(), nil
	}
	sink := lode.NewInstrumentedSink(out.sink, collector)

	switch o.config.policyName() {
	case PolicyBuffered:
		bc := policy.DefaultBufferedConfig()
		if pc.MaxBufferHeaders > 0 || pc.MaxBufferBytes > 0 {
			bc.MaxBufferHeaders = pc.MaxBufferHeaders
			bc.MaxBufferBytes = pc.MaxBufferBytes
		}
		bc.Backpressure = pc.Backpressure
		bc.Logger = logger
		return policy.NewBufferedPolicy(sink, bc)
	case PolicyStreaming:
		sc := policy.StreamingConfig{
			QueueSize:     pc.QueueSize,
			FlushCount:    pc.FlushCount,
			FlushInterval: pc.FlushInterval,
			Backpressure:  pc.Backpressure,
			Logger:        logger,
		}
		if sc.FlushCount <= 0 && sc.FlushInterval <= 0 {
			sc.FlushInterval = time.Second
		}
		return policy.NewStreamingPolicy(sink, sc)
	default:
		return policy.NewStrictPolicy(sink), nil
	}
}

// persist stores the summary and metrics records. A storage failure turns
// a successful outcome into a sink failure.
func (o *Orchestrator) persist(ctx context.Context, res *LinkResult, client *lode.LodeClient, collector *metrics.Collector, logger *log.Logger) {
	completedAt := o.config.Now()
	err := errors.Join(
		client.WriteSummary(ctx, res.Summary, res.Outcome, completedAt),
		client.WriteMetrics(ctx, collector.Snapshot(), completedAt),
	)
	if err == nil {
		return
	}
	logger.Error("failed to persist session records", map[string]any{
		"error": err.Error(),
		"path":  client.SessionPath(),
	})
	if res.Outcome.Status == types.OutcomeSuccess {
		res.Err = fmt.Errorf("%w: %w", session.ErrSink, err)
		res.Outcome = types.SessionOutcome{Status: types.OutcomeSinkFailure, Message: res.Err.Error()}
	}
}

func (o *Orchestrator) writeSidecars(ctx context.Context, res *LinkResult, client *lode.LodeClient, logger *log.Logger) {
	data, err := json.MarshalIndent(buildLinkReport(res, o.config.policyName()), "", "  ")
	if err == nil {
		err = client.PutFile(ctx, ReportFile, "application/json", data)
	}
	if err != nil {
		logger.Warn("failed to store session report", map[string]any{"error": err.Error()})
	}

	if !o.config.Storage.Chart || len(res.Summary.Occupancy) == 0 {
		return
	}
	var buf bytes.Buffer
	err = chart.Render(&buf, []types.SessionSummary{res.Summary}, chart.Options{Title: res.Meta.Detector + " " + res.Meta.Link})
	if err == nil {
		err = client.PutFile(ctx, ChartFile, "text/html", buf.Bytes())
	}
	if err != nil {
		logger.Warn("failed to store occupancy chart", map[string]any{"error": err.Error()})
	}
}

// publish notifies the adapter. Failures are logged and do not change the
// outcome.
func (o *Orchestrator) publish(ctx context.Context, res *LinkResult, logger *log.Logger) {
	if o.config.Adapter == nil {
		return
	}
	event := &adapter.SessionCompletedEvent{
		ContractVersion: types.Version,
		EventType:       adapter.EventType,
		SessionID:       res.Meta.SessionID,
		Detector:        res.Meta.Detector,
		Link:            res.Meta.Link,
		Day:             lode.DeriveDay(res.Meta.StartedAt),
		Outcome:         string(res.Outcome.Status),
		Message:         res.Outcome.Message,
		StoragePath:     res.StoragePath,
		Timestamp:       o.config.Now().UTC().Format(time.RFC3339),
		Frames:          res.Summary.FramesOpened,
		EmptyFrames:     res.Summary.EmptyFrames,
		TimeFrames:      res.Summary.TimeFrames,
		Headers:         res.Summary.Headers,
		HeadersDropped:  res.PolicyStats.HeadersDropped,
		DurationMs:      res.Duration.Milliseconds(),
	}
	if err := o.config.Adapter.Publish(ctx, event); err != nil {
		logger.Warn("failed to publish session event", map[string]any{"error": err.Error()})
	}
}

func (o *Orchestrator) logResult(res *LinkResult, logger *log.Logger) {
	fields := map[string]any{
		"outcome":     string(res.Outcome.Status),
		"frames":      res.Summary.FramesOpened,
		"empty":       res.Summary.EmptyFrames,
		"headers":     res.Summary.Headers,
		"duration_ms": res.Duration.Milliseconds(),
	}
	if res.Err != nil {
		fields["error"] = res.Err.Error()
		logger.Error("link session failed", fields)
		return
	}
	logger.Info("link session completed", fields)
}

// Close releases the adapter.
func (o *Orchestrator) Close() error {
	if o.config.Adapter == nil {
		return nil
	}
	return o.config.Adapter.Close()
}

var _ io.Closer = (*Orchestrator)(nil)
