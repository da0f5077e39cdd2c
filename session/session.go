// Package session drives one link's framing pipeline: it pushes ordered
// interaction records through the consumer and gap filler, synthesizes the
// header pages of every heartbeat frame and hands them to an emitter.
//
// Every batch handed to the emitter holds whole frames: the open pages of
// a hit frame are held back until its close page is known, so an emitter
// that discards a batch discards complete open/close pairs.
package session

import (
	"context"
	"fmt"
	"iter"

	"github.com/justapithecus/hbframe/frames"
	"github.com/justapithecus/hbframe/grid"
	"github.com/justapithecus/hbframe/log"
	"github.com/justapithecus/hbframe/metrics"
	"github.com/justapithecus/hbframe/rdh"
	"github.com/justapithecus/hbframe/types"
)

// State is the lifecycle state of a Session.
type State string

// Session states.
const (
	StateNotStarted State = "not_started"
	StateStreaming  State = "streaming"
	StateClosed     State = "closed"
	StateFailed     State = "failed"
)

// Emitter receives header batches in emission order.
// policy.Policy satisfies it.
type Emitter interface {
	Ingest(ctx context.Context, batch []types.RawHeader) error
}

// Config parameterizes a Session.
type Config struct {
	Grid          grid.Config          `yaml:"grid" json:"grid"`
	Header        rdh.Config           `yaml:"header" json:"header"`
	PayloadPolicy frames.PayloadPolicy `yaml:"payload_policy" json:"payload_policy"`
}

// DefaultConfig returns the reference grid and header parameters.
func DefaultConfig() Config {
	return Config{
		Grid:          grid.DefaultConfig(),
		Header:        rdh.DefaultConfig(),
		PayloadPolicy: frames.PayloadSum,
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Grid.Validate(); err != nil {
		return err
	}
	if err := c.Header.Validate(); err != nil {
		return err
	}
	_, err := frames.ParsePayloadPolicy(string(c.PayloadPolicy))
	return err
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Session) { s.metrics = c }
}

// WithMeta labels the session summary.
func WithMeta(meta types.SessionMeta) Option {
	return func(s *Session) { s.meta = meta }
}

// Session frames one link. It is not safe for concurrent use.
type Session struct {
	meta    types.SessionMeta
	grid    *grid.Grid
	emitter Emitter
	logger  *log.Logger
	metrics *metrics.Collector

	consumer *frames.Consumer
	filler   *frames.GapFiller
	synth    *rdh.Synthesizer
	acc      *Accumulator

	// held are the open pages of the current hit frame, not yet emitted.
	held []types.RawHeader

	state  State
	done   bool
	err    error
	healed int64
}

// New validates cfg and returns a session emitting into e.
func New(cfg Config, e Emitter, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, _ := frames.ParsePayloadPolicy(string(cfg.PayloadPolicy))

	g, err := grid.New(cfg.Grid)
	if err != nil {
		return nil, err
	}
	synth, err := rdh.NewSynthesizer(cfg.Header, g)
	if err != nil {
		return nil, err
	}

	s := &Session{
		grid:     g,
		emitter:  e,
		consumer: frames.NewConsumer(g, policy, frames.WithPayloadLimit(cfg.Header.FramePayloadLimit())),
		filler:   frames.NewGapFiller(g),
		synth:    synth,
		acc:      NewAccumulator(g, cfg.Header.PacketModulus()),
		state:    StateNotStarted,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics.IncSessionStarted()
	return s, nil
}

// State returns the lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Grid returns the session's clock grid.
func (s *Session) Grid() *grid.Grid {
	return s.grid
}

// Err returns the error that failed the session, if any.
func (s *Session) Err() error {
	return s.err
}

// Process accepts the next record.
//
// An out-of-range record returns a *RecordError wrapping a
// *grid.OutOfRangeError; it is skipped and the session stays usable.
// Unordered input and emitter failures fail the session.
func (s *Session) Process(ctx context.Context, rec types.InteractionRecord) error {
	if s.state == StateFailed {
		return s.err
	}
	if s.done {
		return ErrClosed
	}

	hit, ok, err := s.consumer.Push(rec)
	if err != nil {
		if grid.IsOutOfRange(err) {
			s.metrics.IncRecordRejected()
			s.logWarn("record out of range, skipped", map[string]any{
				"record": rec.String(),
				"error":  err.Error(),
			})
			return &RecordError{Record: rec, Summary: s.Summary(), Err: err}
		}
		s.metrics.IncUnorderedInput()
		s.logError("unordered input", map[string]any{
			"record": rec.String(),
			"error":  err.Error(),
		})
		return s.fail(&RecordError{Record: rec, Summary: s.Summary(), Err: err})
	}

	s.metrics.IncRecordAccepted()
	if s.state == StateNotStarted {
		s.state = StateStreaming
	}
	if !ok {
		return nil
	}
	return s.emitHit(ctx, hit)
}

// Close emits the pending hit frame and the final close page, then checks
// the end-of-session invariants. Close is idempotent.
//
// A failed session closes its open frame and returns the failure.
func (s *Session) Close(ctx context.Context) error {
	if s.done {
		return s.err
	}
	s.done = true

	if s.state == StateFailed {
		s.heal(ctx)
		s.metrics.IncSessionFailed()
		return s.err
	}

	if hit, ok := s.consumer.Finish(); ok {
		if err := s.emitHit(ctx, hit); err != nil {
			s.heal(ctx)
			s.metrics.IncSessionFailed()
			return err
		}
	}
	if s.synth.IsOpen() {
		batch, _ := s.synth.Close(s.takeHeld())
		if err := s.publish(ctx, batch); err != nil {
			s.metrics.IncSessionFailed()
			return s.fail(err)
		}
	}

	if err := s.acc.Check(s.filler.Filled()); err != nil {
		s.metrics.IncSessionFailed()
		s.logError("session invariants failed", map[string]any{"error": err.Error()})
		return s.fail(err)
	}

	s.state = StateClosed
	s.metrics.IncSessionCompleted()
	s.logInfo("session closed", map[string]any{
		"frames":  s.acc.opened,
		"headers": s.acc.headers,
		"empty":   s.acc.empty,
	})
	return nil
}

// Abort ends the session without emitting the pending hit frame. A frame
// left open is closed even when ctx is already cancelled.
func (s *Session) Abort(ctx context.Context, cause error) error {
	if s.done {
		return s.err
	}
	s.done = true

	if n := s.consumer.Discard(); n > 0 {
		s.logWarn("pending records discarded", map[string]any{"records": n})
	}
	if s.err == nil {
		s.err = cause
	}
	s.state = StateFailed
	s.heal(ctx)

	if Classify(cause) == KindCancelled {
		s.metrics.IncSessionCancelled()
	} else {
		s.metrics.IncSessionFailed()
	}
	return s.err
}

// Summary returns a snapshot of the session counters.
func (s *Session) Summary() types.SessionSummary {
	sum := types.SessionSummary{
		SessionID: s.meta.SessionID,
		Detector:  s.meta.Detector,
		Link:      s.meta.Link,
		State:     string(s.state),
	}
	s.acc.Fill(&sum)
	cs := s.consumer.Stats()
	sum.RecordsAccepted = cs.Accepted
	sum.RecordsRejected = cs.Rejected
	sum.GapsFilled = s.filler.Filled()
	sum.FramesHealed = s.healed
	sum.FramesClamped = cs.Clamped
	return sum
}

// emitHit closes the previous frame, frames the gap up to hit and opens
// the hit frame. The previous frame and the gap frames go out in one
// batch; the hit frame's open pages are held until its close.
func (s *Session) emitHit(ctx context.Context, hit frames.HitEvent) error {
	if hit.Clamped {
		s.logWarn("frame payload clamped", map[string]any{
			"frame":   int64(hit.Frame),
			"records": hit.Records,
			"payload": hit.Payload,
		})
	}

	batch := s.takeHeld()
	if s.synth.IsOpen() {
		batch, _ = s.synth.Close(batch)
	}
	var open []types.RawHeader
	err := s.filler.Advance(hit, func(ev frames.FrameEvent) error {
		var err error
		if ev.HasData {
			open, err = s.synth.Open(open, ev)
		} else {
			batch, err = s.synth.Frame(batch, ev)
		}
		return err
	})
	s.held = open
	if err != nil {
		return s.fail(fmt.Errorf("%w: %w", ErrInvariant, err))
	}
	if err := s.publish(ctx, batch); err != nil {
		return s.fail(err)
	}
	return nil
}

func (s *Session) takeHeld() []types.RawHeader {
	held := s.held
	s.held = nil
	return held
}

func (s *Session) publish(ctx context.Context, batch []types.RawHeader) error {
	if len(batch) == 0 {
		return nil
	}
	for _, h := range batch {
		s.acc.Observe(h)
	}
	s.metrics.AddHeadersEmitted(len(batch))
	if err := s.emitter.Ingest(ctx, batch); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrSink, err)
	}
	return nil
}

// heal emits the close page of a frame left open.
func (s *Session) heal(ctx context.Context) {
	if !s.synth.IsOpen() {
		return
	}
	open, _ := s.synth.OpenHeader()
	batch, _ := s.synth.Close(s.takeHeld())
	s.healed++
	s.metrics.IncFramesHealed()
	s.logWarn("closing open frame", map[string]any{
		"error": ErrUnterminatedFrame.Error(),
		"frame": open.IR().String(),
	})
	if err := s.publish(context.WithoutCancel(ctx), batch); err != nil {
		s.logError("healing close page not delivered", map[string]any{"error": err.Error()})
	}
}

func (s *Session) fail(err error) error {
	if s.err == nil {
		s.err = err
	}
	s.state = StateFailed
	return err
}

func (s *Session) logInfo(msg string, fields map[string]any) {
	if s.logger != nil {
		s.logger.Info(msg, fields)
	}
}

func (s *Session) logWarn(msg string, fields map[string]any) {
	if s.logger != nil {
		s.logger.Warn(msg, fields)
	}
}

func (s *Session) logError(msg string, fields map[string]any) {
	if s.logger != nil {
		s.logger.Error(msg, fields)
	}
}

// Run feeds records into s until the sequence ends, the input turns out of
// order or ctx is cancelled. Out-of-range records are skipped. The session
// is always closed or aborted on return.
func Run(ctx context.Context, s *Session, records iter.Seq[types.InteractionRecord]) (types.SessionSummary, error) {
	for rec := range records {
		if err := ctx.Err(); err != nil {
			err = s.Abort(ctx, err)
			return s.Summary(), err
		}
		err := s.Process(ctx, rec)
		if err == nil || grid.IsOutOfRange(err) {
			continue
		}
		err = s.Abort(ctx, err)
		return s.Summary(), err
	}
	err := s.Close(ctx)
	return s.Summary(), err
}
