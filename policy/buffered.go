package policy

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/justapithecus/hbframe/log"
	"github.com/justapithecus/hbframe/types"
)

// BufferedConfig configures a BufferedPolicy.
type BufferedConfig struct {
	// MaxBufferHeaders is the maximum number of headers to buffer.
	// Zero means no limit (use MaxBufferBytes instead).
	MaxBufferHeaders int

	// MaxBufferBytes is the maximum page bytes to buffer.
	// Zero means no limit (use MaxBufferHeaders instead).
	// At least one limit must be set.
	MaxBufferBytes int64

	// Backpressure selects what happens when a batch does not fit and the
	// sink cannot take the buffer: block returns the sink error, drop
	// discards the batch.
	Backpressure Backpressure

	// Logger is an optional logger for policy observability.
	// If nil, no logging is emitted.
	Logger *log.Logger
}

// DefaultBufferedConfig returns sensible defaults for buffered policy.
func DefaultBufferedConfig() BufferedConfig {
	return BufferedConfig{
		MaxBufferHeaders: 4096,
		MaxBufferBytes:   8 * 1024 * 1024,
		Backpressure:     BackpressureBlock,
	}
}

// ErrInvalidConfig is returned when BufferedConfig is invalid.
var ErrInvalidConfig = errors.New("invalid config: at least one of MaxBufferHeaders or MaxBufferBytes must be set")

// BufferedPolicy accumulates batches in a bounded buffer and writes them
// in one call per flush.
//
// On a failed flush the buffer is kept and retried by the next flush, so a
// header may be written twice but is never lost.
type BufferedPolicy struct {
	sink   Sink
	config BufferedConfig
	logger *log.Logger

	mu          sync.Mutex // guards buffer state and stats
	buffer      []types.RawHeader
	bufferBytes int64
	stats       *statsRecorder
}

// NewBufferedPolicy creates a new buffered policy.
func NewBufferedPolicy(sink Sink, config BufferedConfig) (*BufferedPolicy, error) {
	if config.MaxBufferHeaders <= 0 && config.MaxBufferBytes <= 0 {
		return nil, ErrInvalidConfig
	}
	bp, err := ParseBackpressure(string(config.Backpressure))
	if err != nil {
		return nil, err
	}
	config.Backpressure = bp

	return &BufferedPolicy{
		sink:   sink,
		config: config,
		logger: config.Logger,
		buffer: make([]types.RawHeader, 0, max(config.MaxBufferHeaders, 128)),
		stats:  newStatsRecorder(),
	}, nil
}

// Ingest buffers the batch.
//
// When the batch does not fit, the buffer is flushed first and a batch
// larger than the whole buffer is then written straight through. If the
// sink fails:
//   - block: the sink error is returned
//   - drop: the batch is discarded and counted; the buffer is kept for
//     the next flush
func (p *BufferedPolicy) Ingest(ctx context.Context, batch []types.RawHeader) error {
	if len(batch) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.incReceivedLocked(len(batch))
	size := BatchBytes(batch)

	if p.fitsLocked(len(p.buffer)+len(batch), p.bufferBytes+size) {
		p.appendLocked(batch, size)
		return nil
	}

	if err := p.flushLocked(ctx); err != nil {
		return p.refuseLocked(len(batch), err)
	}
	if p.fitsLocked(len(batch), size) {
		p.appendLocked(batch, size)
		return nil
	}

	// Larger than the whole buffer: write through.
	p.stats.incFlushLocked()
	if err := p.sink.WriteHeaders(ctx, batch); err != nil {
		p.stats.incErrorsLocked()
		p.logFlushFailure(len(batch), err)
		return p.refuseLocked(len(batch), err)
	}
	p.stats.incPersistedLocked(len(batch))
	return nil
}

// refuseLocked settles a batch the sink could not take. Caller must hold mu.
func (p *BufferedPolicy) refuseLocked(headers int, err error) error {
	if p.config.Backpressure != BackpressureDrop {
		return err
	}
	p.stats.incDroppedLocked(headers)
	p.logDrop(headers)
	return nil
}

// Flush writes all buffered headers.
func (p *BufferedPolicy) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.flushLocked(ctx)
}

// Close flushes best-effort and closes the sink.
func (p *BufferedPolicy) Close() error {
	flushErr := p.Flush(context.Background())
	return errors.Join(flushErr, p.sink.Close())
}

// Stats returns an atomic snapshot of policy statistics.
func (p *BufferedPolicy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stats.snapshotLocked(len(p.buffer), p.bufferBytes)
}

func (p *BufferedPolicy) fitsLocked(headers int, bytes int64) bool {
	if p.config.MaxBufferHeaders > 0 && headers > p.config.MaxBufferHeaders {
		return false
	}
	if p.config.MaxBufferBytes > 0 && bytes > p.config.MaxBufferBytes {
		return false
	}
	return true
}

func (p *BufferedPolicy) appendLocked(batch []types.RawHeader, size int64) {
	p.buffer = append(p.buffer, batch...)
	p.bufferBytes += size
}

// flushLocked writes the buffer. Caller must hold mu.
func (p *BufferedPolicy) flushLocked(ctx context.Context) error {
	p.stats.incFlushLocked()
	if len(p.buffer) == 0 {
		return nil
	}

	out := slices.Clone(p.buffer)
	if err := p.sink.WriteHeaders(ctx, out); err != nil {
		p.stats.incErrorsLocked()
		p.logFlushFailure(len(out), err)
		return err
	}

	p.stats.incPersistedLocked(len(out))
	p.buffer = p.buffer[:0]
	p.bufferBytes = 0
	p.logFlush(len(out))
	return nil
}

// --- Logging helpers ---

func (p *BufferedPolicy) logFlush(headers int) {
	if p.logger == nil {
		return
	}
	p.logger.Debug("buffered flush", map[string]any{
		"headers": headers,
		"policy":  "buffered",
	})
}

func (p *BufferedPolicy) logFlushFailure(headers int, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Error("buffered flush failed", map[string]any{
		"headers": headers,
		"error":   err.Error(),
		"policy":  "buffered",
	})
}

func (p *BufferedPolicy) logDrop(headers int) {
	if p.logger == nil {
		return
	}
	p.logger.Warn("sink unavailable, batch dropped", map[string]any{
		"headers": headers,
		"policy":  "buffered",
	})
}

var _ Policy = (*BufferedPolicy)(nil)
