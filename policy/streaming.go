package policy

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/justapithecus/hbframe/log"
	"github.com/justapithecus/hbframe/types"
)

// StreamingConfig configures a StreamingPolicy.
type StreamingConfig struct {
	// QueueSize bounds the number of batches waiting for the writer.
	// Zero selects DefaultQueueSize.
	QueueSize int

	// FlushCount triggers a write once N headers accumulate.
	// Zero means count-based flush is disabled.
	FlushCount int

	// FlushInterval triggers a write every interval.
	// Zero means interval-based flush is disabled.
	FlushInterval time.Duration

	// Backpressure selects what Ingest does when the queue is full.
	Backpressure Backpressure

	// Logger is an optional logger for policy observability.
	Logger *log.Logger
}

// DefaultQueueSize is the queue bound used when QueueSize is zero.
const DefaultQueueSize = 64

// FlushTrigger identifies which trigger caused a flush.
type FlushTrigger string

const (
	// FlushTriggerCount indicates a count-threshold flush.
	FlushTriggerCount FlushTrigger = "count"
	// FlushTriggerInterval indicates an interval-based flush.
	FlushTriggerInterval FlushTrigger = "interval"
	// FlushTriggerTermination indicates an explicit or closing flush.
	FlushTriggerTermination FlushTrigger = "termination"
)

// ErrStreamingInvalidConfig is returned when StreamingConfig is invalid.
var ErrStreamingInvalidConfig = errors.New("invalid streaming config: at least one of FlushCount or FlushInterval must be set")

type queueItem struct {
	batch []types.RawHeader
	flush chan error
}

// StreamingPolicy decouples the producer from the sink with a bounded
// queue drained by a writer goroutine.
//
//   - Batches are written in the order they were accepted
//   - A full queue blocks the producer or drops the whole batch per
//     Backpressure
//   - The first sink error is sticky: later Ingest calls return it
//   - On a failed write the writer keeps its buffer and retries on the
//     next trigger
//
// Thread safety:
//   - sendMu serializes queue sends against Close
//   - mu guards stats, trigger counts and the sticky error
//   - the writer goroutine owns buffer
type StreamingPolicy struct {
	sink   Sink
	config StreamingConfig
	logger *log.Logger

	sendMu sync.RWMutex
	closed bool
	queue  chan queueItem
	done   chan struct{}

	mu          sync.Mutex
	stats       *statsRecorder
	err         error
	bufHeaders  int
	bufBytes    int64
	flushCounts map[FlushTrigger]int64

	buffer []types.RawHeader
}

// NewStreamingPolicy creates a streaming policy and starts its writer.
func NewStreamingPolicy(sink Sink, config StreamingConfig) (*StreamingPolicy, error) {
	if config.FlushCount <= 0 && config.FlushInterval <= 0 {
		return nil, ErrStreamingInvalidConfig
	}
	bp, err := ParseBackpressure(string(config.Backpressure))
	if err != nil {
		return nil, err
	}
	config.Backpressure = bp
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}

	p := &StreamingPolicy{
		sink:        sink,
		config:      config,
		logger:      config.Logger,
		queue:       make(chan queueItem, config.QueueSize),
		done:        make(chan struct{}),
		stats:       newStatsRecorder(),
		flushCounts: make(map[FlushTrigger]int64),
	}
	go p.run()
	return p, nil
}

// Ingest enqueues a copy of the batch.
func (p *StreamingPolicy) Ingest(ctx context.Context, batch []types.RawHeader) error {
	if len(batch) == 0 {
		return nil
	}

	p.sendMu.RLock()
	defer p.sendMu.RUnlock()
	if p.closed {
		return ErrPolicyClosed
	}

	p.mu.Lock()
	if p.err != nil {
		err := p.err
		p.mu.Unlock()
		return err
	}
	p.stats.incReceivedLocked(len(batch))
	p.mu.Unlock()

	item := queueItem{batch: slices.Clone(batch)}

	if p.config.Backpressure == BackpressureDrop {
		select {
		case p.queue <- item:
		default:
			p.mu.Lock()
			p.stats.incDroppedLocked(len(batch))
			p.mu.Unlock()
			p.logDrop(len(batch))
		}
		return nil
	}

	select {
	case p.queue <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush waits until every batch accepted before the call is written.
func (p *StreamingPolicy) Flush(ctx context.Context) error {
	p.sendMu.RLock()
	if p.closed {
		p.sendMu.RUnlock()
		return ErrPolicyClosed
	}
	result := make(chan error, 1)
	select {
	case p.queue <- queueItem{flush: result}:
	case <-ctx.Done():
		p.sendMu.RUnlock()
		return ctx.Err()
	}
	p.sendMu.RUnlock()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the queue, writes what is left and closes the sink.
func (p *StreamingPolicy) Close() error {
	p.sendMu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.sendMu.Unlock()

	<-p.done

	p.mu.Lock()
	err := p.err
	p.mu.Unlock()
	return errors.Join(err, p.sink.Close())
}

// Stats returns an atomic snapshot of policy statistics.
func (p *StreamingPolicy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stats.snapshotLocked(p.bufHeaders, p.bufBytes)
}

// FlushTriggerStats returns per-trigger flush counts.
func (p *StreamingPolicy) FlushTriggerStats() map[FlushTrigger]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return map[FlushTrigger]int64{
		FlushTriggerCount:       p.flushCounts[FlushTriggerCount],
		FlushTriggerInterval:    p.flushCounts[FlushTriggerInterval],
		FlushTriggerTermination: p.flushCounts[FlushTriggerTermination],
	}
}

// run is the writer goroutine.
func (p *StreamingPolicy) run() {
	defer close(p.done)

	var tick <-chan time.Time
	if p.config.FlushInterval > 0 {
		ticker := time.NewTicker(p.config.FlushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case item, ok := <-p.queue:
			if !ok {
				_ = p.write(FlushTriggerTermination)
				return
			}
			if item.flush != nil {
				item.flush <- p.write(FlushTriggerTermination)
				continue
			}
			p.buffer = append(p.buffer, item.batch...)
			p.setBuffered()
			if p.config.FlushCount > 0 && len(p.buffer) >= p.config.FlushCount {
				_ = p.write(FlushTriggerCount)
			}
		case <-tick:
			if len(p.buffer) > 0 {
				_ = p.write(FlushTriggerInterval)
			}
		}
	}
}

// write flushes the writer buffer. Called only from run.
func (p *StreamingPolicy) write(trigger FlushTrigger) error {
	p.mu.Lock()
	p.flushCounts[trigger]++
	p.stats.incFlushLocked()
	p.mu.Unlock()

	if len(p.buffer) == 0 {
		return nil
	}

	n := len(p.buffer)
	if err := p.sink.WriteHeaders(context.Background(), p.buffer); err != nil {
		p.mu.Lock()
		p.stats.incErrorsLocked()
		if p.err == nil {
			p.err = err
		}
		p.mu.Unlock()
		p.logFlushFailure(trigger, n, err)
		return err
	}

	p.buffer = p.buffer[:0]
	p.mu.Lock()
	p.stats.incPersistedLocked(n)
	p.mu.Unlock()
	p.setBuffered()
	p.logFlush(trigger, n)
	return nil
}

func (p *StreamingPolicy) setBuffered() {
	bytes := BatchBytes(p.buffer)
	p.mu.Lock()
	p.bufHeaders = len(p.buffer)
	p.bufBytes = bytes
	p.mu.Unlock()
}

// --- Logging helpers ---

func (p *StreamingPolicy) logFlush(trigger FlushTrigger, headers int) {
	if p.logger == nil {
		return
	}
	p.logger.Debug("streaming flush", map[string]any{
		"trigger": string(trigger),
		"headers": headers,
		"policy":  "streaming",
	})
}

func (p *StreamingPolicy) logFlushFailure(trigger FlushTrigger, headers int, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Error("streaming flush failed", map[string]any{
		"trigger": string(trigger),
		"headers": headers,
		"error":   err.Error(),
		"policy":  "streaming",
	})
}

func (p *StreamingPolicy) logDrop(headers int) {
	if p.logger == nil {
		return
	}
	p.logger.Warn("queue full, batch dropped", map[string]any{
		"headers": headers,
		"policy":  "streaming",
	})
}

var _ Policy = (*StreamingPolicy)(nil)
