package policy

import (
	"context"

	"github.com/justapithecus/hbframe/types"
)

// StrictPolicy implements synchronous, unbuffered persistence.
//
//   - No buffering: each batch is written immediately
//   - No drops
//   - Backpressure: the producer blocks on sink latency
//   - Sink errors fail the session
type StrictPolicy struct {
	sink  Sink
	stats *statsRecorder
}

// NewStrictPolicy creates a new strict policy writing to the given sink.
func NewStrictPolicy(sink Sink) *StrictPolicy {
	return &StrictPolicy{sink: sink, stats: newStatsRecorder()}
}

// Ingest writes the batch immediately.
func (p *StrictPolicy) Ingest(ctx context.Context, batch []types.RawHeader) error {
	if len(batch) == 0 {
		return nil
	}
	p.stats.incReceived(len(batch))

	if err := p.sink.WriteHeaders(ctx, batch); err != nil {
		p.stats.incErrors()
		return err
	}
	p.stats.incPersisted(len(batch))
	return nil
}

// Flush is a no-op for strict policy (nothing is buffered).
func (p *StrictPolicy) Flush(_ context.Context) error {
	p.stats.incFlush()
	return nil
}

// Close closes the underlying sink.
func (p *StrictPolicy) Close() error {
	return p.sink.Close()
}

// Stats returns policy statistics.
func (p *StrictPolicy) Stats() Stats {
	return p.stats.snapshot()
}

var _ Policy = (*StrictPolicy)(nil)
