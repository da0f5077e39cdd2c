package policy

import (
	"context"

	"github.com/justapithecus/hbframe/types"
)

// NoopPolicy counts batches without writing them anywhere.
// Headers are reported as persisted so that dry runs produce the same
// summary as real ones.
type NoopPolicy struct {
	stats *statsRecorder
}

// NewNoopPolicy creates a new no-op policy.
func NewNoopPolicy() *NoopPolicy {
	return &NoopPolicy{stats: newStatsRecorder()}
}

// Ingest counts the batch.
func (p *NoopPolicy) Ingest(_ context.Context, batch []types.RawHeader) error {
	if len(batch) == 0 {
		return nil
	}
	p.stats.incReceived(len(batch))
	p.stats.incPersisted(len(batch))
	return nil
}

// Flush is a no-op.
func (p *NoopPolicy) Flush(_ context.Context) error {
	p.stats.incFlush()
	return nil
}

// Close is a no-op.
func (p *NoopPolicy) Close() error {
	return nil
}

// Stats returns the policy statistics.
func (p *NoopPolicy) Stats() Stats {
	return p.stats.snapshot()
}

var _ Policy = (*NoopPolicy)(nil)
