package lode

import (
	"context"

	"github.com/justapithecus/hbframe/metrics"
	"github.com/justapithecus/hbframe/policy"
	"github.com/justapithecus/hbframe/types"
)

// InstrumentedSink wraps a policy.Sink and counts write calls. Each
// WriteHeaders call increments sink_write_success or sink_write_failure.
type InstrumentedSink struct {
	inner     policy.Sink
	collector *metrics.Collector
}

// NewInstrumentedSink wraps a sink with metrics instrumentation.
func NewInstrumentedSink(inner policy.Sink, collector *metrics.Collector) *InstrumentedSink {
	return &InstrumentedSink{inner: inner, collector: collector}
}

// WriteHeaders delegates to the inner sink and records success or failure.
func (s *InstrumentedSink) WriteHeaders(ctx context.Context, headers []types.RawHeader) error {
	err := s.inner.WriteHeaders(ctx, headers)
	if err != nil {
		s.collector.IncSinkWriteFailure()
	} else {
		s.collector.IncSinkWriteSuccess()
	}
	return err
}

// Close delegates to the inner sink.
func (s *InstrumentedSink) Close() error {
	return s.inner.Close()
}

var _ policy.Sink = (*InstrumentedSink)(nil)
