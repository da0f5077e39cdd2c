package policy

import (
	"context"
	"slices"
	"sync"

	"github.com/justapithecus/hbframe/types"
)

// Sink abstracts persistence for policies.
// Implementations may write raw pages, forward to a stream, store in Lode,
// or stub for testing.
type Sink interface {
	// WriteHeaders persists a batch of headers.
	// Must preserve ordering within the batch.
	WriteHeaders(ctx context.Context, headers []types.RawHeader) error

	// Close releases any resources held by the sink.
	Close() error
}

// StubSink is a test sink that records writes without persisting.
type StubSink struct {
	mu sync.Mutex

	// HeadersWritten is the total count of headers written.
	HeadersWritten int64
	// Batches is the number of WriteHeaders calls that succeeded.
	Batches int64
	// Closed indicates whether Close was called.
	Closed bool

	// Written stores copies of all written headers, in order.
	Written []types.RawHeader

	// ErrorOnWrite, if non-nil, is returned by WriteHeaders.
	ErrorOnWrite error

	// Gate, if non-nil, makes WriteHeaders wait until it is closed.
	Gate chan struct{}

	inFlight int
}

// NewStubSink creates a new stub sink for testing.
func NewStubSink() *StubSink {
	return &StubSink{}
}

// WriteHeaders records the headers.
func (s *StubSink) WriteHeaders(ctx context.Context, headers []types.RawHeader) error {
	s.mu.Lock()
	gate := s.Gate
	s.inFlight++
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--

	if s.ErrorOnWrite != nil {
		return s.ErrorOnWrite
	}
	s.Batches++
	s.HeadersWritten += int64(len(headers))
	s.Written = append(s.Written, slices.Clone(headers)...)
	return nil
}

// Close marks the sink as closed.
func (s *StubSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Closed = true
	return nil
}

// SetError changes ErrorOnWrite under the sink's lock.
func (s *StubSink) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ErrorOnWrite = err
}

// InFlight returns the number of WriteHeaders calls in progress.
func (s *StubSink) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Headers returns a copy of the recorded headers.
func (s *StubSink) Headers() []types.RawHeader {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.Written)
}

// Stats returns a snapshot of sink statistics.
func (s *StubSink) Stats() StubSinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StubSinkStats{
		HeadersWritten: s.HeadersWritten,
		Batches:        s.Batches,
		Closed:         s.Closed,
	}
}

// StubSinkStats is a snapshot of StubSink statistics.
type StubSinkStats struct {
	HeadersWritten int64
	Batches        int64
	Closed         bool
}
