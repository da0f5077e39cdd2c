package policy_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/justapithecus/hbframe/policy"
)

func mustNewBufferedPolicy(t *testing.T, sink policy.Sink, config policy.BufferedConfig) *policy.BufferedPolicy {
	t.Helper()
	pol, err := policy.NewBufferedPolicy(sink, config)
	if err != nil {
		t.Fatalf("NewBufferedPolicy failed: %v", err)
	}
	return pol
}

func TestBufferedPolicy_InvalidConfig(t *testing.T) {
	sink := policy.NewStubSink()
	if _, err := policy.NewBufferedPolicy(sink, policy.BufferedConfig{}); !errors.Is(err, policy.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
	_, err := policy.NewBufferedPolicy(sink, policy.BufferedConfig{MaxBufferHeaders: 1, Backpressure: "spill"})
	if !errors.Is(err, policy.ErrInvalidBackpressure) {
		t.Errorf("expected ErrInvalidBackpressure, got %v", err)
	}
}

func TestBufferedPolicy_BuffersUntilFlush(t *testing.T) {
	sink := policy.NewStubSink()
	pol := mustNewBufferedPolicy(t, sink, policy.BufferedConfig{MaxBufferHeaders: 10})

	if err := pol.Ingest(t.Context(), batch(0, 3)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := pol.Ingest(t.Context(), batch(3, 3)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if sink.Stats().HeadersWritten != 0 {
		t.Fatal("buffered policy wrote before flush")
	}
	stats := pol.Stats()
	if stats.BufferedHeaders != 6 || stats.BufferBytes != 6*64 {
		t.Errorf("buffer = %d headers / %d bytes", stats.BufferedHeaders, stats.BufferBytes)
	}

	if err := pol.Flush(t.Context()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := packets(sink.Headers()); !slices.Equal(got, []int{0, 1, 2, 3, 4, 5}) {
		t.Errorf("written packets = %v", got)
	}
	if sink.Stats().Batches != 1 {
		t.Errorf("expected one sink write, got %d", sink.Stats().Batches)
	}
	if pol.Stats().BufferedHeaders != 0 {
		t.Error("buffer not emptied")
	}
}

func TestBufferedPolicy_BlockFlushesWhenFull(t *testing.T) {
	sink := policy.NewStubSink()
	pol := mustNewBufferedPolicy(t, sink, policy.BufferedConfig{MaxBufferHeaders: 4})

	for i := range 3 {
		if err := pol.Ingest(t.Context(), batch(i*2, 2)); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}

	// Third batch did not fit: the first two were flushed first.
	if got := packets(sink.Headers()); !slices.Equal(got, []int{0, 1, 2, 3}) {
		t.Errorf("written packets = %v", got)
	}
	if pol.Stats().HeadersDropped != 0 {
		t.Error("block backpressure dropped headers")
	}
}

func TestBufferedPolicy_OversizedBatchWritesThrough(t *testing.T) {
	sink := policy.NewStubSink()
	pol := mustNewBufferedPolicy(t, sink, policy.BufferedConfig{MaxBufferHeaders: 2})

	if err := pol.Ingest(t.Context(), batch(0, 1)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := pol.Ingest(t.Context(), batch(1, 5)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if got := packets(sink.Headers()); !slices.Equal(got, []int{0, 1, 2, 3, 4, 5}) {
		t.Errorf("written packets = %v", got)
	}
}

func TestBufferedPolicy_DropFlushesBeforeDiscarding(t *testing.T) {
	sink := policy.NewStubSink()
	pol := mustNewBufferedPolicy(t, sink, policy.BufferedConfig{
		MaxBufferBytes: 4 * 64,
		Backpressure:   policy.BackpressureDrop,
	})

	for i := range 5 {
		if err := pol.Ingest(t.Context(), batch(i*2, 2)); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}
	if err := pol.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if stats := pol.Stats(); stats.BatchesDropped != 0 || stats.HeadersPersisted != 10 {
		t.Errorf("stats = %+v", stats)
	}
	if got := packets(sink.Headers()); !slices.Equal(got, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}) {
		t.Errorf("written packets = %v", got)
	}
	if !sink.Stats().Closed {
		t.Error("sink not closed")
	}
}

func TestBufferedPolicy_DropWhenSinkFails(t *testing.T) {
	sink := policy.NewStubSink()
	pol := mustNewBufferedPolicy(t, sink, policy.BufferedConfig{
		MaxBufferHeaders: 2,
		Backpressure:     policy.BackpressureDrop,
	})

	if err := pol.Ingest(t.Context(), batch(0, 2)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	sink.SetError(errors.New("unavailable"))
	if err := pol.Ingest(t.Context(), batch(2, 2)); err != nil {
		t.Fatalf("Ingest under drop = %v, want nil", err)
	}
	if err := pol.Ingest(t.Context(), batch(4, 3)); err != nil {
		t.Fatalf("Ingest under drop = %v, want nil", err)
	}

	stats := pol.Stats()
	if stats.BatchesDropped != 2 || stats.HeadersDropped != 5 || stats.BufferedHeaders != 2 {
		t.Errorf("drop stats = %+v", stats)
	}

	sink.SetError(nil)
	if err := pol.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := packets(sink.Headers()); !slices.Equal(got, []int{0, 1}) {
		t.Errorf("written packets = %v", got)
	}
}

func TestBufferedPolicy_FlushFailureKeepsBuffer(t *testing.T) {
	sinkErr := errors.New("unavailable")
	sink := policy.NewStubSink()
	pol := mustNewBufferedPolicy(t, sink, policy.BufferedConfig{MaxBufferHeaders: 10})

	if err := pol.Ingest(t.Context(), batch(0, 2)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	sink.SetError(sinkErr)
	if err := pol.Flush(t.Context()); !errors.Is(err, sinkErr) {
		t.Fatalf("Flush error = %v", err)
	}
	if pol.Stats().BufferedHeaders != 2 {
		t.Errorf("buffer lost on failure: %+v", pol.Stats())
	}

	sink.SetError(nil)
	if err := pol.Flush(t.Context()); err != nil {
		t.Fatalf("retry Flush: %v", err)
	}
	if got := packets(sink.Headers()); !slices.Equal(got, []int{0, 1}) {
		t.Errorf("written packets = %v", got)
	}
	if pol.Stats().Errors != 1 {
		t.Errorf("Errors = %d, want 1", pol.Stats().Errors)
	}
}
