package policy_test

import (
	"errors"
	"testing"

	"github.com/justapithecus/hbframe/policy"
)

func TestStrictPolicy_ImmediateWrite(t *testing.T) {
	sink := policy.NewStubSink()
	pol := policy.NewStrictPolicy(sink)

	if err := pol.Ingest(t.Context(), batch(0, 3)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sinkStats := sink.Stats()
	if sinkStats.HeadersWritten != 3 || sinkStats.Batches != 1 {
		t.Errorf("sink stats = %+v, want 3 headers in 1 batch", sinkStats)
	}

	stats := pol.Stats()
	if stats.Batches != 1 || stats.HeadersReceived != 3 || stats.HeadersPersisted != 3 {
		t.Errorf("policy stats = %+v", stats)
	}
	if stats.HeadersDropped != 0 {
		t.Errorf("strict policy should never drop, got %d", stats.HeadersDropped)
	}
}

func TestStrictPolicy_EmptyBatchIgnored(t *testing.T) {
	sink := policy.NewStubSink()
	pol := policy.NewStrictPolicy(sink)

	if err := pol.Ingest(t.Context(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sink.Stats().Batches != 0 || pol.Stats().Batches != 0 {
		t.Error("empty batch reached the sink")
	}
}

func TestStrictPolicy_SinkError(t *testing.T) {
	sinkErr := errors.New("disk full")
	sink := policy.NewStubSink()
	sink.ErrorOnWrite = sinkErr
	pol := policy.NewStrictPolicy(sink)

	if err := pol.Ingest(t.Context(), batch(0, 2)); !errors.Is(err, sinkErr) {
		t.Fatalf("expected sink error, got %v", err)
	}
	stats := pol.Stats()
	if stats.Errors != 1 || stats.HeadersPersisted != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestStrictPolicy_CloseClosesSink(t *testing.T) {
	sink := policy.NewStubSink()
	pol := policy.NewStrictPolicy(sink)

	if err := pol.Flush(t.Context()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := pol.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !sink.Stats().Closed {
		t.Error("sink not closed")
	}
	if pol.Stats().FlushCount != 1 {
		t.Errorf("FlushCount = %d, want 1", pol.Stats().FlushCount)
	}
}
