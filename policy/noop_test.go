package policy_test

import (
	"testing"

	"github.com/justapithecus/hbframe/policy"
)

func TestNoopPolicy_CountsOnly(t *testing.T) {
	pol := policy.NewNoopPolicy()

	for i := range 4 {
		if err := pol.Ingest(t.Context(), batch(i*2, 2)); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}
	if err := pol.Flush(t.Context()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := pol.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	stats := pol.Stats()
	if stats.Batches != 4 || stats.HeadersReceived != 8 || stats.HeadersPersisted != 8 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.FlushCount != 1 {
		t.Errorf("FlushCount = %d, want 1", stats.FlushCount)
	}
}
