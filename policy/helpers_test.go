package policy_test

import (
	"testing"
	"time"

	"github.com/justapithecus/hbframe/types"
)

// batch returns n headers with consecutive packet counters starting at start.
func batch(start, n int) []types.RawHeader {
	out := make([]types.RawHeader, n)
	for i := range out {
		out[i] = types.RawHeader{
			HeaderSize:    64,
			PacketCounter: uint8(start + i),
			MemorySize:    64,
			OffsetToNext:  64,
		}
	}
	return out
}

func packets(hs []types.RawHeader) []int {
	out := make([]int, len(hs))
	for i, h := range hs {
		out[i] = int(h.PacketCounter)
	}
	return out
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}
