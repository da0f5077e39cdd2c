package metrics

import (
	"sync"
	"testing"
)

func TestCollector_IncrementMethods(t *testing.T) {
	c := NewCollector(Dimensions{Policy: "strict", StorageBackend: "fs", SessionID: "s-1", Detector: "tpc", Link: "l0"})

	c.IncSessionStarted()
	c.IncSessionCompleted()
	c.IncSessionFailed()
	c.IncSessionFailed()
	c.IncSessionCancelled()
	c.IncRecordAccepted()
	c.IncRecordAccepted()
	c.IncRecordRejected()
	c.IncUnorderedInput()
	c.IncIPCDecodeErrors()
	c.AddHeadersEmitted(12)
	c.IncFramesHealed()
	c.IncSinkWriteSuccess()
	c.IncSinkWriteSuccess()
	c.IncSinkWriteFailure()

	s := c.Snapshot()

	checks := []struct {
		name      string
		got, want int64
	}{
		{"SessionsStarted", s.SessionsStarted, 1},
		{"SessionsCompleted", s.SessionsCompleted, 1},
		{"SessionsFailed", s.SessionsFailed, 2},
		{"SessionsCancelled", s.SessionsCancelled, 1},
		{"RecordsAccepted", s.RecordsAccepted, 2},
		{"RecordsRejected", s.RecordsRejected, 1},
		{"UnorderedInputs", s.UnorderedInputs, 1},
		{"IPCDecodeErrors", s.IPCDecodeErrors, 1},
		{"HeadersEmitted", s.HeadersEmitted, 12},
		{"FramesHealed", s.FramesHealed, 1},
		{"SinkWriteSuccess", s.SinkWriteSuccess, 2},
		{"SinkWriteFailure", s.SinkWriteFailure, 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}

	if s.Policy != "strict" || s.StorageBackend != "fs" || s.SessionID != "s-1" || s.Detector != "tpc" || s.Link != "l0" {
		t.Errorf("dimensions = %+v", s)
	}
}

func TestCollector_AbsorbPolicyStats(t *testing.T) {
	c := NewCollector(Dimensions{Policy: "streaming"})
	c.AbsorbPolicyStats(100, 90, 10, 2)
	c.AbsorbPolicyStats(200, 180, 20, 4) // last absorb wins

	s := c.Snapshot()
	if s.HeadersReceived != 200 || s.HeadersPersisted != 180 || s.HeadersDropped != 20 || s.BatchesDropped != 4 {
		t.Errorf("absorbed = %+v", s)
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.IncSessionStarted()
	c.AddHeadersEmitted(3)
	c.AbsorbPolicyStats(1, 1, 0, 0)
	if s := c.Snapshot(); s != (Snapshot{}) {
		t.Errorf("nil collector snapshot = %+v", s)
	}
}

func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector(Dimensions{})
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 1000 {
				c.IncRecordAccepted()
				c.IncSinkWriteSuccess()
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	if s.RecordsAccepted != 8000 || s.SinkWriteSuccess != 8000 {
		t.Errorf("concurrent counts = %d / %d", s.RecordsAccepted, s.SinkWriteSuccess)
	}
}

func TestSum(t *testing.T) {
	a := Snapshot{SessionsStarted: 1, HeadersEmitted: 10, Policy: "strict", SessionID: "a", Detector: "tpc"}
	b := Snapshot{SessionsStarted: 1, HeadersEmitted: 5, HeadersDropped: 2, Policy: "strict", SessionID: "b", Detector: "tpc"}

	s := Sum(a, b)
	if s.SessionsStarted != 2 || s.HeadersEmitted != 15 || s.HeadersDropped != 2 {
		t.Errorf("Sum counters = %+v", s)
	}
	if s.SessionID != "" || s.Detector != "tpc" || s.Policy != "strict" {
		t.Errorf("Sum dimensions = %+v", s)
	}
	if Sum() != (Snapshot{}) {
		t.Error("Sum() of nothing not zero")
	}
}
