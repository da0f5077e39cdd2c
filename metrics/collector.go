// Package metrics provides per-session metrics collection.
//
// The Collector accumulates counters during a single framing session. It is a
// leaf package with no internal dependencies. Ingestion policy metrics are
// absorbed from policy.Stats at session end rather than recorded live,
// avoiding double-counting.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Session lifecycle
	SessionsStarted   int64 `json:"sessions_started"`
	SessionsCompleted int64 `json:"sessions_completed"`
	SessionsFailed    int64 `json:"sessions_failed"`
	SessionsCancelled int64 `json:"sessions_cancelled"`

	// Input
	RecordsAccepted int64 `json:"records_accepted"`
	RecordsRejected int64 `json:"records_rejected"`
	UnorderedInputs int64 `json:"unordered_inputs"`
	IPCDecodeErrors int64 `json:"ipc_decode_errors"`

	// Framing
	HeadersEmitted int64 `json:"headers_emitted"`
	FramesHealed   int64 `json:"frames_healed"`

	// Ingestion (absorbed from policy.Stats at session end)
	HeadersReceived  int64 `json:"headers_received"`
	HeadersPersisted int64 `json:"headers_persisted"`
	HeadersDropped   int64 `json:"headers_dropped"`
	BatchesDropped   int64 `json:"batches_dropped"`

	// Sink / storage, counted per write call
	SinkWriteSuccess int64 `json:"sink_write_success"`
	SinkWriteFailure int64 `json:"sink_write_failure"`

	// Dimensions (informational, set at construction)
	Policy         string `json:"policy"`
	StorageBackend string `json:"storage_backend"`
	SessionID      string `json:"session_id"`
	Detector       string `json:"detector,omitempty"`
	Link           string `json:"link,omitempty"`
}

// Dimensions label a Collector.
type Dimensions struct {
	Policy         string
	StorageBackend string
	SessionID      string
	Detector       string
	Link           string
}

// Collector accumulates metrics during a single session.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu   sync.Mutex
	snap Snapshot
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(dims Dimensions) *Collector {
	return &Collector{snap: Snapshot{
		Policy:         dims.Policy,
		StorageBackend: dims.StorageBackend,
		SessionID:      dims.SessionID,
		Detector:       dims.Detector,
		Link:           dims.Link,
	}}
}

// add applies fn under the lock. No-op on a nil Collector.
func (c *Collector) add(fn func(s *Snapshot)) {
	if c == nil {
		return
	}
	c.mu.Lock()
	fn(&c.snap)
	c.mu.Unlock()
}

// --- Session lifecycle ---

// IncSessionStarted records a session start.
func (c *Collector) IncSessionStarted() { c.add(func(s *Snapshot) { s.SessionsStarted++ }) }

// IncSessionCompleted records a session that closed cleanly.
func (c *Collector) IncSessionCompleted() { c.add(func(s *Snapshot) { s.SessionsCompleted++ }) }

// IncSessionFailed records a session ended by an input, sink or invariant failure.
func (c *Collector) IncSessionFailed() { c.add(func(s *Snapshot) { s.SessionsFailed++ }) }

// IncSessionCancelled records a session aborted by cancellation.
func (c *Collector) IncSessionCancelled() { c.add(func(s *Snapshot) { s.SessionsCancelled++ }) }

// --- Input ---

// IncRecordAccepted records an interaction record placed on the grid.
func (c *Collector) IncRecordAccepted() { c.add(func(s *Snapshot) { s.RecordsAccepted++ }) }

// IncRecordRejected records an out-of-range interaction record.
func (c *Collector) IncRecordRejected() { c.add(func(s *Snapshot) { s.RecordsRejected++ }) }

// IncUnorderedInput records an ordering violation.
func (c *Collector) IncUnorderedInput() { c.add(func(s *Snapshot) { s.UnorderedInputs++ }) }

// IncIPCDecodeErrors records an undecodable ipc frame.
func (c *Collector) IncIPCDecodeErrors() { c.add(func(s *Snapshot) { s.IPCDecodeErrors++ }) }

// --- Framing ---

// AddHeadersEmitted records n synthesized headers.
func (c *Collector) AddHeadersEmitted(n int) {
	c.add(func(s *Snapshot) { s.HeadersEmitted += int64(n) })
}

// IncFramesHealed records a close page emitted for an aborted session.
func (c *Collector) IncFramesHealed() { c.add(func(s *Snapshot) { s.FramesHealed++ }) }

// --- Sink / storage ---
// Sink counters are per-call, not per-header. A single WriteHeaders call
// with N headers counts as 1 success.

// IncSinkWriteSuccess records a successful sink write call.
func (c *Collector) IncSinkWriteSuccess() { c.add(func(s *Snapshot) { s.SinkWriteSuccess++ }) }

// IncSinkWriteFailure records a failed sink write call.
func (c *Collector) IncSinkWriteFailure() { c.add(func(s *Snapshot) { s.SinkWriteFailure++ }) }

// --- Ingestion (absorbed from policy.Stats) ---

// AbsorbPolicyStats copies ingestion counters from the final policy
// snapshot. The arguments are plain integers to keep this package free of
// a dependency on policy.
func (c *Collector) AbsorbPolicyStats(received, persisted, dropped, batchesDropped int64) {
	c.add(func(s *Snapshot) {
		s.HeadersReceived = received
		s.HeadersPersisted = persisted
		s.HeadersDropped = dropped
		s.BatchesDropped = batchesDropped
	})
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Sum adds the counters of several snapshots. Dimensions are taken from the
// first snapshot; SessionID, Detector and Link are cleared when they differ.
func Sum(snaps ...Snapshot) Snapshot {
	if len(snaps) == 0 {
		return Snapshot{}
	}
	out := snaps[0]
	for _, s := range snaps[1:] {
		out.SessionsStarted += s.SessionsStarted
		out.SessionsCompleted += s.SessionsCompleted
		out.SessionsFailed += s.SessionsFailed
		out.SessionsCancelled += s.SessionsCancelled
		out.RecordsAccepted += s.RecordsAccepted
		out.RecordsRejected += s.RecordsRejected
		out.UnorderedInputs += s.UnorderedInputs
		out.IPCDecodeErrors += s.IPCDecodeErrors
		out.HeadersEmitted += s.HeadersEmitted
		out.FramesHealed += s.FramesHealed
		out.HeadersReceived += s.HeadersReceived
		out.HeadersPersisted += s.HeadersPersisted
		out.HeadersDropped += s.HeadersDropped
		out.BatchesDropped += s.BatchesDropped
		out.SinkWriteSuccess += s.SinkWriteSuccess
		out.SinkWriteFailure += s.SinkWriteFailure
		if s.SessionID != out.SessionID {
			out.SessionID = ""
		}
		if s.Detector != out.Detector {
			out.Detector = ""
		}
		if s.Link != out.Link {
			out.Link = ""
		}
	}
	return out
}
