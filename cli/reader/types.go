// Package reader loads the data shown by the read-only hbframe commands:
// header files for inspect, and summary and metrics records or run reports
// for stats. Renderers and the TUI consume the types defined here.
package reader

// SessionStats is one link session as shown by stats.
type SessionStats struct {
	SessionID string `json:"session_id" yaml:"session_id"`
	Detector  string `json:"detector" yaml:"detector"`
	Link      string `json:"link" yaml:"link"`
	Day       string `json:"day,omitempty" yaml:"day,omitempty"`
	State     string `json:"state" yaml:"state"`
	Outcome   string `json:"outcome" yaml:"outcome"`
	Message   string `json:"message,omitempty" yaml:"message,omitempty"`

	FramesOpened      int64 `json:"frames_opened" yaml:"frames_opened"`
	FramesClosed      int64 `json:"frames_closed" yaml:"frames_closed"`
	EmptyFrames       int64 `json:"empty_frames" yaml:"empty_frames"`
	NonEmptyFrames    int64 `json:"non_empty_frames" yaml:"non_empty_frames"`
	TimeFrames        int64 `json:"time_frames" yaml:"time_frames"`
	ContinuationPages int64 `json:"continuation_pages" yaml:"continuation_pages"`
	Headers           int64 `json:"headers" yaml:"headers"`
	PayloadBytes      int64 `json:"payload_bytes" yaml:"payload_bytes"`
	GapsFilled        int64 `json:"gaps_filled" yaml:"gaps_filled"`
	RecordsAccepted   int64 `json:"records_accepted" yaml:"records_accepted"`
	RecordsRejected   int64 `json:"records_rejected" yaml:"records_rejected"`
	FramesHealed      int64 `json:"frames_healed" yaml:"frames_healed"`
	FramesClamped     int64 `json:"frames_clamped" yaml:"frames_clamped"`
	FirstFrame        int64 `json:"first_frame" yaml:"first_frame"`
	LastFrame         int64 `json:"last_frame" yaml:"last_frame"`

	CompletedAt string `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
}

// MetricsSnapshot is a stored metrics record.
type MetricsSnapshot struct {
	Ts string `json:"ts" yaml:"ts"`

	SessionsStarted   int64 `json:"sessions_started_total" yaml:"sessions_started_total"`
	SessionsCompleted int64 `json:"sessions_completed_total" yaml:"sessions_completed_total"`
	SessionsFailed    int64 `json:"sessions_failed_total" yaml:"sessions_failed_total"`
	SessionsCancelled int64 `json:"sessions_cancelled_total" yaml:"sessions_cancelled_total"`

	RecordsAccepted int64 `json:"records_accepted_total" yaml:"records_accepted_total"`
	RecordsRejected int64 `json:"records_rejected_total" yaml:"records_rejected_total"`
	UnorderedInputs int64 `json:"unordered_inputs_total" yaml:"unordered_inputs_total"`
	IPCDecodeErrors int64 `json:"ipc_decode_errors_total" yaml:"ipc_decode_errors_total"`
	HeadersEmitted  int64 `json:"headers_emitted_total" yaml:"headers_emitted_total"`
	FramesHealed    int64 `json:"frames_healed_total" yaml:"frames_healed_total"`

	HeadersReceived  int64 `json:"headers_received_total" yaml:"headers_received_total"`
	HeadersPersisted int64 `json:"headers_persisted_total" yaml:"headers_persisted_total"`
	HeadersDropped   int64 `json:"headers_dropped_total" yaml:"headers_dropped_total"`
	BatchesDropped   int64 `json:"batches_dropped_total" yaml:"batches_dropped_total"`

	SinkWriteSuccess int64 `json:"sink_write_success_total" yaml:"sink_write_success_total"`
	SinkWriteFailure int64 `json:"sink_write_failure_total" yaml:"sink_write_failure_total"`

	Policy         string `json:"policy" yaml:"policy"`
	StorageBackend string `json:"storage_backend" yaml:"storage_backend"`
	SessionID      string `json:"session_id" yaml:"session_id"`
	Detector       string `json:"detector" yaml:"detector"`
	Link           string `json:"link" yaml:"link"`
}

// HeaderRow is one decoded header as listed by inspect.
type HeaderRow struct {
	Index   int    `json:"index" yaml:"index"`
	Kind    string `json:"kind" yaml:"kind"`
	HBF     int64  `json:"hbf" yaml:"hbf"`
	TF      int64  `json:"tf" yaml:"tf"`
	HBInTF  int64  `json:"hb_in_tf" yaml:"hb_in_tf"`
	Size    uint16 `json:"size" yaml:"size"`
	Orbit   uint32 `json:"orbit" yaml:"orbit"`
	BC      uint16 `json:"bc" yaml:"bc"`
	Trigger string `json:"trigger" yaml:"trigger"`
	Packet  uint8  `json:"packet" yaml:"packet"`
	Page    uint16 `json:"page" yaml:"page"`
	Stop    bool   `json:"stop" yaml:"stop"`
}

// FileTotals tallies one inspected file the way the frame counters do:
// opening headers count frames, closing headers count closes.
type FileTotals struct {
	TimeFrames  int64 `json:"time_frames" yaml:"time_frames"`
	Frames      int64 `json:"frames" yaml:"frames"`
	EmptyFrames int64 `json:"empty_frames" yaml:"empty_frames"`
	Opened      int64 `json:"opened" yaml:"opened"`
	Closed      int64 `json:"closed" yaml:"closed"`
}

// InspectFileResponse is the inspect output for one file.
type InspectFileResponse struct {
	Path    string      `json:"path" yaml:"path"`
	Format  string      `json:"format" yaml:"format"`
	Pages   int         `json:"pages" yaml:"pages"`
	Digest  string      `json:"digest,omitempty" yaml:"digest,omitempty"`
	Totals  FileTotals  `json:"totals" yaml:"totals"`
	Headers []HeaderRow `json:"headers" yaml:"headers"`
}
