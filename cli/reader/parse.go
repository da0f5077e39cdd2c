package reader

import (
	"errors"

	"github.com/justapithecus/hbframe/runtime"
	"github.com/justapithecus/hbframe/types"
)

// ParseSummaryRecord converts a Lode summary record (map[string]any) to
// SessionStats. Handles both int64 (direct writes) and float64 (JSON
// round-trips) for numeric fields.
func ParseSummaryRecord(record map[string]any) (*SessionStats, error) {
	if record == nil {
		return nil, errors.New("nil record")
	}

	s := &SessionStats{
		SessionID: toString(record["session_id"]),
		Detector:  toString(record["detector"]),
		Link:      toString(record["link"]),
		Day:       toString(record["day"]),
		State:     toString(record["state"]),
		Outcome:   toString(record["outcome"]),
		Message:   toString(record["message"]),

		FramesOpened:      toInt64(record["frames_opened"]),
		FramesClosed:      toInt64(record["frames_closed"]),
		EmptyFrames:       toInt64(record["empty_frames"]),
		NonEmptyFrames:    toInt64(record["non_empty_frames"]),
		TimeFrames:        toInt64(record["time_frames"]),
		ContinuationPages: toInt64(record["continuation_pages"]),
		Headers:           toInt64(record["headers"]),
		PayloadBytes:      toInt64(record["payload_bytes"]),
		GapsFilled:        toInt64(record["gaps_filled"]),
		RecordsAccepted:   toInt64(record["records_accepted"]),
		RecordsRejected:   toInt64(record["records_rejected"]),
		FramesHealed:      toInt64(record["frames_healed"]),
		FramesClamped:     toInt64(record["frames_clamped"]),
		FirstFrame:        toInt64(record["first_frame"]),
		LastFrame:         toInt64(record["last_frame"]),

		CompletedAt: toString(record["completed_at"]),
	}

	// The write path always populates these.
	if s.SessionID == "" {
		return nil, errors.New("summary record missing required field: session_id")
	}
	if s.Outcome == "" {
		return nil, errors.New("summary record missing required field: outcome")
	}
	return s, nil
}

// ParseMetricsRecord converts a Lode metrics record to a MetricsSnapshot.
func ParseMetricsRecord(record map[string]any) (*MetricsSnapshot, error) {
	if record == nil {
		return nil, errors.New("nil record")
	}

	snap := &MetricsSnapshot{
		Ts: toString(record["ts"]),

		SessionsStarted:   toInt64(record["sessions_started_total"]),
		SessionsCompleted: toInt64(record["sessions_completed_total"]),
		SessionsFailed:    toInt64(record["sessions_failed_total"]),
		SessionsCancelled: toInt64(record["sessions_cancelled_total"]),

		RecordsAccepted: toInt64(record["records_accepted_total"]),
		RecordsRejected: toInt64(record["records_rejected_total"]),
		UnorderedInputs: toInt64(record["unordered_inputs_total"]),
		IPCDecodeErrors: toInt64(record["ipc_decode_errors_total"]),
		HeadersEmitted:  toInt64(record["headers_emitted_total"]),
		FramesHealed:    toInt64(record["frames_healed_total"]),

		HeadersReceived:  toInt64(record["headers_received_total"]),
		HeadersPersisted: toInt64(record["headers_persisted_total"]),
		HeadersDropped:   toInt64(record["headers_dropped_total"]),
		BatchesDropped:   toInt64(record["batches_dropped_total"]),

		SinkWriteSuccess: toInt64(record["sink_write_success_total"]),
		SinkWriteFailure: toInt64(record["sink_write_failure_total"]),

		Policy:         toString(record["policy"]),
		StorageBackend: toString(record["storage_backend"]),
		SessionID:      toString(record["session_id"]),
		Detector:       toString(record["detector"]),
		Link:           toString(record["link"]),
	}

	if snap.Ts == "" {
		return nil, errors.New("metrics record missing required field: ts")
	}
	if snap.SessionID == "" {
		return nil, errors.New("metrics record missing required field: session_id")
	}
	if snap.Policy == "" {
		return nil, errors.New("metrics record missing required field: policy")
	}
	return snap, nil
}

// SessionsFromReport lists the link sessions of a run report.
func SessionsFromReport(report *runtime.SessionReport) []SessionStats {
	out := make([]SessionStats, 0, len(report.Links))
	for _, l := range report.Links {
		out = append(out, fromSummary(l.Summary, report.Detector, l.Link, l.SessionID, types.SessionOutcome{
			Status:  l.Outcome,
			Message: l.Message,
		}))
	}
	return out
}

func fromSummary(sum types.SessionSummary, detector, link, sessionID string, outcome types.SessionOutcome) SessionStats {
	return SessionStats{
		SessionID:         sessionID,
		Detector:          detector,
		Link:              link,
		State:             sum.State,
		Outcome:           string(outcome.Status),
		Message:           outcome.Message,
		FramesOpened:      sum.FramesOpened,
		FramesClosed:      sum.FramesClosed,
		EmptyFrames:       sum.EmptyFrames,
		NonEmptyFrames:    sum.NonEmptyFrames,
		TimeFrames:        sum.TimeFrames,
		ContinuationPages: sum.ContinuationPages,
		Headers:           sum.Headers,
		PayloadBytes:      sum.PayloadBytes,
		GapsFilled:        sum.GapsFilled,
		RecordsAccepted:   sum.RecordsAccepted,
		RecordsRejected:   sum.RecordsRejected,
		FramesHealed:      sum.FramesHealed,
		FramesClamped:     sum.FramesClamped,
		FirstFrame:        sum.FirstFrame,
		LastFrame:         sum.LastFrame,
	}
}

// toInt64 converts a value to int64, handling float64 from JSON and int64 from direct writes.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	default:
		return 0
	}
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// MetricsFromReport returns the run-level metrics of a report, summed over
// all links.
func MetricsFromReport(report *runtime.SessionReport, ts string) *MetricsSnapshot {
	m := report.Metrics
	return &MetricsSnapshot{
		Ts:                ts,
		SessionsStarted:   m.SessionsStarted,
		SessionsCompleted: m.SessionsCompleted,
		SessionsFailed:    m.SessionsFailed,
		SessionsCancelled: m.SessionsCancelled,
		RecordsAccepted:   m.RecordsAccepted,
		RecordsRejected:   m.RecordsRejected,
		UnorderedInputs:   m.UnorderedInputs,
		IPCDecodeErrors:   m.IPCDecodeErrors,
		HeadersEmitted:    m.HeadersEmitted,
		FramesHealed:      m.FramesHealed,
		HeadersReceived:   m.HeadersReceived,
		HeadersPersisted:  m.HeadersPersisted,
		HeadersDropped:    m.HeadersDropped,
		BatchesDropped:    m.BatchesDropped,
		SinkWriteSuccess:  m.SinkWriteSuccess,
		SinkWriteFailure:  m.SinkWriteFailure,
		Policy:            m.Policy,
		StorageBackend:    m.StorageBackend,
		SessionID:         m.SessionID,
		Detector:          report.Detector,
		Link:              m.Link,
	}
}
