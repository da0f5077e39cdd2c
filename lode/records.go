package lode

import (
	"time"

	"github.com/justapithecus/hbframe/metrics"
	"github.com/justapithecus/hbframe/types"
)

// RecordKind discriminator values. record_kind is also the last partition key.
const (
	RecordKindHeader  = "header"
	RecordKindSummary = "summary"
	RecordKindMetrics = "metrics"
)

// partitionKeys is the Hive layout shared by the write and read paths.
var partitionKeys = []string{"detector", "link", "day", "session_id", "record_kind"}

func partitionMap(cfg Config, kind string) map[string]any {
	return map[string]any{
		"record_kind": kind,
		"detector":    cfg.Detector,
		"link":        cfg.Link,
		"day":         cfg.Day,
		"session_id":  cfg.SessionID,
	}
}

// toHeaderRecordMap converts a header page to a map for Lode storage.
// Lode HiveLayout requires records as map[string]any.
func toHeaderRecordMap(h types.RawHeader, seq int64, cfg Config) map[string]any {
	m := partitionMap(cfg, RecordKindHeader)
	m["seq"] = seq
	m["version"] = h.Version
	m["header_size"] = h.HeaderSize
	m["fee_id"] = h.FeeID
	m["source_id"] = h.SourceID
	m["link_id"] = h.LinkID
	m["cru_id"] = h.CruID
	m["endpoint_id"] = h.EndpointID
	m["orbit"] = h.Orbit
	m["bc"] = h.BC
	m["trigger_type"] = uint32(h.TriggerType)
	m["trigger"] = h.TriggerType.String()
	m["packet_counter"] = h.PacketCounter
	m["page_counter"] = h.PageCounter
	m["stop"] = h.Stop
	m["memory_size"] = h.MemorySize
	m["offset_to_next"] = h.OffsetToNext
	return m
}

// toSummaryRecordMap converts a session summary and outcome to a map.
func toSummaryRecordMap(s types.SessionSummary, outcome types.SessionOutcome, completedAt time.Time, cfg Config) map[string]any {
	m := partitionMap(cfg, RecordKindSummary)
	m["state"] = s.State
	m["outcome"] = string(outcome.Status)
	m["message"] = outcome.Message
	m["frames_opened"] = s.FramesOpened
	m["frames_closed"] = s.FramesClosed
	m["empty_frames"] = s.EmptyFrames
	m["non_empty_frames"] = s.NonEmptyFrames
	m["time_frames"] = s.TimeFrames
	m["continuation_pages"] = s.ContinuationPages
	m["headers"] = s.Headers
	m["payload_bytes"] = s.PayloadBytes
	m["gaps_filled"] = s.GapsFilled
	m["records_accepted"] = s.RecordsAccepted
	m["records_rejected"] = s.RecordsRejected
	m["frames_healed"] = s.FramesHealed
	m["frames_clamped"] = s.FramesClamped
	m["first_frame"] = s.FirstFrame
	m["last_frame"] = s.LastFrame
	m["completed_at"] = completedAt.UTC().Format(time.RFC3339Nano)
	return m
}

// toMetricsRecordMap converts a metrics snapshot to a map. Counter names
// carry a _total suffix.
func toMetricsRecordMap(s metrics.Snapshot, completedAt time.Time, cfg Config) map[string]any {
	m := partitionMap(cfg, RecordKindMetrics)
	m["sessions_started_total"] = s.SessionsStarted
	m["sessions_completed_total"] = s.SessionsCompleted
	m["sessions_failed_total"] = s.SessionsFailed
	m["sessions_cancelled_total"] = s.SessionsCancelled
	m["records_accepted_total"] = s.RecordsAccepted
	m["records_rejected_total"] = s.RecordsRejected
	m["unordered_inputs_total"] = s.UnorderedInputs
	m["ipc_decode_errors_total"] = s.IPCDecodeErrors
	m["headers_emitted_total"] = s.HeadersEmitted
	m["frames_healed_total"] = s.FramesHealed
	m["headers_received_total"] = s.HeadersReceived
	m["headers_persisted_total"] = s.HeadersPersisted
	m["headers_dropped_total"] = s.HeadersDropped
	m["batches_dropped_total"] = s.BatchesDropped
	m["sink_write_success_total"] = s.SinkWriteSuccess
	m["sink_write_failure_total"] = s.SinkWriteFailure
	m["policy"] = s.Policy
	m["storage_backend"] = s.StorageBackend
	m["ts"] = completedAt.UTC().Format(time.RFC3339Nano)
	if m["policy"] == "" {
		m["policy"] = cfg.Policy
	}
	return m
}
