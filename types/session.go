package types

import "time"

// SessionMeta identifies one framing session, i.e. one link.
type SessionMeta struct {
	// SessionID is a unique identifier (uuid) of the session.
	SessionID string `json:"session_id"`
	// Detector is a free-form detector name used for partitioning.
	Detector string `json:"detector"`
	// Link is the logical link name used for partitioning.
	Link string `json:"link"`
	// FeeID is the front-end identifier stamped into headers.
	FeeID uint16 `json:"fee_id"`
	// StartedAt is the session start time.
	StartedAt time.Time `json:"started_at"`
}

// TFOccupancy counts hit and empty heartbeat frames inside one time frame.
type TFOccupancy struct {
	TimeFrame int64 `json:"tf"`
	Hit       int64 `json:"hit"`
	Empty     int64 `json:"empty"`
}

// SessionSummary is the final snapshot of a session's counters.
type SessionSummary struct {
	SessionID string `json:"session_id"`
	Detector  string `json:"detector,omitempty"`
	Link      string `json:"link,omitempty"`
	State     string `json:"state"`

	FramesOpened      int64 `json:"frames_opened"`
	FramesClosed      int64 `json:"frames_closed"`
	EmptyFrames       int64 `json:"empty_frames"`
	NonEmptyFrames    int64 `json:"non_empty_frames"`
	TimeFrames        int64 `json:"time_frames"`
	ContinuationPages int64 `json:"continuation_pages"`
	Headers           int64 `json:"headers"`
	PayloadBytes      int64 `json:"payload_bytes"`

	GapsFilled      int64 `json:"gaps_filled"`
	RecordsAccepted int64 `json:"records_accepted"`
	RecordsRejected int64 `json:"records_rejected"`
	FramesHealed    int64 `json:"frames_healed"`
	FramesClamped   int64 `json:"frames_clamped"`

	// FirstFrame and LastFrame are meaningful only when FramesOpened > 0.
	FirstFrame int64 `json:"first_frame"`
	LastFrame  int64 `json:"last_frame"`

	Occupancy []TFOccupancy `json:"occupancy,omitempty"`
}

// Frames returns the total number of heartbeat frames opened.
func (s SessionSummary) Frames() int64 {
	return s.FramesOpened
}
