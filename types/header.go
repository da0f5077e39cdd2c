package types

import "strings"

// TriggerType is the trigger bit set carried by every raw data header.
// Bits not named here are reserved and never set by the synthesizer.
type TriggerType uint32

// Trigger bits.
const (
	// TriggerHeartbeat marks the page as belonging to a heartbeat frame.
	// Set on every synthesized header.
	TriggerHeartbeat TriggerType = 1 << 1
	// TriggerTimeFrame marks the first heartbeat frame of a time frame.
	TriggerTimeFrame TriggerType = 1 << 11
	// TriggerEmpty marks a heartbeat frame that carries no payload.
	TriggerEmpty TriggerType = 1 << 15
)

// Has reports whether all bits of flag are set.
func (t TriggerType) Has(flag TriggerType) bool {
	return t&flag == flag
}

// String renders the named bits, e.g. "HB|TF".
func (t TriggerType) String() string {
	var parts []string
	if t.Has(TriggerHeartbeat) {
		parts = append(parts, "HB")
	}
	if t.Has(TriggerTimeFrame) {
		parts = append(parts, "TF")
	}
	if t.Has(TriggerEmpty) {
		parts = append(parts, "EMPTY")
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "|")
}

// RawHeader is one raw data header page as emitted by a readout link.
//
// Each heartbeat frame produces exactly one open page (Stop=false,
// PageCounter=0), optional continuation pages, and one close page
// (Stop=true) stamped with the same Orbit/BC.
type RawHeader struct {
	// Version is the header layout version.
	Version uint8 `msgpack:"version" json:"version"`
	// HeaderSize is the size in bytes of the encoded header.
	HeaderSize uint16 `msgpack:"header_size" json:"header_size"`

	// Link identity.
	FeeID      uint16 `msgpack:"fee_id" json:"fee_id"`
	SourceID   uint8  `msgpack:"source_id" json:"source_id"`
	LinkID     uint8  `msgpack:"link_id" json:"link_id"`
	CruID      uint16 `msgpack:"cru_id" json:"cru_id"`
	EndpointID uint8  `msgpack:"endpoint_id" json:"endpoint_id"`

	// Orbit and BC identify the heartbeat frame (its first bunch crossing).
	Orbit uint32 `msgpack:"orbit" json:"orbit"`
	BC    uint16 `msgpack:"bc" json:"bc"`

	TriggerType   TriggerType `msgpack:"trigger_type" json:"trigger_type"`
	PacketCounter uint8       `msgpack:"packet_counter" json:"packet_counter"`
	PageCounter   uint16      `msgpack:"page_counter" json:"page_counter"`
	Stop          bool        `msgpack:"stop" json:"stop"`

	// MemorySize is header size plus the payload bytes of this page.
	MemorySize uint16 `msgpack:"memory_size" json:"memory_size"`
	// OffsetToNext is the distance in bytes to the next header.
	OffsetToNext uint16 `msgpack:"offset_to_next" json:"offset_to_next"`
}

// IsOpen reports whether h is the opening page of a heartbeat frame.
func (h RawHeader) IsOpen() bool {
	return !h.Stop && h.PageCounter == 0
}

// IsContinuation reports whether h is a non-final page after the open page.
func (h RawHeader) IsContinuation() bool {
	return !h.Stop && h.PageCounter > 0
}

// IsEmpty reports whether h belongs to a frame without data.
func (h RawHeader) IsEmpty() bool {
	return h.TriggerType.Has(TriggerEmpty)
}

// PayloadBytes returns the payload bytes following the header on this page.
func (h RawHeader) PayloadBytes() int {
	if h.MemorySize <= h.HeaderSize {
		return 0
	}
	return int(h.MemorySize - h.HeaderSize)
}

// IR returns the frame stamp as an InteractionRecord.
func (h RawHeader) IR() InteractionRecord {
	return InteractionRecord{Orbit: h.Orbit, BC: h.BC}
}
