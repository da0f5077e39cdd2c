// Package rdh synthesizes raw data headers for heartbeat frames and
// encodes them in the fixed 64-byte little-endian page layout.
package rdh

import (
	"errors"
	"fmt"
	"math"
)

// Layout and page constants.
const (
	// LayoutSize is the number of bytes used by the encoded header fields.
	LayoutSize = 64
	// MaxHeaderSize is the largest header size representable in the layout.
	MaxHeaderSize = 240
	// DefaultMaxPageSize is the reference readout page size.
	DefaultMaxPageSize = 8192
	// DefaultMinPayload is the smallest payload a hit frame carries.
	DefaultMinPayload = 16
	// DefaultPacketCounterBits is the packet counter width.
	DefaultPacketCounterBits = 8
	// MaxFramePages is the number of payload pages one frame may span.
	// Page counters run 0..MaxFramePages-1 and the close page takes
	// MaxFramePages, so the 16-bit counter never wraps inside a frame.
	MaxFramePages = math.MaxUint16
)

// Identity dresses every header of a link.
type Identity struct {
	FeeID      uint16 `yaml:"fee_id" json:"fee_id"`
	SourceID   uint8  `yaml:"source_id" json:"source_id"`
	LinkID     uint8  `yaml:"link_id" json:"link_id"`
	CruID      uint16 `yaml:"cru_id" json:"cru_id"`
	EndpointID uint8  `yaml:"endpoint_id" json:"endpoint_id"`
}

// Config parameterizes a Synthesizer.
type Config struct {
	// HeaderSize is the encoded size of one header (>= LayoutSize, multiple of 16).
	HeaderSize uint16 `yaml:"header_size" json:"header_size"`
	// MaxPageSize is the largest page (header plus payload) in bytes.
	MaxPageSize uint32 `yaml:"max_page_size" json:"max_page_size"`
	// MinPayload is the payload floor applied to hit frames.
	MinPayload uint32 `yaml:"min_payload" json:"min_payload"`
	// MaxFramePayload caps the payload of one hit frame. Larger frames are
	// clamped. Zero selects the largest payload that fits MaxFramePages.
	MaxFramePayload uint32 `yaml:"max_frame_payload" json:"max_frame_payload"`
	// PacketCounterBits is the packet counter width (1..8).
	PacketCounterBits uint8 `yaml:"packet_counter_bits" json:"packet_counter_bits"`
	// Identity is stamped into every header.
	Identity Identity `yaml:"identity" json:"identity"`
}

// DefaultConfig returns the reference header configuration.
func DefaultConfig() Config {
	return Config{
		HeaderSize:        LayoutSize,
		MaxPageSize:       DefaultMaxPageSize,
		MinPayload:        DefaultMinPayload,
		PacketCounterBits: DefaultPacketCounterBits,
	}
}

// ErrInvalidConfig is returned by Validate for unusable header parameters.
var ErrInvalidConfig = errors.New("invalid header config")

// Validate checks sizes and the counter width.
func (c Config) Validate() error {
	switch {
	case c.HeaderSize < LayoutSize || c.HeaderSize > MaxHeaderSize || c.HeaderSize%16 != 0:
		return fmt.Errorf("%w: header_size %d must be a multiple of 16 in [%d, %d]",
			ErrInvalidConfig, c.HeaderSize, LayoutSize, MaxHeaderSize)
	case c.MaxPageSize <= uint32(c.HeaderSize):
		return fmt.Errorf("%w: max_page_size %d must exceed header_size %d",
			ErrInvalidConfig, c.MaxPageSize, c.HeaderSize)
	case c.MaxPageSize > 0xFFFF:
		return fmt.Errorf("%w: max_page_size %d exceeds 16-bit memory size", ErrInvalidConfig, c.MaxPageSize)
	case uint64(c.MaxFramePayload) > c.pagedLimit():
		return fmt.Errorf("%w: max_frame_payload %d exceeds %d pages of %d bytes",
			ErrInvalidConfig, c.MaxFramePayload, MaxFramePages, c.PageCapacity())
	case c.MaxFramePayload > 0 && c.MaxFramePayload < c.MinPayload:
		return fmt.Errorf("%w: max_frame_payload %d below min_payload %d",
			ErrInvalidConfig, c.MaxFramePayload, c.MinPayload)
	case c.PacketCounterBits == 0 || c.PacketCounterBits > 8:
		return fmt.Errorf("%w: packet_counter_bits %d must be in [1, 8]", ErrInvalidConfig, c.PacketCounterBits)
	case c.Identity.CruID > 0x0FFF:
		return fmt.Errorf("%w: cru_id %d exceeds 12 bits", ErrInvalidConfig, c.Identity.CruID)
	case c.Identity.EndpointID > 0x0F:
		return fmt.Errorf("%w: endpoint_id %d exceeds 4 bits", ErrInvalidConfig, c.Identity.EndpointID)
	}
	return nil
}

// PageCapacity is the payload capacity of one page.
func (c Config) PageCapacity() uint32 {
	return c.MaxPageSize - uint32(c.HeaderSize)
}

// FramePayloadLimit is the largest payload a hit frame carries.
func (c Config) FramePayloadLimit() uint32 {
	if c.MaxFramePayload > 0 {
		return c.MaxFramePayload
	}
	return uint32(min(c.pagedLimit(), math.MaxUint32))
}

func (c Config) pagedLimit() uint64 {
	return uint64(c.PageCapacity()) * MaxFramePages
}

// PacketModulus is the number of distinct packet counter values.
func (c Config) PacketModulus() int {
	return 1 << c.PacketCounterBits
}
