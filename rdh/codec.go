package rdh

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/justapithecus/hbframe/types"
)

// Byte offsets inside the encoded header.
const (
	offVersion      = 0
	offHeaderSize   = 1
	offFeeID        = 2
	offSourceID     = 5
	offOffsetToNext = 8
	offMemorySize   = 10
	offLinkID       = 12
	offPacket       = 13
	offCruEndpoint  = 14
	offBC           = 16
	offOrbit        = 20
	offTrigger      = 32
	offPageCounter  = 36
	offStop         = 38
)

var (
	// ErrShortHeader is returned when fewer than LayoutSize bytes are decoded.
	ErrShortHeader = errors.New("short raw data header")
	// ErrBadVersion is returned for an unsupported header version.
	ErrBadVersion = errors.New("unsupported raw data header version")
	// ErrBadHeaderSize is returned when the encoded header size is unusable.
	ErrBadHeaderSize = errors.New("invalid raw data header size")
)

// AppendHeader appends the encoding of h, padded with zeros to h.HeaderSize.
func AppendHeader(dst []byte, h types.RawHeader) []byte {
	size := max(int(h.HeaderSize), LayoutSize)
	start := len(dst)
	dst = append(dst, make([]byte, size)...)
	b := dst[start:]

	b[offVersion] = h.Version
	b[offHeaderSize] = uint8(size)
	binary.LittleEndian.PutUint16(b[offFeeID:], h.FeeID)
	b[offSourceID] = h.SourceID
	binary.LittleEndian.PutUint16(b[offOffsetToNext:], h.OffsetToNext)
	binary.LittleEndian.PutUint16(b[offMemorySize:], h.MemorySize)
	b[offLinkID] = h.LinkID
	b[offPacket] = h.PacketCounter
	binary.LittleEndian.PutUint16(b[offCruEndpoint:], h.CruID&0x0FFF|uint16(h.EndpointID&0x0F)<<12)
	binary.LittleEndian.PutUint16(b[offBC:], h.BC)
	binary.LittleEndian.PutUint32(b[offOrbit:], h.Orbit)
	binary.LittleEndian.PutUint32(b[offTrigger:], uint32(h.TriggerType))
	binary.LittleEndian.PutUint16(b[offPageCounter:], h.PageCounter)
	if h.Stop {
		b[offStop] = 1
	}
	return dst
}

// Marshal returns the encoding of h.
func Marshal(h types.RawHeader) []byte {
	return AppendHeader(nil, h)
}

// Unmarshal decodes a header from the first LayoutSize bytes of b.
// Padding beyond LayoutSize is ignored.
func Unmarshal(b []byte) (types.RawHeader, error) {
	if len(b) < LayoutSize {
		return types.RawHeader{}, fmt.Errorf("%w: %d bytes", ErrShortHeader, len(b))
	}
	if b[offVersion] != types.HeaderVersion {
		return types.RawHeader{}, fmt.Errorf("%w: %d", ErrBadVersion, b[offVersion])
	}
	size := uint16(b[offHeaderSize])
	if size < LayoutSize {
		return types.RawHeader{}, fmt.Errorf("%w: %d", ErrBadHeaderSize, size)
	}

	cruEndpoint := binary.LittleEndian.Uint16(b[offCruEndpoint:])
	return types.RawHeader{
		Version:       b[offVersion],
		HeaderSize:    size,
		FeeID:         binary.LittleEndian.Uint16(b[offFeeID:]),
		SourceID:      b[offSourceID],
		LinkID:        b[offLinkID],
		CruID:         cruEndpoint & 0x0FFF,
		EndpointID:    uint8(cruEndpoint >> 12),
		Orbit:         binary.LittleEndian.Uint32(b[offOrbit:]),
		BC:            binary.LittleEndian.Uint16(b[offBC:]),
		TriggerType:   types.TriggerType(binary.LittleEndian.Uint32(b[offTrigger:])),
		PacketCounter: b[offPacket],
		PageCounter:   binary.LittleEndian.Uint16(b[offPageCounter:]),
		Stop:          b[offStop] != 0,
		MemorySize:    binary.LittleEndian.Uint16(b[offMemorySize:]),
		OffsetToNext:  binary.LittleEndian.Uint16(b[offOffsetToNext:]),
	}, nil
}
