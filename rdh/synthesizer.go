package rdh

import (
	"errors"

	"github.com/justapithecus/hbframe/frames"
	"github.com/justapithecus/hbframe/grid"
	"github.com/justapithecus/hbframe/types"
)

var (
	// ErrFrameOpen is returned by Open while a previous frame is still open.
	ErrFrameOpen = errors.New("heartbeat frame already open")
	// ErrNoOpenFrame is returned by Close when no frame is open.
	ErrNoOpenFrame = errors.New("no open heartbeat frame")
)

// Synthesizer builds the header pages of heartbeat frames for one link.
//
// The packet counter is shared by every page the synthesizer emits and
// wraps at the configured width. Not safe for concurrent use.
type Synthesizer struct {
	cfg   Config
	grid  *grid.Grid
	mask  uint32
	limit uint32

	packet  uint32
	open    types.RawHeader
	isOpen  bool
	clamped int64
}

// NewSynthesizer validates cfg and returns a Synthesizer on g.
func NewSynthesizer(cfg Config, g *grid.Grid) (*Synthesizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Synthesizer{
		cfg:   cfg,
		grid:  g,
		mask:  uint32(cfg.PacketModulus() - 1),
		limit: cfg.FramePayloadLimit(),
	}, nil
}

// Config returns the synthesizer parameters.
func (s *Synthesizer) Config() Config {
	return s.cfg
}

// IsOpen reports whether a frame awaits its close page.
func (s *Synthesizer) IsOpen() bool {
	return s.isOpen
}

// OpenHeader returns the last page of the open frame.
func (s *Synthesizer) OpenHeader() (types.RawHeader, bool) {
	return s.open, s.isOpen
}

// Clamped returns the number of hit frames cut down to the frame payload
// limit.
func (s *Synthesizer) Clamped() int64 {
	return s.clamped
}

// NextPacket returns the packet counter value of the next page.
func (s *Synthesizer) NextPacket() uint8 {
	return uint8(s.packet)
}

// Open appends the open page of ev and, for payloads above one page's
// capacity, its continuation pages. The frame stays open until Close.
// Payloads above the frame payload limit are clamped to it.
func (s *Synthesizer) Open(dst []types.RawHeader, ev frames.FrameEvent) ([]types.RawHeader, error) {
	if s.isOpen {
		return dst, ErrFrameOpen
	}

	trig := types.TriggerHeartbeat
	if s.grid.IsTFStart(ev.Frame) {
		trig |= types.TriggerTimeFrame
	}

	remaining := uint32(0)
	if ev.HasData {
		remaining = max(ev.Payload, s.cfg.MinPayload)
		if remaining > s.limit {
			remaining = s.limit
			s.clamped++
		}
	} else {
		trig |= types.TriggerEmpty
	}

	capacity := s.cfg.PageCapacity()
	page := uint16(0)
	for {
		chunk := min(remaining, capacity)
		remaining -= chunk
		h := s.page(ev.IR, trig, page, false, chunk)
		dst = append(dst, h)
		s.open = h
		if remaining == 0 {
			break
		}
		page++
	}
	s.isOpen = true
	return dst, nil
}

// Close appends the stop page of the open frame.
func (s *Synthesizer) Close(dst []types.RawHeader) ([]types.RawHeader, error) {
	if !s.isOpen {
		return dst, ErrNoOpenFrame
	}
	h := s.page(s.open.IR(), s.open.TriggerType, s.open.PageCounter+1, true, 0)
	s.isOpen = false
	return append(dst, h), nil
}

// Frame appends a complete open/close sequence for ev.
func (s *Synthesizer) Frame(dst []types.RawHeader, ev frames.FrameEvent) ([]types.RawHeader, error) {
	dst, err := s.Open(dst, ev)
	if err != nil {
		return dst, err
	}
	return s.Close(dst)
}

func (s *Synthesizer) page(ir types.InteractionRecord, trig types.TriggerType, pageCnt uint16, stop bool, payload uint32) types.RawHeader {
	id := s.cfg.Identity
	size := uint16(uint32(s.cfg.HeaderSize) + payload)
	h := types.RawHeader{
		Version:       types.HeaderVersion,
		HeaderSize:    s.cfg.HeaderSize,
		FeeID:         id.FeeID,
		SourceID:      id.SourceID,
		LinkID:        id.LinkID,
		CruID:         id.CruID,
		EndpointID:    id.EndpointID,
		Orbit:         ir.Orbit,
		BC:            ir.BC,
		TriggerType:   trig,
		PacketCounter: uint8(s.packet),
		PageCounter:   pageCnt,
		Stop:          stop,
		MemorySize:    size,
		OffsetToNext:  size,
	}
	s.packet = (s.packet + 1) & s.mask
	return h
}
