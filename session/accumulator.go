package session

import (
	"errors"
	"fmt"

	"github.com/justapithecus/hbframe/grid"
	"github.com/justapithecus/hbframe/types"
)

// ErrInvariant is wrapped by every end-of-session check failure.
var ErrInvariant = errors.New("session invariant violated")

// maxViolations bounds the violations kept for reporting.
const maxViolations = 16

// Accumulator observes every emitted header and keeps the session counters.
//
// Frames are counted on their open page: the close page repeats the open
// page's trigger bits and is counted only as a close.
type Accumulator struct {
	grid    *grid.Grid
	modulus int

	opened, closed    int64
	empty, nonEmpty   int64
	timeFrames        int64
	continuationPages int64
	headers           int64
	payloadBytes      int64

	first, last grid.FrameID
	started     bool

	prevPacket uint8
	hasPacket  bool

	// openPage is the open page of the frame awaiting its close.
	openPage types.RawHeader
	inFrame  bool
	unpaired int64

	occupancy []types.TFOccupancy

	violations []string
	dropped    int
}

// NewAccumulator returns an accumulator for headers stamped on g whose
// packet counter wraps at modulus.
func NewAccumulator(g *grid.Grid, modulus int) *Accumulator {
	return &Accumulator{grid: g, modulus: modulus}
}

// Observe records one header.
func (a *Accumulator) Observe(h types.RawHeader) {
	a.headers++
	a.payloadBytes += int64(h.PayloadBytes())

	if a.hasPacket && a.modulus > 0 {
		want := uint8((int(a.prevPacket) + 1) % a.modulus)
		if h.PacketCounter != want {
			a.violate("packet counter %d after %d, want %d", h.PacketCounter, a.prevPacket, want)
		}
	}
	a.prevPacket, a.hasPacket = h.PacketCounter, true

	switch {
	case h.Stop:
		a.closed++
		a.observeClose(h)
	case h.IsContinuation():
		a.continuationPages++
		if !a.inFrame || h.Orbit != a.openPage.Orbit || h.BC != a.openPage.BC {
			a.unpair("continuation page %s outside its frame", h.IR())
		}
	default:
		if a.inFrame {
			a.unpair("frame %s opened while %s is open", h.IR(), a.openPage.IR())
		}
		a.openPage, a.inFrame = h, true
		a.observeOpen(h)
	}
}

func (a *Accumulator) observeClose(h types.RawHeader) {
	switch {
	case !a.inFrame:
		a.unpair("close page %s without an open frame", h.IR())
	case h.Orbit != a.openPage.Orbit || h.BC != a.openPage.BC:
		a.unpair("close page %s does not match open %s", h.IR(), a.openPage.IR())
	}
	a.inFrame = false
}

func (a *Accumulator) unpair(format string, args ...any) {
	a.unpaired++
	a.violate(format, args...)
}

// Unpaired returns the number of headers that broke open/close pairing.
func (a *Accumulator) Unpaired() int64 {
	return a.unpaired
}

func (a *Accumulator) observeOpen(h types.RawHeader) {
	a.opened++

	frame, err := a.grid.HBF(h.IR())
	if err != nil {
		a.violate("open header %s off grid: %v", h.IR(), err)
		return
	}
	if a.started && frame != a.last+1 {
		a.violate("frame %d follows %d", frame, a.last)
	}
	if !a.started {
		a.first, a.started = frame, true
	}
	a.last = frame

	tf, pos := a.grid.TFAndPosition(frame)
	if h.TriggerType.Has(types.TriggerTimeFrame) {
		a.timeFrames++
		if pos != 0 {
			a.violate("frame %d carries TF flag at position %d", frame, pos)
		}
	} else if pos == 0 {
		a.violate("frame %d starts time frame %d without TF flag", frame, tf)
	}

	if n := len(a.occupancy); n == 0 || a.occupancy[n-1].TimeFrame != tf {
		a.occupancy = append(a.occupancy, types.TFOccupancy{TimeFrame: tf})
	}
	occ := &a.occupancy[len(a.occupancy)-1]
	if h.IsEmpty() {
		a.empty++
		occ.Empty++
	} else {
		a.nonEmpty++
		occ.Hit++
	}
}

func (a *Accumulator) violate(format string, args ...any) {
	if len(a.violations) >= maxViolations {
		a.dropped++
		return
	}
	a.violations = append(a.violations, fmt.Sprintf(format, args...))
}

// Check verifies the end-of-session invariants. gapsFilled is the number
// of empty frames the gap filler produced.
func (a *Accumulator) Check(gapsFilled int64) error {
	var errs []error
	if a.opened != a.closed {
		errs = append(errs, fmt.Errorf("%w: %d frames opened, %d closed", ErrInvariant, a.opened, a.closed))
	}
	if a.empty != gapsFilled {
		errs = append(errs, fmt.Errorf("%w: %d empty frames framed, %d gaps filled", ErrInvariant, a.empty, gapsFilled))
	}
	if gapsFilled > 0 && a.nonEmpty >= a.opened {
		errs = append(errs, fmt.Errorf("%w: %d non-empty of %d frames with gaps filled", ErrInvariant, a.nonEmpty, a.opened))
	}
	for _, v := range a.violations {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvariant, v))
	}
	if a.dropped > 0 {
		errs = append(errs, fmt.Errorf("%w: %d further violations", ErrInvariant, a.dropped))
	}
	return errors.Join(errs...)
}

// Fill copies the counters into s.
func (a *Accumulator) Fill(s *types.SessionSummary) {
	s.FramesOpened = a.opened
	s.FramesClosed = a.closed
	s.EmptyFrames = a.empty
	s.NonEmptyFrames = a.nonEmpty
	s.TimeFrames = a.timeFrames
	s.ContinuationPages = a.continuationPages
	s.Headers = a.headers
	s.PayloadBytes = a.payloadBytes
	if a.started {
		s.FirstFrame, s.LastFrame = int64(a.first), int64(a.last)
	}
	s.Occupancy = append([]types.TFOccupancy(nil), a.occupancy...)
}
