package frames

import (
	"errors"
	"fmt"

	"github.com/justapithecus/hbframe/grid"
)

// ErrNonIncreasingFrame is returned when a hit does not advance past the
// last emitted frame.
var ErrNonIncreasingFrame = errors.New("hit frame does not advance")

// GapFiller expands hit events into a contiguous run of frame events.
// Framing starts at the first hit; nothing is filled before it.
type GapFiller struct {
	grid    *grid.Grid
	last    grid.FrameID
	started bool
	filled  int64
}

// NewGapFiller returns a gap filler stamping frames on g.
func NewGapFiller(g *grid.Grid) *GapFiller {
	return &GapFiller{grid: g}
}

// Advance calls emit for every empty frame strictly between the last
// emitted frame and hit.Frame, then for the hit frame itself.
// Emission stops at the first emit error.
func (f *GapFiller) Advance(hit HitEvent, emit func(FrameEvent) error) error {
	if f.started && hit.Frame <= f.last {
		return fmt.Errorf("%w: frame %d after %d", ErrNonIncreasingFrame, hit.Frame, f.last)
	}
	if f.started {
		for id := f.last + 1; id < hit.Frame; id++ {
			if err := emit(FrameEvent{Frame: id, IR: f.grid.FrameIR(id)}); err != nil {
				return err
			}
			f.last = id
			f.filled++
		}
	}
	if err := emit(FrameEvent{
		Frame:   hit.Frame,
		IR:      f.grid.FrameIR(hit.Frame),
		HasData: true,
		Payload: hit.Payload,
	}); err != nil {
		return err
	}
	f.last, f.started = hit.Frame, true
	return nil
}

// Last returns the last emitted frame and whether any frame was emitted.
func (f *GapFiller) Last() (grid.FrameID, bool) {
	return f.last, f.started
}

// Filled returns the number of empty frames emitted so far.
func (f *GapFiller) Filled() int64 {
	return f.filled
}
