// Package frames turns a time-ordered interaction stream into heartbeat
// frame events: the Consumer groups records into hit frames, and the
// GapFiller inserts empty frames between consecutive hits.
package frames

import (
	"errors"
	"fmt"

	"github.com/justapithecus/hbframe/grid"
	"github.com/justapithecus/hbframe/types"
)

// PayloadPolicy selects how record payload sizes combine into a frame size.
type PayloadPolicy string

const (
	// PayloadSum adds the payload sizes of all records in the frame.
	PayloadSum PayloadPolicy = "sum"
	// PayloadMax keeps the largest payload size of the frame's records.
	PayloadMax PayloadPolicy = "max"
)

// ErrInvalidPayloadPolicy is returned for unknown payload policies.
var ErrInvalidPayloadPolicy = errors.New("invalid payload policy")

// ParsePayloadPolicy parses "sum" or "max". Empty selects PayloadSum.
func ParsePayloadPolicy(s string) (PayloadPolicy, error) {
	switch PayloadPolicy(s) {
	case "", PayloadSum:
		return PayloadSum, nil
	case PayloadMax:
		return PayloadMax, nil
	default:
		return "", fmt.Errorf("%w: %q (must be sum or max)", ErrInvalidPayloadPolicy, s)
	}
}

func (p PayloadPolicy) combine(acc, size uint32) uint64 {
	if p == PayloadMax {
		return uint64(max(acc, size))
	}
	return uint64(acc) + uint64(size)
}

// HitEvent is a heartbeat frame that received at least one interaction.
type HitEvent struct {
	Frame   grid.FrameID
	Payload uint32
	Records int
	// Clamped is set when Payload was cut down to the consumer's limit.
	Clamped bool
}

// FrameEvent is one heartbeat frame to be framed by the header synthesizer,
// either a hit frame or a gap-filled empty frame.
type FrameEvent struct {
	Frame   grid.FrameID
	IR      types.InteractionRecord
	HasData bool
	Payload uint32
}

// UnorderedInputError reports a record that precedes the previously
// accepted one. It is fatal to the stream.
type UnorderedInputError struct {
	Previous types.InteractionRecord
	Record   types.InteractionRecord
}

func (e *UnorderedInputError) Error() string {
	return fmt.Sprintf("unordered input: record %s precedes previous record %s", e.Record, e.Previous)
}

// IsUnordered reports whether err is an *UnorderedInputError.
func IsUnordered(err error) bool {
	var u *UnorderedInputError
	return errors.As(err, &u)
}
