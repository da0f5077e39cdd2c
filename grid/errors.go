package grid

import (
	"errors"
	"fmt"

	"github.com/justapithecus/hbframe/types"
)

// ErrOutOfRange is matched by every *OutOfRangeError via errors.Is.
var ErrOutOfRange = errors.New("interaction record out of range")

// OutOfRangeReason classifies an OutOfRangeError.
type OutOfRangeReason string

const (
	// ReasonBCBound means the bunch crossing exceeds the per-orbit bound.
	ReasonBCBound OutOfRangeReason = "bc_bound"
	// ReasonBeforeEpoch means the orbit precedes the grid's first orbit.
	ReasonBeforeEpoch OutOfRangeReason = "before_epoch"
)

// OutOfRangeError reports a record that cannot be placed on the grid.
// It is fatal to the record only; callers skip it and continue.
type OutOfRangeError struct {
	Record     types.InteractionRecord
	Reason     OutOfRangeReason
	MaxBC      uint16
	FirstOrbit uint32
}

func (e *OutOfRangeError) Error() string {
	switch e.Reason {
	case ReasonBCBound:
		return fmt.Sprintf("interaction record %s out of range: bc %d exceeds max %d", e.Record, e.Record.BC, e.MaxBC)
	case ReasonBeforeEpoch:
		return fmt.Sprintf("interaction record %s out of range: orbit before first orbit %d", e.Record, e.FirstOrbit)
	default:
		return fmt.Sprintf("interaction record %s out of range", e.Record)
	}
}

// Is matches ErrOutOfRange.
func (e *OutOfRangeError) Is(target error) bool {
	return target == ErrOutOfRange
}

// IsOutOfRange reports whether err is an out-of-range record error.
func IsOutOfRange(err error) bool {
	return errors.Is(err, ErrOutOfRange)
}
