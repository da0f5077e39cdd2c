package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/justapithecus/hbframe/frames"
	"github.com/justapithecus/hbframe/grid"
	"github.com/justapithecus/hbframe/types"
)

var (
	// ErrClosed is returned by Process after Close or Abort.
	ErrClosed = errors.New("session closed")
	// ErrUnterminatedFrame marks a frame left open when the session ended.
	// It is healed by emitting the missing close page and is only logged.
	ErrUnterminatedFrame = errors.New("unterminated frame at session end")
	// ErrSink is wrapped by failures of the header emitter.
	ErrSink = errors.New("header sink failed")
)

// RecordError reports a record the session could not place, together with
// the counters at the time of the failure.
type RecordError struct {
	Record  types.InteractionRecord
	Summary types.SessionSummary
	Err     error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %s: %v", e.Record, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Kind classifies session errors for outcome mapping.
type Kind string

// Error kinds.
const (
	KindNone      Kind = ""
	KindInput     Kind = "input"
	KindSink      Kind = "sink"
	KindInvariant Kind = "invariant"
	KindCancelled Kind = "cancelled"
)

// Classify maps a session error to its Kind. Out-of-range records are not
// session failures and classify as KindNone.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	case frames.IsUnordered(err):
		return KindInput
	case errors.Is(err, ErrSink):
		return KindSink
	case errors.Is(err, ErrInvariant):
		return KindInvariant
	case grid.IsOutOfRange(err):
		return KindNone
	default:
		return KindSink
	}
}

// Outcome converts a session's terminal error into a SessionOutcome.
func Outcome(err error) types.SessionOutcome {
	switch Classify(err) {
	case KindCancelled:
		return types.SessionOutcome{Status: types.OutcomeCancelled, Message: err.Error()}
	case KindInput:
		return types.SessionOutcome{Status: types.OutcomeInputError, Message: err.Error()}
	case KindSink:
		return types.SessionOutcome{Status: types.OutcomeSinkFailure, Message: err.Error()}
	case KindInvariant:
		return types.SessionOutcome{Status: types.OutcomeInvariantFailure, Message: err.Error()}
	default:
		return types.SessionOutcome{Status: types.OutcomeSuccess, Message: "session completed"}
	}
}
