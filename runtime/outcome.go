package runtime

import (
	"errors"

	"github.com/justapithecus/hbframe/session"
	"github.com/justapithecus/hbframe/types"
)

// Process exit codes.
const (
	ExitCodeSuccess          = 0
	ExitCodeInputError       = 1 // unordered or unreadable input, cancellation
	ExitCodeSinkFailure      = 2 // sink, policy or storage failure
	ExitCodeInvariantFailure = 3 // end-of-session checks failed
)

// ExitCode maps an outcome status to a process exit code.
func ExitCode(status types.OutcomeStatus) int {
	switch status {
	case types.OutcomeSuccess:
		return ExitCodeSuccess
	case types.OutcomeSinkFailure:
		return ExitCodeSinkFailure
	case types.OutcomeInvariantFailure:
		return ExitCodeInvariantFailure
	default:
		return ExitCodeInputError
	}
}

// severity orders statuses for picking a run's overall outcome.
func severity(status types.OutcomeStatus) int {
	switch status {
	case types.OutcomeInvariantFailure:
		return 4
	case types.OutcomeSinkFailure:
		return 3
	case types.OutcomeInputError:
		return 2
	case types.OutcomeCancelled:
		return 1
	default:
		return 0
	}
}

// Worst returns the most severe outcome. An empty list is a success.
func Worst(outcomes ...types.SessionOutcome) types.SessionOutcome {
	worst := types.SessionOutcome{Status: types.OutcomeSuccess, Message: "all sessions completed"}
	for _, o := range outcomes {
		if severity(o.Status) > severity(worst.Status) {
			worst = o
		}
	}
	return worst
}

// DetermineOutcome maps a link's terminal error to its outcome. Source read
// failures are input errors; everything else follows session.Outcome.
func DetermineOutcome(err error) types.SessionOutcome {
	if err != nil && errors.Is(err, ErrSource) && session.Classify(err) != session.KindCancelled {
		return types.SessionOutcome{Status: types.OutcomeInputError, Message: err.Error()}
	}
	return session.Outcome(err)
}
