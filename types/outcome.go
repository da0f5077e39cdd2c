package types

// OutcomeStatus is the final status of a framing session.
type OutcomeStatus string

const (
	// OutcomeSuccess means the input was consumed and every frame closed.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomeInputError means the input violated ordering and the session stopped.
	OutcomeInputError OutcomeStatus = "input_error"
	// OutcomeSinkFailure means a sink or ingestion policy failed.
	OutcomeSinkFailure OutcomeStatus = "sink_failure"
	// OutcomeInvariantFailure means the end-of-session checks failed.
	OutcomeInvariantFailure OutcomeStatus = "invariant_failure"
	// OutcomeCancelled means the session was aborted by cancellation.
	OutcomeCancelled OutcomeStatus = "cancelled"
)

// SessionOutcome describes how a session ended.
type SessionOutcome struct {
	Status  OutcomeStatus `json:"status"`
	Message string        `json:"message"`
}
