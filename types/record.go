// Package types defines core domain types shared across hbframe packages.
//
//nolint:revive // types is a common Go package naming convention
package types

import "fmt"

// InteractionRecord is one collision timestamp on the accelerator clock.
// Records are ordered lexicographically by (Orbit, BC).
type InteractionRecord struct {
	// Orbit is the orbit counter.
	Orbit uint32 `msgpack:"orbit" json:"orbit"`
	// BC is the bunch crossing within the orbit.
	BC uint16 `msgpack:"bc" json:"bc"`
	// PayloadSize is the opaque number of payload bytes the interaction
	// contributes to its heartbeat frame.
	PayloadSize uint32 `msgpack:"payload_size,omitempty" json:"payload_size,omitempty"`
}

// Compare returns -1, 0 or +1 depending on whether r is before, at the same
// time as, or after o. Payload size does not take part in the ordering.
func (r InteractionRecord) Compare(o InteractionRecord) int {
	switch {
	case r.Orbit < o.Orbit:
		return -1
	case r.Orbit > o.Orbit:
		return 1
	case r.BC < o.BC:
		return -1
	case r.BC > o.BC:
		return 1
	default:
		return 0
	}
}

// Before reports whether r strictly precedes o.
func (r InteractionRecord) Before(o InteractionRecord) bool {
	return r.Compare(o) < 0
}

func (r InteractionRecord) String() string {
	return fmt.Sprintf("%d/%d", r.Orbit, r.BC)
}
