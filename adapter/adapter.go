// Package adapter defines the boundary for publishing session completion
// notifications to downstream systems.
//
// The runtime owns adapter lifecycle; users provide configuration only.
package adapter

import (
	"context"
	"fmt"
	"time"
)

// EventType is the event_type of every SessionCompletedEvent.
const EventType = "session_completed"

// SessionCompletedEvent is the payload published when a link session ends.
type SessionCompletedEvent struct {
	ContractVersion string `json:"contract_version"`
	EventType       string `json:"event_type"` // always "session_completed"
	SessionID       string `json:"session_id"`
	Detector        string `json:"detector"`
	Link            string `json:"link"`
	Day             string `json:"day"`
	Outcome         string `json:"outcome"` // success, input_error, etc.
	Message         string `json:"message,omitempty"`
	StoragePath     string `json:"storage_path,omitempty"`
	Timestamp       string `json:"timestamp"` // RFC 3339

	Frames         int64 `json:"frames"`
	EmptyFrames    int64 `json:"empty_frames"`
	TimeFrames     int64 `json:"time_frames"`
	Headers        int64 `json:"headers"`
	HeadersDropped int64 `json:"headers_dropped"`
	DurationMs     int64 `json:"duration_ms"`
}

// Adapter publishes session completion events to a downstream system.
type Adapter interface {
	// Publish sends a session completion event.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *SessionCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// BaseBackoff is the delay before the first retry. Each later retry
// doubles it.
var BaseBackoff = 500 * time.Millisecond

// Retry calls fn up to 1+retries times with exponential backoff between
// attempts. A non-nil error for which permanent returns true stops the loop.
func Retry(ctx context.Context, retries int, permanent func(error) bool, fn func(context.Context) error) error {
	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context canceled: %w", err)
		}

		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * BaseBackoff
			select {
			case <-ctx.Done():
				return fmt.Errorf("context canceled during backoff: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return fmt.Errorf("non-retriable error: %w", lastErr)
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
