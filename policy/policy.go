// Package policy defines how synthesized header batches reach a sink.
//
// A batch is the run of headers produced for one input step. It always
// holds whole heartbeat frames, so a policy that drops a batch never
// splits an open page from its close. Policies never reorder headers;
// they differ in when writes happen and in what they do when the sink
// falls behind.
package policy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/justapithecus/hbframe/types"
)

// Policy defines the ingestion policy interface.
//
// Ingest must not retain the batch slice after it returns; policies that
// buffer copy it. A policy error terminates the session.
type Policy interface {
	// Ingest hands one batch of headers, in emission order, to the policy.
	Ingest(ctx context.Context, batch []types.RawHeader) error

	// Flush writes any buffered headers to the sink.
	// Called at session end and on cancellation.
	Flush(ctx context.Context) error

	// Close flushes, stops background work and closes the sink.
	Close() error

	// Stats returns a consistent snapshot of the policy counters.
	Stats() Stats
}

// Stats are the policy observability counters.
type Stats struct {
	// Batches is the number of batches received.
	Batches int64
	// HeadersReceived is the number of headers received.
	HeadersReceived int64
	// HeadersPersisted is the number of headers accepted by the sink.
	HeadersPersisted int64
	// HeadersDropped is the number of headers discarded under drop backpressure.
	HeadersDropped int64
	// BatchesDropped is the number of batches discarded.
	BatchesDropped int64
	// BufferedHeaders is the number of headers waiting for a write.
	BufferedHeaders int64
	// BufferBytes is the page bytes (header plus payload) waiting for a write.
	BufferBytes int64
	// FlushCount is the number of flush operations.
	FlushCount int64
	// Errors is the number of failed sink writes.
	Errors int64
}

// Backpressure selects what a bounded policy does when it is full.
type Backpressure string

const (
	// BackpressureBlock makes the producer wait for room.
	BackpressureBlock Backpressure = "block"
	// BackpressureDrop discards the incoming batch.
	BackpressureDrop Backpressure = "drop"
)

// ErrInvalidBackpressure is returned for unknown backpressure names.
var ErrInvalidBackpressure = errors.New("invalid backpressure")

// ErrPolicyClosed is returned by Ingest after Close.
var ErrPolicyClosed = errors.New("policy closed")

// ParseBackpressure parses "block" or "drop". Empty selects block.
func ParseBackpressure(s string) (Backpressure, error) {
	switch Backpressure(s) {
	case "", BackpressureBlock:
		return BackpressureBlock, nil
	case BackpressureDrop:
		return BackpressureDrop, nil
	default:
		return "", fmt.Errorf("%w: %q (must be block or drop)", ErrInvalidBackpressure, s)
	}
}

// BatchBytes returns the page bytes described by batch.
func BatchBytes(batch []types.RawHeader) int64 {
	var n int64
	for _, h := range batch {
		n += int64(h.OffsetToNext)
	}
	return n
}

// statsRecorder is an internal helper for thread-safe stats management.
//
// Lock discipline:
//   - StrictPolicy and NoopPolicy use the locking methods
//   - Buffered and Streaming policies use the Locked methods only while
//     holding their own mu, keeping buffer state and counters consistent
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

func newStatsRecorder() *statsRecorder {
	return &statsRecorder{}
}

func (r *statsRecorder) incReceived(headers int) {
	r.mu.Lock()
	r.incReceivedLocked(headers)
	r.mu.Unlock()
}

func (r *statsRecorder) incPersisted(headers int) {
	r.mu.Lock()
	r.stats.HeadersPersisted += int64(headers)
	r.mu.Unlock()
}

func (r *statsRecorder) incErrors() {
	r.mu.Lock()
	r.stats.Errors++
	r.mu.Unlock()
}

func (r *statsRecorder) incFlush() {
	r.mu.Lock()
	r.stats.FlushCount++
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// --- Locked methods. Caller must hold the owning policy's mu. ---

func (r *statsRecorder) incReceivedLocked(headers int) {
	r.stats.Batches++
	r.stats.HeadersReceived += int64(headers)
}

func (r *statsRecorder) incPersistedLocked(headers int) {
	r.stats.HeadersPersisted += int64(headers)
}

func (r *statsRecorder) incDroppedLocked(headers int) {
	r.stats.BatchesDropped++
	r.stats.HeadersDropped += int64(headers)
}

func (r *statsRecorder) incErrorsLocked() {
	r.stats.Errors++
}

func (r *statsRecorder) incFlushLocked() {
	r.stats.FlushCount++
}

// snapshotLocked returns a snapshot with the given buffer occupancy.
func (r *statsRecorder) snapshotLocked(headers int, bytes int64) Stats {
	s := r.stats
	s.BufferedHeaders = int64(headers)
	s.BufferBytes = bytes
	return s
}
