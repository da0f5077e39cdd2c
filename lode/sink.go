// Package lode persists header pages, session summaries and metrics to a
// Lode dataset partitioned by detector, link, day and session.
package lode

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/justapithecus/hbframe/policy"
	"github.com/justapithecus/hbframe/types"
)

// DefaultDataset is the dataset ID used when none is configured.
const DefaultDataset = "hbframe"

// DeriveDay computes the partition day from session start time.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(startTime time.Time) string {
	return startTime.UTC().Format("2006-01-02")
}

// Config holds Lode sink configuration. All partition keys are required.
type Config struct {
	// Dataset is the Lode dataset ID.
	Dataset string
	// Detector is the partition key for the detector name.
	Detector string
	// Link is the partition key for the link name.
	Link string
	// Day is the partition key derived from session start (YYYY-MM-DD UTC).
	Day string
	// SessionID is the partition key for the session identifier.
	SessionID string
	// Policy is the ingestion policy name, recorded on metrics records.
	Policy string
}

// Client abstracts the Lode storage client.
type Client interface {
	// WriteHeaders writes a batch of header pages.
	// Must preserve ordering within and across batches.
	WriteHeaders(ctx context.Context, headers []types.RawHeader) error

	// Close releases client resources.
	Close() error
}

// Sink is a Lode-backed implementation of policy.Sink.
type Sink struct {
	client Client
}

// NewSink creates a new Lode sink.
func NewSink(client Client) *Sink {
	return &Sink{client: client}
}

// WriteHeaders implements policy.Sink.
func (s *Sink) WriteHeaders(ctx context.Context, headers []types.RawHeader) error {
	return s.client.WriteHeaders(ctx, headers)
}

// Close implements policy.Sink.
func (s *Sink) Close() error {
	return s.client.Close()
}

var _ policy.Sink = (*Sink)(nil)

// StubClient is a test client that accepts writes without persisting.
type StubClient struct {
	mu      sync.Mutex
	Batches [][]types.RawHeader
	Closed  bool
}

// NewStubClient creates a new stub client.
func NewStubClient() *StubClient {
	return &StubClient{}
}

// WriteHeaders implements Client.
func (c *StubClient) WriteHeaders(_ context.Context, headers []types.RawHeader) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Batches = append(c.Batches, slices.Clone(headers))
	return nil
}

// Close implements Client.
func (c *StubClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}

var _ Client = (*StubClient)(nil)
