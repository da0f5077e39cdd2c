package lode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/hbframe/metrics"
	"github.com/justapithecus/hbframe/types"
)

// LodeClient is a real Lode-backed implementation of Client.
// Uses Lode's HiveLayout with partition keys detector/link/day/session_id/record_kind.
type LodeClient struct {
	dataset lode.Dataset
	config  Config

	mu  sync.Mutex // guards seq
	seq int64      // next header sequence number of the session

	storeFactory lode.StoreFactory
	storeOnce    sync.Once
	store        lode.Store
	storeErr     error
}

// NewLodeClient creates a new Lode client with filesystem storage.
// The root parameter is the base directory for Hive-partitioned storage.
func NewLodeClient(cfg Config, root string) (*LodeClient, error) {
	return NewLodeClientWithFactory(cfg, lode.NewFSFactory(root))
}

// NewLodeClientWithFactory creates a new Lode client with a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewLodeClientWithFactory(cfg Config, factory lode.StoreFactory) (*LodeClient, error) {
	if cfg.Dataset == "" {
		cfg.Dataset = DefaultDataset
	}
	ds, err := NewReadDataset(cfg.Dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, cfg.Dataset)
	}
	return newClient(ds, cfg, factory), nil
}

func newClient(ds lode.Dataset, cfg Config, factory lode.StoreFactory) *LodeClient {
	return &LodeClient{
		dataset:      ds,
		config:       cfg,
		storeFactory: factory,
	}
}

// Config returns the client partition configuration.
func (c *LodeClient) Config() Config {
	return c.config
}

// WriteHeaders writes a batch of header pages as one snapshot. Sequence
// numbers advance only after a successful write.
func (c *LodeClient) WriteHeaders(ctx context.Context, headers []types.RawHeader) error {
	if len(headers) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	records := make([]any, 0, len(headers))
	for i, h := range headers {
		records = append(records, toHeaderRecordMap(h, c.seq+int64(i), c.config))
	}
	if _, err := c.dataset.Write(ctx, records, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.partitionPath(RecordKindHeader))
	}
	c.seq += int64(len(headers))
	return nil
}

// WriteSummary writes the session summary record.
func (c *LodeClient) WriteSummary(ctx context.Context, s types.SessionSummary, outcome types.SessionOutcome, completedAt time.Time) error {
	record := toSummaryRecordMap(s, outcome, completedAt, c.config)
	if _, err := c.dataset.Write(ctx, []any{record}, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.partitionPath(RecordKindSummary))
	}
	return nil
}

// WriteMetrics writes a metrics snapshot record.
func (c *LodeClient) WriteMetrics(ctx context.Context, s metrics.Snapshot, completedAt time.Time) error {
	record := toMetricsRecordMap(s, completedAt, c.config)
	if _, err := c.dataset.Write(ctx, []any{record}, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.partitionPath(RecordKindMetrics))
	}
	return nil
}

// Close releases client resources.
func (c *LodeClient) Close() error {
	// Dataset doesn't require explicit close in current Lode API
	return nil
}

// SessionPath returns the Hive prefix shared by all of the session's records.
func (c *LodeClient) SessionPath() string {
	return fmt.Sprintf("%s/detector=%s/link=%s/day=%s/session_id=%s",
		c.config.Dataset, c.config.Detector, c.config.Link, c.config.Day, c.config.SessionID)
}

func (c *LodeClient) partitionPath(kind string) string {
	return c.SessionPath() + "/record_kind=" + kind
}

var _ Client = (*LodeClient)(nil)
